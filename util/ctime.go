package util

import (
	"time"

	"github.com/djherbis/times"
	"github.com/pkg/errors"
)

// ErrNoCreationTime is returned when the platform or filesystem
// does not record when a file was created.
var ErrNoCreationTime = errors.New("creation time is not supported")

// CreationTime gets the birth time of a file.
func CreationTime(fp string) (time.Time, error) {
	ts, err := times.Stat(fp)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "could not stat file")
	}
	if !ts.HasBirthTime() {
		return time.Time{}, ErrNoCreationTime
	}
	return ts.BirthTime(), nil
}
