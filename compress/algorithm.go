package compress

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/cdnjs/png-optimizer/util"

	"github.com/pkg/errors"
)

// Runs an algorithm with a set of arguments,
// and returns its combined output.
// Note, a non-zero exit status is returned as an
// error carrying the output.
func runAlgorithm(ctx context.Context, alg string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, alg, args...)
	var out bytes.Buffer
	cmd.Stdout, cmd.Stderr = &out, &out

	util.Debugf(ctx, "algorithm: run %s", cmd)
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "%s failed: %s", alg, strings.TrimSpace(out.String()))
	}
	return out.Bytes(), nil
}

// ZopfliPng performs an in-place compression of the file
// using the zopflipng binary at bin with its default settings.
func ZopfliPng(ctx context.Context, bin string, file string) (*Stats, error) {
	before, err := os.Stat(file)
	if err != nil {
		return nil, errors.Wrap(err, "could not stat file")
	}

	out, err := runAlgorithm(ctx, bin, "-y", file, file)
	if err != nil {
		return nil, err
	}
	util.Debugf(ctx, "%s", strings.TrimSpace(string(out)))

	after, err := os.Stat(file)
	if err != nil {
		return nil, errors.Wrap(err, "could not stat optimized file")
	}
	return &Stats{
		File:       file,
		SizeBefore: before.Size(),
		SizeAfter:  after.Size(),
	}, nil
}
