// Package optimizer scans a directory tree and optimizes, in place, every
// png file created within the last MaxAgeHours hours.
package optimizer

import (
	"context"
	"time"

	"github.com/cdnjs/png-optimizer/compress"
	"github.com/cdnjs/png-optimizer/util"
)

// OptimizeFunc optimizes a file in place.
type OptimizeFunc func(ctx context.Context, file string) (*compress.Stats, error)

// CreationTimeFunc gets the time a file was created.
type CreationTimeFunc func(file string) (time.Time, error)

// Runner walks a directory and optimizes the fresh png files it finds,
// one at a time.
type Runner struct {
	Optimize     OptimizeFunc
	CreationTime CreationTimeFunc
	Now          func() time.Time
}

// Summary tallies a run.
//
// Attempted counts the files handed to the optimizer, whether or not the
// optimization then succeeded; it is the count reported at the end of a run.
type Summary struct {
	Attempted  int
	Optimized  int
	Failed     int
	Skipped    int
	BytesSaved int64
}

// NewRunner creates a Runner using the file system creation time and the wall clock.
func NewRunner(optimize OptimizeFunc) *Runner {
	return &Runner{
		Optimize:     optimize,
		CreationTime: util.CreationTime,
		Now:          time.Now,
	}
}

// ElapsedHours is the number of whole hours between created and now.
// A creation time in the future counts as zero hours.
func ElapsedHours(now, created time.Time) int64 {
	secs := now.Unix() - created.Unix()
	if secs < 0 {
		return 0
	}
	return secs / 60 / 60
}

// Run optimizes the png files under dir and logs the number of files attempted.
// The returned error is only set when the walk itself stopped early.
func (r *Runner) Run(ctx context.Context, dir string) (*Summary, error) {
	summary := new(Summary)

	err := util.WalkFilesGlob(ctx, dir, util.PngPattern, func(fp string) error {
		r.process(ctx, fp, summary)
		return nil
	})

	util.Infof(ctx, "optimized %d images", summary.Attempted)
	return summary, err
}

func (r *Runner) process(ctx context.Context, fp string, summary *Summary) {
	created, err := r.CreationTime(fp)
	if err != nil {
		util.Debugf(ctx, "ignoring %s: %s", fp, err)
		summary.Skipped++
		return
	}

	if hours := ElapsedHours(r.Now(), created); hours > util.MaxAgeHours {
		util.Debugf(ctx, "ignoring %s: created %d hours ago", fp, hours)
		summary.Skipped++
		return
	}

	summary.Attempted++

	stats, err := r.Optimize(ctx, fp)
	if err != nil {
		util.Errf(ctx, "failed to optimize %s: %s", fp, err)
		summary.Failed++
		return
	}

	summary.Optimized++
	summary.BytesSaved += stats.Saved()
	util.Infof(ctx, "optimized %s (%d -> %d bytes)", fp, stats.SizeBefore, stats.SizeAfter)
}
