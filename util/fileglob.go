package util

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// FileFunc is called with the full path of every file matched while walking.
type FileFunc func(fp string) error

// WalkFilesGlob walks base recursively and calls fn, one file at a time, for each
// regular file whose path relative to base matches pattern. The pattern uses '/'
// as separator, so '*' stays within a directory and '**' crosses them.
// Entries that cannot be read are logged as errors and skipped.
// A symlinked base is resolved, but symbolic links below it are
// neither followed nor matched. Paths passed to fn stay under base.
// It utilizes the fast godirwalk library found here: https://github.com/karrick/godirwalk
func WalkFilesGlob(ctx context.Context, base string, pattern string, fn FileFunc) error {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return errors.Wrapf(err, "invalid glob %s", pattern)
	}

	if _, err := os.Stat(base); os.IsNotExist(err) {
		Debugf(ctx, "match %s in %s but doesn't exist", pattern, base)
		return nil
	}

	root, err := filepath.EvalSymlinks(base)
	if err != nil {
		return errors.Wrapf(err, "could not resolve %s", base)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		Debugf(ctx, "match %s in %s but isn't a directory", pattern, base)
		return nil
	}

	return godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(fp string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !de.IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, fp)
			if err != nil {
				return errors.Wrapf(err, "could not make %s relative", fp)
			}
			if !g.Match(filepath.ToSlash(rel)) {
				return nil
			}
			return fn(filepath.Join(base, rel))
		},
		ErrorCallback: func(fp string, err error) godirwalk.ErrorAction {
			if ctx.Err() != nil {
				return godirwalk.Halt
			}
			Errf(ctx, "glob error: %s", err)
			return godirwalk.SkipNode
		},
	})
}
