package compress

import (
	"bytes"
	stdzlib "compress/zlib"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/cdnjs/png-optimizer/util"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// Stats describes the result of optimizing a file.
type Stats struct {
	File       string
	SizeBefore int64
	SizeAfter  int64
}

// Saved is the number of bytes the optimization removed.
func (s *Stats) Saved() int64 {
	return s.SizeBefore - s.SizeAfter
}

// deflaters are tried in order and the smallest output wins.
var deflaters = []func(io.Writer) (io.WriteCloser, error){
	func(w io.Writer) (io.WriteCloser, error) {
		return zlib.NewWriterLevel(w, zlib.BestCompression)
	},
	func(w io.Writer) (io.WriteCloser, error) {
		return stdzlib.NewWriterLevel(w, stdzlib.BestCompression)
	},
}

// Png performs an in-place lossless compression of the file.
// The image data is recompressed while every other chunk is kept
// as is. The file is only replaced when the result is smaller, and
// is left untouched on error.
func Png(ctx context.Context, file string) (*Stats, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, errors.Wrap(err, "could not stat file")
	}
	orig, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "could not read file")
	}

	stats := &Stats{
		File:       file,
		SizeBefore: int64(len(orig)),
		SizeAfter:  int64(len(orig)),
	}

	out, err := optimizePng(orig)
	if err != nil {
		return nil, err
	}
	if len(out) >= len(orig) {
		util.Debugf(ctx, "compress: %s is already optimal", file)
		return stats, nil
	}

	if err := replaceFile(file, out, info.Mode().Perm()); err != nil {
		return nil, err
	}
	stats.SizeAfter = int64(len(out))
	util.Debugf(ctx, "compress: %s %d -> %d bytes", file, stats.SizeBefore, stats.SizeAfter)
	return stats, nil
}

// optimizePng returns the smallest encoding of orig found,
// which may be longer than orig itself.
func optimizePng(orig []byte) ([]byte, error) {
	p, err := parsePng(orig)
	if err != nil {
		return nil, errors.Wrap(err, "invalid png")
	}
	h, err := p.header()
	if err != nil {
		return nil, errors.Wrap(err, "invalid png")
	}
	img, err := png.Decode(bytes.NewReader(orig))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode png")
	}

	raw, err := inflate(p.idat(), h.rawSize())
	if err != nil {
		return nil, errors.Wrap(err, "could not inflate image data")
	}

	var best []byte
	for _, newWriter := range deflaters {
		data, err := deflate(raw, newWriter)
		if err != nil {
			return nil, errors.Wrap(err, "could not deflate image data")
		}
		if best == nil || len(data) < len(best) {
			best = data
		}
	}

	var out bytes.Buffer
	if err := p.encode(&out, best); err != nil {
		return nil, errors.Wrap(err, "could not encode png")
	}

	res, err := png.Decode(bytes.NewReader(out.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode optimized png")
	}
	if !samePixels(img, res) {
		return nil, errors.New("optimized png does not match the original")
	}
	return out.Bytes(), nil
}

func inflate(data []byte, size uint64) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	raw, err := ioutil.ReadAll(io.LimitReader(r, int64(size)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(raw)) != size {
		return nil, errors.Errorf("got %d bytes of image data, expected %d", len(raw), size)
	}
	return raw, nil
}

func deflate(raw []byte, newWriter func(io.Writer) (io.WriteCloser, error)) ([]byte, error) {
	var b bytes.Buffer
	w, err := newWriter(&b)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func samePixels(a, b image.Image) bool {
	r := a.Bounds()
	if !r.Eq(b.Bounds()) {
		return false
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if color.NRGBA64Model.Convert(a.At(x, y)) != color.NRGBA64Model.Convert(b.At(x, y)) {
				return false
			}
		}
	}
	return true
}

// Replaces the file's content through a temporary file in the same
// directory, so a failure never leaves a partially written file.
func replaceFile(file string, data []byte, perm os.FileMode) error {
	tmp, err := ioutil.TempFile(filepath.Dir(file), "."+filepath.Base(file)+".*")
	if err != nil {
		return errors.Wrap(err, "could not create temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "could not write temporary file")
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return errors.Wrap(err, "could not chmod temporary file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "could not sync temporary file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "could not close temporary file")
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return errors.Wrap(err, "could not replace file")
	}
	return nil
}
