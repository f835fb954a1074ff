package optimizer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/cdnjs/png-optimizer/compress"
	"github.com/cdnjs/png-optimizer/util"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	dir     string
	log     bytes.Buffer
	ctx     context.Context
	created map[string]time.Time
	calls   []string
	runner  *Runner
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:       t,
		dir:     t.TempDir(),
		created: make(map[string]time.Time),
	}
	logger := util.NewLogger(zerolog.InfoLevel, &f.log)
	f.ctx = util.ContextWithEntries(context.Background(), util.GetStandardEntries("", &logger)...)

	f.runner = NewRunner(func(ctx context.Context, file string) (*compress.Stats, error) {
		f.calls = append(f.calls, f.rel(file))
		return &compress.Stats{File: file, SizeBefore: 100, SizeAfter: 90}, nil
	})
	f.runner.Now = func() time.Time { return now }
	f.runner.CreationTime = func(file string) (time.Time, error) {
		if c, ok := f.created[f.rel(file)]; ok {
			return c, nil
		}
		return time.Time{}, util.ErrNoCreationTime
	}
	return f
}

func (f *fixture) rel(fp string) string {
	rel, err := filepath.Rel(f.dir, fp)
	require.NoError(f.t, err)
	return filepath.ToSlash(rel)
}

// add writes a file created age ago. A negative age leaves
// its creation time unknown.
func (f *fixture) add(rel string, data []byte, age time.Duration) string {
	fp := filepath.Join(f.dir, filepath.FromSlash(rel))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(fp), 0755))
	require.NoError(f.t, ioutil.WriteFile(fp, data, 0644))
	if age >= 0 {
		f.created[rel] = now.Add(-age)
	}
	return fp
}

func (f *fixture) run() *Summary {
	summary, err := f.runner.Run(f.ctx, f.dir)
	require.NoError(f.t, err)
	return summary
}

var logLine = regexp.MustCompile(`^\S+ - \[([A-Z]+)\] - (.*)$`)

// entries returns the logged lines as "LEVEL message".
func (f *fixture) entries() []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSuffix(f.log.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		m := logLine.FindStringSubmatch(line)
		require.NotNil(f.t, m, line)
		out = append(out, m[1]+" "+m[2])
	}
	return out
}

func validPng(t *testing.T) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 7 * 30)
	}
	img.Set(0, 0, color.NRGBA{A: 255})

	var b bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&b, img))
	return b.Bytes()
}

func TestElapsedHours(t *testing.T) {
	cases := []struct {
		name    string
		created time.Time
		hours   int64
	}{
		{"just created", now, 0},
		{"59 minutes", now.Add(-59 * time.Minute), 0},
		{"23 hours", now.Add(-23 * time.Hour), 23},
		{"24 hours", now.Add(-24 * time.Hour), 24},
		{"24 hours and 1 second", now.Add(-24*time.Hour - time.Second), 24},
		{"24 hours 59 minutes", now.Add(-24*time.Hour - 59*time.Minute), 24},
		{"25 hours", now.Add(-25 * time.Hour), 25},
		{"fractional seconds dropped", now.Add(-time.Hour + time.Millisecond), 1},
		{"in the future", now.Add(3 * time.Hour), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.hours, ElapsedHours(now, tc.created))
		})
	}
}

func TestRunAgeFilter(t *testing.T) {
	f := newFixture(t)
	f.add("fresh.png", nil, 23*time.Hour)
	f.add("boundary.png", nil, 24*time.Hour+59*time.Minute)
	f.add("stale.png", nil, 25*time.Hour)
	f.add("old.png", nil, 30*24*time.Hour)
	f.add("future.png", nil, -time.Hour)
	f.created["future.png"] = now.Add(time.Hour)
	f.add("unknown.png", nil, -1)

	summary := f.run()

	assert.ElementsMatch(t, []string{"boundary.png", "fresh.png", "future.png"}, f.calls)
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 3, summary.Optimized)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, int64(30), summary.BytesSaved)
}

func TestRunSkipsSilently(t *testing.T) {
	f := newFixture(t)
	f.add("stale.png", nil, 48*time.Hour)
	f.add("unknown.png", nil, -1)

	f.runner.CreationTime = func(file string) (time.Time, error) {
		if strings.HasSuffix(file, "unknown.png") {
			return time.Time{}, errors.New("permission denied")
		}
		return now.Add(-48 * time.Hour), nil
	}

	summary := f.run()

	assert.Empty(t, f.calls)
	assert.Equal(t, 0, summary.Attempted)
	assert.Equal(t, []string{"INFO optimized 0 images"}, f.entries())
}

func TestRunEmptyDir(t *testing.T) {
	f := newFixture(t)
	f.add("notes.txt", nil, 0)
	f.add("image.jpg", nil, 0)

	summary := f.run()

	assert.Empty(t, f.calls)
	assert.Equal(t, 0, summary.Attempted)
	assert.Equal(t, []string{"INFO optimized 0 images"}, f.entries())
}

func TestRunMissingDir(t *testing.T) {
	f := newFixture(t)

	summary, err := f.runner.Run(f.ctx, filepath.Join(f.dir, "missing"))
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Attempted)
	assert.Equal(t, []string{"INFO optimized 0 images"}, f.entries())
}

func TestRunNested(t *testing.T) {
	f := newFixture(t)
	f.add("root.png", nil, time.Hour)
	f.add("a/b/c/deep.png", nil, time.Hour)

	summary := f.run()

	assert.Equal(t, []string{"a/b/c/deep.png", "root.png"}, f.calls)
	assert.Equal(t, 2, summary.Attempted)
}

func TestRunValidAndCorrupt(t *testing.T) {
	f := newFixture(t)
	valid := f.add("valid.png", validPng(t), time.Hour)
	corrupt := f.add("corrupt.png", []byte("definitely not a png"), time.Hour)
	f.runner.Optimize = compress.Png

	summary := f.run()

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Optimized)
	assert.Equal(t, 1, summary.Failed)

	entries := f.entries()
	require.Len(t, entries, 3)
	assert.True(t, strings.HasPrefix(entries[0], "ERROR failed to optimize "+corrupt+": "), entries[0])
	assert.True(t, strings.HasPrefix(entries[1], "INFO optimized "+valid+" ("), entries[1])
	assert.Equal(t, "INFO optimized 2 images", entries[2])

	data, err := ioutil.ReadFile(corrupt)
	require.NoError(t, err)
	assert.Equal(t, "definitely not a png", string(data))
}

func TestRunTwice(t *testing.T) {
	f := newFixture(t)
	fp := f.add("image.png", validPng(t), time.Hour)
	f.runner.Optimize = compress.Png

	first := f.run()
	require.Equal(t, 1, first.Optimized)
	optimized, err := ioutil.ReadFile(fp)
	require.NoError(t, err)

	second := f.run()
	assert.Equal(t, 1, second.Attempted)
	assert.Equal(t, 1, second.Optimized)
	assert.Zero(t, second.BytesSaved)

	data, err := ioutil.ReadFile(fp)
	require.NoError(t, err)
	assert.Equal(t, optimized, data)

	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t)
	f.add("a.png", nil, time.Hour)
	f.add("b.png", nil, time.Hour)

	ctx, cancel := context.WithCancel(f.ctx)
	optimize := f.runner.Optimize
	f.runner.Optimize = func(ctx context.Context, file string) (*compress.Stats, error) {
		cancel()
		return optimize(ctx, file)
	}

	summary, err := f.runner.Run(ctx, f.dir)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a.png"}, f.calls)
	assert.Equal(t, 1, summary.Attempted)
}
