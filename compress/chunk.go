package compress

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// ErrNotPNG is returned when a file does not start with the png signature.
var ErrNotPNG = errors.New("not a png file")

// largest chunk length allowed by the png format
const maxChunkLen = 1<<31 - 1

type chunk struct {
	typ  string
	data []byte
}

// pngFile is a png split into its chunks. Anything found
// after IEND is kept in trailer.
type pngFile struct {
	chunks  []chunk
	trailer []byte
}

type header struct {
	width, height uint32
	depth         uint8
	colorType     uint8
	interlaced    bool
}

func parsePng(b []byte) (*pngFile, error) {
	if !bytes.HasPrefix(b, pngSignature) {
		return nil, ErrNotPNG
	}
	b = b[len(pngSignature):]

	p := new(pngFile)
	for {
		if len(b) < 12 {
			return nil, errors.New("truncated chunk")
		}
		n := binary.BigEndian.Uint32(b[:4])
		if n > maxChunkLen || uint64(len(b)) < 12+uint64(n) {
			return nil, errors.New("truncated chunk")
		}
		typ := string(b[4:8])
		if crc32.ChecksumIEEE(b[4:8+n]) != binary.BigEndian.Uint32(b[8+n:12+n]) {
			return nil, errors.Errorf("invalid checksum for chunk %s", typ)
		}
		p.chunks = append(p.chunks, chunk{typ: typ, data: b[8 : 8+n]})
		b = b[12+n:]

		if typ == "IEND" {
			break
		}
	}
	p.trailer = b

	if p.chunks[0].typ != "IHDR" {
		return nil, errors.New("first chunk is not IHDR")
	}

	// image data must be stored in consecutive IDAT chunks
	first, last := -1, -1
	for i, c := range p.chunks {
		if c.typ != "IDAT" {
			continue
		}
		if first == -1 {
			first = i
		} else if last != i-1 {
			return nil, errors.New("IDAT chunks are not consecutive")
		}
		last = i
	}
	if first == -1 {
		return nil, errors.New("missing IDAT chunk")
	}
	return p, nil
}

func (p *pngFile) header() (*header, error) {
	d := p.chunks[0].data
	if len(d) != 13 {
		return nil, errors.Errorf("invalid IHDR length %d", len(d))
	}
	h := &header{
		width:      binary.BigEndian.Uint32(d[0:4]),
		height:     binary.BigEndian.Uint32(d[4:8]),
		depth:      d[8],
		colorType:  d[9],
		interlaced: d[12] == 1,
	}
	if h.width == 0 || h.height == 0 {
		return nil, errors.New("image has no pixels")
	}
	if h.channels() == 0 {
		return nil, errors.Errorf("invalid color type %d", h.colorType)
	}
	switch h.depth {
	case 1, 2, 4, 8, 16:
	default:
		return nil, errors.Errorf("invalid bit depth %d", h.depth)
	}
	return h, nil
}

func (h *header) channels() uint64 {
	switch h.colorType {
	case 0, 3:
		return 1
	case 4:
		return 2
	case 2:
		return 3
	case 6:
		return 4
	}
	return 0
}

// adam7 holds the x offset, y offset, x step and y step of each interlace pass.
var adam7 = [7][4]uint64{
	{0, 0, 8, 8},
	{4, 0, 8, 8},
	{0, 4, 4, 8},
	{2, 0, 4, 4},
	{0, 2, 2, 4},
	{1, 0, 2, 2},
	{0, 1, 1, 2},
}

// rawSize is the length of the filtered scanlines once inflated.
func (h *header) rawSize() uint64 {
	bpp := h.channels() * uint64(h.depth)
	lines := func(w, rows uint64) uint64 {
		if w == 0 || rows == 0 {
			return 0
		}
		return rows * (1 + (w*bpp+7)/8)
	}

	w, ht := uint64(h.width), uint64(h.height)
	if !h.interlaced {
		return lines(w, ht)
	}

	var size uint64
	for _, pass := range adam7 {
		if w <= pass[0] || ht <= pass[1] {
			continue
		}
		size += lines((w-pass[0]+pass[2]-1)/pass[2], (ht-pass[1]+pass[3]-1)/pass[3])
	}
	return size
}

// idat returns the zlib stream spread over the IDAT chunks.
func (p *pngFile) idat() []byte {
	var b bytes.Buffer
	for _, c := range p.chunks {
		if c.typ == "IDAT" {
			b.Write(c.data)
		}
	}
	return b.Bytes()
}

// encode writes the png back, replacing all IDAT chunks
// with a single one holding data.
func (p *pngFile) encode(w io.Writer, data []byte) error {
	if len(data) > maxChunkLen {
		return errors.New("image data too large for a single chunk")
	}
	if _, err := w.Write(pngSignature); err != nil {
		return err
	}
	written := false
	for _, c := range p.chunks {
		if c.typ == "IDAT" {
			if written {
				continue
			}
			c.data = data
			written = true
		}
		if err := writeChunk(w, c); err != nil {
			return err
		}
	}
	_, err := w.Write(p.trailer)
	return err
}

func writeChunk(w io.Writer, c chunk) error {
	var head [8]byte
	binary.BigEndian.PutUint32(head[:4], uint32(len(c.data)))
	copy(head[4:], c.typ)

	crc := crc32.NewIEEE()
	crc.Write(head[4:])
	crc.Write(c.data)

	var tail [4]byte
	binary.BigEndian.PutUint32(tail[:], crc.Sum32())

	for _, b := range [][]byte{head[:], c.data, tail[:]} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}
