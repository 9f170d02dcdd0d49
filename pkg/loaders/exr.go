package loaders

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/mrjoshuak/go-openexr/half"

	"github.com/df07/go-mitsuba-pathtracer/pkg/texture"
)

// ErrInvalidEXR is returned for malformed OpenEXR files.
var ErrInvalidEXR = fmt.Errorf("%w: openexr", ErrInvalidImage)

const exrMagic = 20000630

// Version field flags for layouts other than single-part scanline
const (
	exrTiledFlag     = 0x200
	exrDeepFlag      = 0x800
	exrMultipartFlag = 0x1000
)

type exrCompression uint8

const (
	exrNoCompression exrCompression = iota
	exrRLE
	exrZIPS
	exrZIP
	exrPIZ
	exrPXR24
	exrB44
	exrB44A
	exrDWAA
	exrDWAB
)

var exrCompressionNames = [...]string{"none", "rle", "zips", "zip", "piz", "pxr24", "b44", "b44a", "dwaa", "dwab"}

func (c exrCompression) String() string {
	if int(c) < len(exrCompressionNames) {
		return exrCompressionNames[c]
	}
	return fmt.Sprintf("compression(%d)", c)
}

func (c exrCompression) supported() bool {
	return c <= exrZIP
}

func (c exrCompression) linesPerBlock() int {
	if c == exrZIP {
		return 16
	}
	return 1
}

// Channel pixel types
const (
	exrUint  int32 = 0
	exrHalf  int32 = 1
	exrFloat int32 = 2
)

type exrChannel struct {
	name      string
	pixelType int32
}

func (c exrChannel) size() int {
	if c.pixelType == exrHalf {
		return 2
	}
	return 4
}

type exrHeader struct {
	channels    []exrChannel
	compression exrCompression
	xMin, yMin  int32
	xMax, yMax  int32
}

// exrReader walks a little-endian byte slice and remembers the first short read
type exrReader struct {
	data []byte
	pos  int
	err  error
}

func (r *exrReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.pos < n {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *exrReader) uint32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *exrReader) int32() int32 {
	return int32(r.uint32())
}

func (r *exrReader) uint64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *exrReader) cstring() string {
	if r.err != nil {
		return ""
	}
	end := bytes.IndexByte(r.data[r.pos:], 0)
	if end < 0 {
		r.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(r.data[r.pos : r.pos+end])
	r.pos += end + 1
	return s
}

// LoadEXR reads a single-part scanline OpenEXR image
func LoadEXR(filename string) (*texture.Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open EXR file: %w", err)
	}
	defer file.Close()

	img, err := DecodeEXR(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return img, nil
}

// DecodeEXR decodes a single-part scanline OpenEXR stream into linear texels.
// Uncompressed, RLE, ZIPS and ZIP blocks are supported; R, G, B and A
// channels map to texel channels and a lone Y (or any single) channel is
// read as grey. Missing alpha is opaque.
func DecodeEXR(r io.Reader) (*texture.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEXR, err)
	}
	rd := &exrReader{data: data}
	h, err := readEXRHeader(rd)
	if err != nil {
		return nil, err
	}

	width := int(h.xMax) - int(h.xMin) + 1
	height := int(h.yMax) - int(h.yMin) + 1
	if err := checkImageSize(width, height); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEXR, err)
	}
	if !h.compression.supported() {
		return nil, fmt.Errorf("%w: %s compressed EXR", ErrUnsupportedFormat, h.compression)
	}

	lines := h.compression.linesPerBlock()
	offsets := make([]uint64, (height+lines-1)/lines)
	for i := range offsets {
		offsets[i] = rd.uint64()
	}
	if rd.err != nil {
		return nil, fmt.Errorf("%w: truncated offset table", ErrInvalidEXR)
	}

	rowBytes := 0
	for _, ch := range h.channels {
		rowBytes += width * ch.size()
	}
	slots := exrChannelSlots(h.channels)

	img := texture.NewImage(width, height)
	for i := range img.Texels {
		img.Texels[i].A = 1
	}

	raw := make([]byte, rowBytes*lines)
	for _, offset := range offsets {
		if offset > uint64(len(data)) {
			return nil, fmt.Errorf("%w: block offset %d past end of file", ErrInvalidEXR, offset)
		}
		block := &exrReader{data: data, pos: int(offset)}
		y := int(block.int32()) - int(h.yMin)
		packed := block.bytes(int(block.int32()))
		if block.err != nil {
			return nil, fmt.Errorf("%w: truncated block at offset %d", ErrInvalidEXR, offset)
		}
		if y < 0 || y >= height || y%lines != 0 {
			return nil, fmt.Errorf("%w: block line %d outside the data window", ErrInvalidEXR, y+int(h.yMin))
		}

		n := min(lines, height-y)
		if err := exrUncompress(h.compression, packed, raw[:n*rowBytes]); err != nil {
			return nil, fmt.Errorf("%w: block line %d: %v", ErrInvalidEXR, y+int(h.yMin), err)
		}
		for line := 0; line < n; line++ {
			decodeEXRLine(raw[line*rowBytes:(line+1)*rowBytes], h.channels, slots, img, y+line)
		}
	}
	return img, nil
}

func readEXRHeader(r *exrReader) (exrHeader, error) {
	var h exrHeader
	if magic := r.uint32(); magic != exrMagic {
		return h, fmt.Errorf("%w: bad magic number", ErrInvalidEXR)
	}
	version := r.uint32()
	if version&0xff != 2 {
		return h, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, version&0xff)
	}
	if version&(exrTiledFlag|exrDeepFlag|exrMultipartFlag) != 0 {
		return h, fmt.Errorf("%w: tiled, deep or multi-part EXR", ErrUnsupportedFormat)
	}

	var haveCompression, haveWindow bool
	for {
		name := r.cstring()
		if r.err != nil {
			return h, fmt.Errorf("%w: unterminated header", ErrInvalidEXR)
		}
		if name == "" {
			break
		}
		typ := r.cstring()
		value := r.bytes(int(r.int32()))
		if r.err != nil {
			return h, fmt.Errorf("%w: truncated attribute %q", ErrInvalidEXR, name)
		}

		switch {
		case name == "channels" && typ == "chlist":
			channels, err := parseEXRChannels(value)
			if err != nil {
				return h, err
			}
			h.channels = channels
		case name == "compression" && typ == "compression" && len(value) == 1:
			h.compression = exrCompression(value[0])
			haveCompression = true
		case name == "dataWindow" && typ == "box2i" && len(value) == 16:
			box := &exrReader{data: value}
			h.xMin, h.yMin, h.xMax, h.yMax = box.int32(), box.int32(), box.int32(), box.int32()
			haveWindow = true
		}
	}

	switch {
	case len(h.channels) == 0:
		return h, fmt.Errorf("%w: no channels", ErrInvalidEXR)
	case !haveCompression:
		return h, fmt.Errorf("%w: missing compression", ErrInvalidEXR)
	case !haveWindow:
		return h, fmt.Errorf("%w: missing data window", ErrInvalidEXR)
	}
	return h, nil
}

func parseEXRChannels(value []byte) ([]exrChannel, error) {
	r := &exrReader{data: value}
	var channels []exrChannel
	for {
		name := r.cstring()
		if name == "" {
			break
		}
		ch := exrChannel{name: name, pixelType: r.int32()}
		r.bytes(4) // pLinear and reserved
		xSampling, ySampling := r.int32(), r.int32()
		if r.err != nil {
			return nil, fmt.Errorf("%w: truncated channel list", ErrInvalidEXR)
		}
		if ch.pixelType < exrUint || ch.pixelType > exrFloat {
			return nil, fmt.Errorf("%w: channel %q has pixel type %d", ErrInvalidEXR, name, ch.pixelType)
		}
		if xSampling != 1 || ySampling != 1 {
			return nil, fmt.Errorf("%w: subsampled channel %q", ErrUnsupportedFormat, name)
		}
		channels = append(channels, ch)
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: truncated channel list", ErrInvalidEXR)
	}
	return channels, nil
}

// Texel destinations for a channel
const (
	exrSkip = iota
	exrRed
	exrGreen
	exrBlue
	exrAlpha
	exrGrey
)

// exrChannelSlots maps each channel to a texel channel. Layer prefixes such
// as "diffuse." are ignored and the first match per channel wins.
func exrChannelSlots(channels []exrChannel) []int {
	slots := make([]int, len(channels))
	taken := map[int]bool{}
	luminance := -1
	for i, ch := range channels {
		base := ch.name[strings.LastIndexByte(ch.name, '.')+1:]
		slot := exrSkip
		switch base {
		case "R":
			slot = exrRed
		case "G":
			slot = exrGreen
		case "B":
			slot = exrBlue
		case "A":
			slot = exrAlpha
		case "Y":
			if luminance < 0 {
				luminance = i
			}
		}
		if slot != exrSkip && !taken[slot] {
			slots[i] = slot
			taken[slot] = true
		}
	}
	if !taken[exrRed] && !taken[exrGreen] && !taken[exrBlue] {
		if luminance < 0 {
			luminance = 0
		}
		slots[luminance] = exrGrey
	}
	return slots
}

func decodeEXRLine(line []byte, channels []exrChannel, slots []int, img *texture.Image, y int) {
	width := img.Width
	row := img.Texels[y*width : (y+1)*width]
	pos := 0
	for i, ch := range channels {
		size := ch.size()
		if slots[i] != exrSkip {
			for x := range row {
				v := exrValue(line[pos+x*size:], ch.pixelType)
				t := &row[x]
				switch slots[i] {
				case exrRed:
					t.R = v
				case exrGreen:
					t.G = v
				case exrBlue:
					t.B = v
				case exrAlpha:
					t.A = v
				case exrGrey:
					t.R, t.G, t.B = v, v, v
				}
			}
		}
		pos += width * size
	}
}

func exrValue(b []byte, pixelType int32) float64 {
	switch pixelType {
	case exrHalf:
		return float64(half.Half(binary.LittleEndian.Uint16(b)).Float32())
	case exrFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return float64(binary.LittleEndian.Uint32(b))
	}
}

// exrUncompress fills raw from one block. A block whose packed size equals
// the raw size was stored uncompressed.
func exrUncompress(c exrCompression, packed, raw []byte) error {
	if c == exrNoCompression || len(packed) == len(raw) {
		if len(packed) != len(raw) {
			return fmt.Errorf("block holds %d bytes, want %d", len(packed), len(raw))
		}
		copy(raw, packed)
		return nil
	}

	tmp := make([]byte, len(raw))
	switch c {
	case exrRLE:
		if err := exrRLEDecode(packed, tmp); err != nil {
			return err
		}
	case exrZIPS, exrZIP:
		zr, err := zlib.NewReader(bytes.NewReader(packed))
		if err != nil {
			return err
		}
		defer zr.Close()
		if _, err := io.ReadFull(zr, tmp); err != nil {
			return err
		}
	}

	// Undo the byte delta predictor, then merge the two half-buffers
	for i := 1; i < len(tmp); i++ {
		tmp[i] = tmp[i-1] + tmp[i] - 128
	}
	mid := (len(tmp) + 1) / 2
	for i := range raw {
		if i%2 == 0 {
			raw[i] = tmp[i/2]
		} else {
			raw[i] = tmp[mid+i/2]
		}
	}
	return nil
}

// exrRLEDecode expands runs: a negative count precedes that many literal
// bytes, a count n >= 0 repeats the next byte n+1 times.
func exrRLEDecode(src, dst []byte) error {
	out := 0
	for i := 0; i < len(src); {
		count := int(int8(src[i]))
		i++
		if count < 0 {
			n := -count
			if i+n > len(src) || out+n > len(dst) {
				return errors.New("literal run overflows block")
			}
			copy(dst[out:], src[i:i+n])
			i += n
			out += n
			continue
		}
		n := count + 1
		if i >= len(src) || out+n > len(dst) {
			return errors.New("repeat run overflows block")
		}
		for k := 0; k < n; k++ {
			dst[out+k] = src[i]
		}
		i++
		out += n
	}
	if out != len(dst) {
		return fmt.Errorf("block expands to %d bytes, want %d", out, len(dst))
	}
	return nil
}
