// Package dds reads and writes DirectDraw Surface files.
//
// A DDS holds one or more slices (array elements, cube faces or depth
// layers). Each slice stores every mip level back to back, largest first.
// Headers read from disk are kept verbatim so Load followed by Save
// reproduces the input.
package dds

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/goopsie/uetextools/pkg/archive"
)

// Layout describes the shape of a surface.
type Layout struct {
	Width     uint32
	Height    uint32
	Depth     uint32
	Mips      uint32
	ArraySize uint32
	Cube      bool
}

// MipSize is the logical size of one mip level and its byte size per slice.
type MipSize struct {
	Width  uint32
	Height uint32
	Bytes  uint32
}

// DDS is a decoded surface.
type DDS struct {
	Header Header
	DX10   *DX10Header
	Format Format
	Slices [][]byte
}

type options struct {
	logger *slog.Logger
}

// Option configures Parse and Load.
type Option func(*options)

// WithLogger routes warnings to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Load reads a .dds file, or a .dds.zst container holding one.
func Load(path string, opts ...Option) (*DDS, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read dds")
	}
	if archive.IsContainer(data) {
		if data, err = archive.Decompress(data); err != nil {
			return nil, errors.Wrapf(err, "decompress %s", filepath.Base(path))
		}
	}
	d, err := Parse(data, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", filepath.Base(path))
	}
	return d, nil
}

// Parse decodes a DDS file image.
func Parse(data []byte, opts ...Option) (*DDS, error) {
	o := newOptions(opts)
	r := bytes.NewReader(data)

	d := &DDS{}
	if err := binary.Read(r, binary.LittleEndian, &d.Header); err != nil {
		return nil, &archive.BufferBoundsError{Name: "dds", Size: binary.Size(d.Header), Available: len(data)}
	}
	h := &d.Header
	if h.Magic != magic || h.Size != HeaderSize {
		return nil, &archive.FormatError{Name: "dds", Field: "magic", Msg: "not a DDS file"}
	}

	switch {
	case h.IsDX10():
		d.DX10 = &DX10Header{}
		if err := binary.Read(r, binary.LittleEndian, d.DX10); err != nil {
			return nil, &archive.BufferBoundsError{Name: "dds", Offset: 128, Size: 20, Available: len(data) - 128}
		}
		if d.DX10.ResourceDimension == Dimension1D {
			return nil, &archive.FormatError{Name: "dds", Offset: 132, Field: "resource dimension",
				Msg: "1D textures are unsupported"}
		}
		d.Format = Format(d.DX10.DXGIFormat)
		if d.Format > MaxDX10Format {
			return nil, &archive.FormatError{Name: "dds", Offset: 128, Field: "dxgi format",
				Msg: "unknown DXGI format " + d.Format.String()}
		}
	case h.PixelFormat.Flags&PixelFlagFourCC != 0:
		fourCC := h.PixelFormat.FourCC
		if uncanonicalFourCC[fourCC] {
			return nil, &archive.FormatError{Name: "dds", Offset: 84, Field: "fourCC",
				Msg: "uncanonical fourCC " + string(fourCC[:]) + " is unsupported"}
		}
		f, ok := fourCCFormats[fourCC]
		if !ok {
			return nil, &archive.FormatError{Name: "dds", Offset: 84, Field: "fourCC",
				Msg: "unsupported fourCC " + string(fourCC[:])}
		}
		d.Format = f
	default:
		f, ok := formatFromMasks(&h.PixelFormat)
		if !ok {
			o.logger.Warn("unknown pixel format bit masks, assuming B8G8R8A8_UNORM",
				"r", h.PixelFormat.RBitMask, "g", h.PixelFormat.GBitMask,
				"b", h.PixelFormat.BBitMask, "a", h.PixelFormat.ABitMask)
			f = DXGIFormatB8G8R8A8Unorm
		}
		d.Format = f
	}
	if !d.Format.Supported() {
		return nil, errors.Errorf("unsupported DXGI format: %s", d.Format)
	}

	pos := len(data) - r.Len()
	sliceSize := int(d.SliceSize())
	n := int(d.NumSlices())
	d.Slices = make([][]byte, n)
	for i := range d.Slices {
		if pos+sliceSize > len(data) {
			return nil, &archive.BufferBoundsError{Name: "dds", Offset: pos, Size: sliceSize, Available: len(data) - pos}
		}
		d.Slices[i] = data[pos : pos+sliceSize : pos+sliceSize]
		pos += sliceSize
	}
	if pos != len(data) {
		return nil, &archive.FormatError{Name: "dds", Offset: pos, Msg: "unexpected data after the last slice"}
	}

	o.logger.Debug("parsed dds", "type", d.TextureType(), "format", d.Format.String(),
		"width", d.Width(), "height", d.Height(), "mips", d.MipCount(), "slices", n)
	return d, nil
}

// New builds a DDS with a freshly computed header. slices must match the layout.
func New(format Format, l Layout, slices [][]byte) (*DDS, error) {
	d := &DDS{Slices: slices}
	if err := d.Update(format, l); err != nil {
		return nil, err
	}
	if uint32(len(slices)) != d.NumSlices() {
		return nil, errors.Errorf("got %d slices, layout needs %d", len(slices), d.NumSlices())
	}
	size := int(d.SliceSize())
	for i, s := range slices {
		if len(s) != size {
			return nil, errors.Errorf("slice %d is %d bytes, expected %d", i, len(s), size)
		}
	}
	return d, nil
}

// Update rewrites the header for a new format and layout. Slice data is untouched.
func (d *DDS) Update(format Format, l Layout) error {
	if !format.Supported() {
		return errors.Errorf("unsupported DXGI format: %s", format)
	}
	if l.Mips == 0 {
		l.Mips = 1
	}
	if l.Depth == 0 {
		l.Depth = 1
	}
	if l.ArraySize == 0 {
		l.ArraySize = 1
	}
	custom, isCustom := customFourCC[format]
	if isCustom && l.ArraySize > 1 {
		return errors.Errorf("%s cannot be stored as an array", format)
	}

	is3D := l.Depth > 1
	pitch := format.RowPitch(l.Width)
	if format.IsCompressed() {
		pitch = format.SurfaceSize(l.Width, l.Height)
		if l.Cube {
			pitch *= 6
		}
	}

	d.Format = format
	d.Header = Header{
		Magic:             magic,
		Size:              HeaderSize,
		Flags:             headerFlags(format.IsCompressed(), is3D),
		Height:            l.Height,
		Width:             l.Width,
		PitchOrLinearSize: pitch,
		Depth:             l.Depth,
		MipMapCount:       l.Mips,
		ToolTag:           toolTag,
		PixelFormat: PixelFormat{
			Size:   PixelFormatSize,
			Flags:  PixelFlagFourCC,
			FourCC: fourCCDX10,
		},
		Caps:  caps(l.Mips > 1, l.Cube),
		Caps2: caps2(l.Cube, is3D),
	}
	if isCustom {
		d.Header.PixelFormat.FourCC = custom
		d.DX10 = nil
		return nil
	}

	d.DX10 = &DX10Header{
		DXGIFormat:        uint32(format),
		ResourceDimension: Dimension2D,
		ArraySize:         l.ArraySize,
	}
	if is3D {
		d.DX10.ResourceDimension = Dimension3D
	}
	if l.Cube {
		d.DX10.MiscFlag = MiscTextureCube
	}
	return nil
}

// Layout returns the normalized shape of the surface.
func (d *DDS) Layout() Layout {
	return Layout{
		Width:     d.Width(),
		Height:    d.Height(),
		Depth:     d.Depth(),
		Mips:      d.MipCount(),
		ArraySize: d.ArraySize(),
		Cube:      d.IsCube(),
	}
}

func (d *DDS) Width() uint32  { return d.Header.Width }
func (d *DDS) Height() uint32 { return d.Header.Height }

// Depth returns the depth of a volume texture, 1 otherwise.
func (d *DDS) Depth() uint32 { return max(1, d.Header.Depth) }

// MipCount returns the number of mip levels, at least 1.
func (d *DDS) MipCount() uint32 { return max(1, d.Header.MipMapCount) }

// ArraySize returns the DX10 array size, 1 without an extension header.
func (d *DDS) ArraySize() uint32 {
	if d.DX10 == nil {
		return 1
	}
	return max(1, d.DX10.ArraySize)
}

func (d *DDS) IsCube() bool {
	if d.Header.Caps2&Caps2Cubemap != 0 {
		return true
	}
	return d.DX10 != nil && d.DX10.MiscFlag&MiscTextureCube != 0
}

func (d *DDS) Is3D() bool    { return d.Depth() > 1 }
func (d *DDS) IsArray() bool { return d.ArraySize() > 1 }

// NumSlices returns array size x depth x faces.
func (d *DDS) NumSlices() uint32 {
	n := d.ArraySize() * d.Depth()
	if d.IsCube() {
		n *= 6
	}
	return n
}

// TextureType returns 2D, Cube, 3D, 2DArray or CubeArray.
func (d *DDS) TextureType() string {
	return TextureType(d.IsCube(), d.Is3D(), d.IsArray())
}

func (d *DDS) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("format", d.Format.String()),
		slog.String("type", d.TextureType()),
		slog.Any("width", d.Width()),
		slog.Any("height", d.Height()),
		slog.Any("depth", d.Depth()),
		slog.Any("mips", d.MipCount()),
		slog.Any("array_size", d.ArraySize()),
	)
}

// TextureType names a texture shape the way both DDS and package textures report it.
func TextureType(cube, is3D, array bool) string {
	if is3D {
		return "3D"
	}
	t := "2D"
	if cube {
		t = "Cube"
	}
	if array {
		t += "Array"
	}
	return t
}

// MipSizes returns the logical size of each mip and its byte size within a slice.
func (d *DDS) MipSizes() []MipSize {
	return MipSizes(d.Format, d.Width(), d.Height(), d.MipCount())
}

// MipSizes computes mip dimensions for a surface of the given format.
func MipSizes(f Format, width, height, mips uint32) []MipSize {
	out := make([]MipSize, mips)
	for i := range out {
		w := max(1, width>>i)
		h := max(1, height>>i)
		out[i] = MipSize{Width: w, Height: h, Bytes: f.SurfaceSize(w, h)}
	}
	return out
}

// SliceSize returns the byte size of one slice including all mips.
func (d *DDS) SliceSize() uint32 {
	var n uint32
	for _, m := range d.MipSizes() {
		n += m.Bytes
	}
	return n
}

// Mip returns the bytes of mip level i of slice s.
func (d *DDS) Mip(s, i int) []byte {
	sizes := d.MipSizes()
	off := uint32(0)
	for _, m := range sizes[:i] {
		off += m.Bytes
	}
	return d.Slices[s][off : off+sizes[i].Bytes]
}

// Bytes encodes the file.
func (d *DDS) Bytes() []byte {
	size := 128 + int(d.SliceSize())*len(d.Slices)
	if d.DX10 != nil {
		size += 20
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, &d.Header)
	if d.Header.IsDX10() && d.DX10 != nil {
		_ = binary.Write(buf, binary.LittleEndian, d.DX10)
	}
	for _, s := range d.Slices {
		buf.Write(s)
	}
	return buf.Bytes()
}

// Save writes the file, creating parent directories.
func (d *DDS) Save(path string) error {
	return writeFile(path, d.Bytes())
}

// SaveCompressed writes the file inside a zstd container.
func (d *DDS) SaveCompressed(path string, level int) error {
	data, err := archive.Compress(d.Bytes(), archive.WithCompressionLevel(level))
	if err != nil {
		return errors.Wrap(err, "compress dds")
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write dds")
	}
	return nil
}

// Disassemble splits an array or volume into single-element surfaces. Cube
// arrays split into cubes.
func (d *DDS) Disassemble() ([]*DDS, error) {
	faces := 1
	if d.IsCube() {
		faces = 6
	}
	l := d.Layout()
	l.Depth, l.ArraySize = 1, 1

	n := len(d.Slices) / faces
	out := make([]*DDS, n)
	for i := range out {
		part, err := New(d.Format, l, d.Slices[i*faces:(i+1)*faces])
		if err != nil {
			return nil, err
		}
		out[i] = part
	}
	return out, nil
}

// Assemble joins single-element surfaces into an array, or a volume when
// array is false.
func Assemble(parts []*DDS, array bool) (*DDS, error) {
	if len(parts) == 0 {
		return nil, errors.New("nothing to assemble")
	}
	first := parts[0]
	l := first.Layout()
	var slices [][]byte
	for i, p := range parts {
		if p.Format != first.Format {
			return nil, errors.Errorf("part %d: DXGI formats should be the same", i)
		}
		pl := p.Layout()
		if pl.Width != l.Width || pl.Height != l.Height || pl.Mips != l.Mips || pl.Cube != l.Cube {
			return nil, errors.Errorf("part %d: texture sizes should be the same", i)
		}
		slices = append(slices, p.Slices...)
	}
	if array {
		l.ArraySize = uint32(len(parts))
	} else {
		l.Depth = uint32(len(parts))
	}
	return New(first.Format, l, slices)
}
