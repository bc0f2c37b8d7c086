package unreal

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goopsie/uetextools/pkg/archive"
	"github.com/goopsie/uetextools/pkg/dds"
)

type textureState int

const (
	stateUnloaded textureState = iota
	stateHeaderParsed
	statePropertiesSkipped
	stateMetadataParsed
	stateMipsLoaded
	stateBulkLoaded
	stateReady
)

// stripFlags are the two FStripDataFlags and bCooked that end the property
// block of a cooked texture. UE 5.4 changed the default strip flags to 5.
var stripFlags = [][]byte{
	{0x01, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00},
	{0x05, 0x00, 0x05, 0x00, 0x01, 0x00, 0x00, 0x00},
}

// propertyScanLimit bounds the search for the strip flags.
const propertyScanLimit = 1000

// Texture is a texture export: its tagged properties, kept as bytes, and
// FTexturePlatformData.
type Texture struct {
	pkg    *Package
	export Export
	plan   texturePlan
	state  textureState

	Props            []byte
	SerializeMipData uint32
	PixelFormatName  uint64 // name map index and number
	skipOffset       uint32
	skipOffsetPos    int
	Placeholder      []byte
	ImportedWidth    uint32
	ImportedHeight   uint32
	packed           uint32
	PixelFormat      string
	pixelFormatWide  bool
	pixelFormatPos   int
	Format           dds.Format
	NumMipsInTail    uint32
	FirstMip         uint32
	Mips             []*Mipmap
	tailMip          *Mipmap
	uexpMipCount     uint32
	NoneName         uint64
	LightMapFlags    uint32

	IsCube     bool
	Is3D       bool
	IsArray    bool
	IsLightMap bool
	HasOptData bool
	NumSlices  uint32
	HasUbulk   bool
	HasUptnl   bool

	dirty bool
}

func newTexture(p *Package, e Export) *Texture {
	class := e.ClassName()
	return &Texture{
		pkg:        p,
		export:     e,
		plan:       newTexturePlan(p.ctx.Version),
		state:      stateHeaderParsed,
		IsCube:     strings.Contains(class, "Cube"),
		Is3D:       strings.Contains(class, "Volume"),
		IsArray:    strings.Contains(class, "Array"),
		IsLightMap: strings.Contains(class, "LightMap") || strings.Contains(class, "ShadowMap"),
		NumSlices:  1,
	}
}

// Export returns the export the texture is stored in.
func (t *Texture) Export() Export { return t.export }

// Name returns the object name of the texture.
func (t *Texture) Name() string { return t.export.ObjectName() }

func (t *Texture) Is2D() bool { return !t.IsCube && !t.IsArray && !t.Is3D }

// TextureType returns 2D, Cube, 3D, 2DArray or CubeArray.
func (t *Texture) TextureType() string { return dds.TextureType(t.IsCube, t.Is3D, t.IsArray) }

// ArraySize returns the number of array elements; cube faces count as one.
func (t *Texture) ArraySize() uint32 {
	switch {
	case t.Is3D:
		return 1
	case t.IsCube:
		return t.NumSlices / 6
	}
	return t.NumSlices
}

// Depth returns the depth of a volume texture, 1 otherwise.
func (t *Texture) Depth() uint32 {
	if t.Is3D {
		return t.NumSlices
	}
	return 1
}

// Size returns the dimensions of the largest mip.
func (t *Texture) Size() (w, h uint32) {
	if len(t.Mips) == 0 {
		return 0, 0
	}
	return t.Mips[0].Width, t.Mips[0].Height
}

func (t *Texture) IsCompressed() bool {
	_, ok := uncompressedFallback[t.PixelFormat]
	return ok
}

// HasSupportedFormat reports whether the pixel format maps to a DXGI format.
func (t *Texture) HasSupportedFormat() bool { return t.Format != dds.DXGIFormatUnknown }

// mipCounts returns the number of mips stored inline, in .ubulk and in .uptnl.
func (t *Texture) mipCounts() (uexp, ubulk, uptnl uint32) {
	for _, m := range t.Mips {
		switch m.Type() {
		case BulkUbulk:
			ubulk++
		case BulkUptnl:
			uptnl++
		default:
			uexp++
		}
	}
	return uexp, ubulk, uptnl
}

func (t *Texture) updatePlacement() {
	_, ubulk, uptnl := t.mipCounts()
	t.HasUbulk = ubulk > 0
	t.HasUptnl = uptnl > 0
	if t.plan.tailMip {
		t.HasOptData = t.HasUbulk
	}
}

func (t *Texture) requireReady(op string) {
	if t.state != stateReady {
		panic(fmt.Sprintf("unreal: %s called on a texture that is not loaded", op))
	}
}

// scanProperties returns the size of the property block including the strip flags.
func scanProperties(a *archive.Archive) (int, bool) {
	start := a.Tell()
	buf := a.Bytes()
	limit := min(len(buf)-7, start+propertyScanLimit)
	for i := start; i < limit; i++ {
		for _, marker := range stripFlags {
			if buf[i] == marker[0] && bytes.Equal(buf[i:i+8], marker) {
				return i + 8 - start, true
			}
		}
	}
	return 0, false
}

func (t *Texture) unpackFlags(a *archive.Archive, pos int) {
	if t.plan.packedFlags {
		t.HasOptData = t.packed&(1<<30) != 0
	} else if t.packed&(3<<30) != 0 {
		a.Fail(&archive.FormatError{Name: a.Name(), Offset: pos, Field: "packed data",
			Msg: "Flags for packed_data is not supported for this UE version."})
		return
	}
	t.NumSlices = t.packed & (1<<30 - 1)
}

func (t *Texture) packFlags() {
	t.packed = t.NumSlices
	if !t.plan.packedFlags {
		return
	}
	if t.IsCube {
		t.packed |= 1 << 31
	}
	if t.HasOptData {
		t.packed |= 1 << 30
	}
}

func (t *Texture) updateFormat() {
	f, ok := FormatOf(t.PixelFormat)
	if !ok {
		t.pkg.logger.Warn("unsupported pixel format", "texture", t.Name(), "format", t.PixelFormat)
		f = dds.DXGIFormatUnknown
	}
	t.Format = f
}

// serialize moves the texture object through the export data stream.
// Writers place .ubulk and .uptnl payloads after ubulkStart and uptnlStart.
func (t *Texture) serialize(a *archive.Archive, mc *mipContext, ubulkStart, uptnlStart int64) {
	p := t.plan
	shape := t.pkg.resources.shape

	if a.IsReading() {
		n, ok := scanProperties(a)
		if !ok {
			a.Failf("texture properties", "strip flags not found")
			return
		}
		a.Raw(&t.Props, n)
	} else {
		a.Raw(&t.Props, 0)
	}
	t.state = statePropertiesSkipped

	if p.serializeMipData && t.Is2D() {
		a.Uint32(&t.SerializeMipData)
	}
	a.Uint64(&t.PixelFormatName)
	t.skipOffsetPos = a.Tell()
	a.Uint32(&t.skipOffset)
	if p.reserved {
		a.ConstUint32(0, "platform data reserved")
	}
	if p.placeholder {
		a.Raw(&t.Placeholder, 16)
	}

	var ubulkMips uint32
	if a.IsWriting() {
		t.uexpMipCount, ubulkMips, _ = t.mipCounts()
		if !a.Valid {
			t.packFlags()
		}
	}
	a.Uint32(&t.ImportedWidth)
	a.Uint32(&t.ImportedHeight)
	pos := a.Tell()
	a.Uint32(&t.packed)
	t.pixelFormatPos = a.Tell()
	a.WideString(&t.PixelFormat, &t.pixelFormatWide)
	if a.IsReading() && a.Err() == nil {
		t.unpackFlags(a, pos)
		t.updateFormat()
	}

	if p.tailMip && t.HasOptData {
		a.ConstUint32(0, "tail mip reserved")
		a.ConstUint32(0, "tail mip reserved")
		if a.IsWriting() {
			t.NumMipsInTail = ubulkMips + t.FirstMip
		}
		a.Uint32(&t.NumMipsInTail)
	}
	a.Uint32(&t.FirstMip)
	mipCount := uint32(len(t.Mips))
	a.Uint32(&mipCount)
	t.state = stateMetadataParsed

	if p.tailMip {
		if a.IsWriting() {
			t.packTailMip(shape)
		} else {
			t.tailMip = newMipmap(shape)
		}
		t.tailMip.serialize(a, mc)
		a.ConstUint32(t.NumSlices, "slice count")
		a.Uint32(&t.uexpMipCount)
	}

	if a.IsWriting() {
		ubulk, uptnl := ubulkStart, uptnlStart
		for _, m := range t.Mips {
			b := m.Resource.Bulk()
			switch b.Type {
			case BulkUbulk:
				b.Offset = ubulk
				ubulk += int64(len(m.Data))
			case BulkUptnl:
				b.Offset = uptnl
				uptnl += int64(len(m.Data))
			}
		}
	}

	archive.Array(a, &t.Mips, int(mipCount), func(a *archive.Archive, m **Mipmap) {
		if *m == nil {
			*m = newMipmap(shape)
		}
		(*m).serialize(a, mc)
	})
	if a.IsReading() {
		_, ubulk, uptnl := t.mipCounts()
		t.HasUbulk, t.HasUptnl = ubulk > 0, uptnl > 0
	}

	if p.virtual {
		var virtual uint32
		pos := a.Tell()
		a.Uint32(&virtual)
		if virtual != 0 {
			a.Fail(&archive.FormatError{Name: a.Name(), Offset: pos, Field: "bIsVirtual",
				Msg: "Virtual Textures are not supported. (bIsVirtual should be false.)"})
			return
		}
	}
	if a.IsWriting() {
		if p.relativeSkip {
			t.skipOffset = uint32(a.Tell() - t.skipOffsetPos)
		} else {
			t.skipOffset = uint32(int64(a.Tell()) + mc.inlineBase)
		}
	}
	a.Uint64(&t.NoneName)
	if t.IsLightMap {
		a.Uint32(&t.LightMapFlags)
	}

	if a.IsWriting() {
		a.PatchUint32(t.skipOffsetPos, t.skipOffset)
		return
	}
	if a.Err() == nil && p.tailMip {
		t.unpackTailMip(a)
	}
	t.state = stateMipsLoaded
}

// packTailMip gathers inline mip payloads into the single mip that holds
// them in ff7r packages.
func (t *Texture) packTailMip(shape resourceShape) {
	if t.tailMip == nil {
		t.tailMip = newMipmap(shape)
	}
	var data []byte
	var first *Mipmap
	for _, m := range t.Mips {
		b := m.Resource.Bulk()
		if !b.IsInline() {
			continue
		}
		if first == nil {
			first = m
		}
		b.Type, b.DataSize = BulkNone, 0
		data = append(data, m.Data...)
	}
	tail := t.tailMip
	tail.Data = data
	tail.Width, tail.Height, tail.Depth = 0, 0, 1
	if first != nil {
		tail.Width, tail.Height = first.Width, first.Height
	}
	tail.Resource.Bulk().Type = BulkUexp
}

// unpackTailMip splits the ff7r tail mip back into the inline mips.
func (t *Texture) unpackTailMip(a *archive.Archive) {
	if !t.HasSupportedFormat() {
		return
	}
	data := t.tailMip.Data
	off := 0
	for _, m := range t.Mips {
		if !m.Resource.Bulk().IsInline() {
			continue
		}
		size := int(t.Format.SurfaceSize(m.Width, m.Height) * t.NumSlices)
		if off+size > len(data) {
			break
		}
		m.Data = data[off : off+size]
		off += size
	}
	if off != len(data) {
		a.Failf("tail mip", "Failed to split optional mips.")
	}
}

// serializeBulk moves the .ubulk and .uptnl payloads of every mip.
func (t *Texture) serializeBulk(ubulk, uptnl *archive.Archive) {
	for _, m := range t.Mips {
		m.serializeBulk(ubulk, uptnl)
	}
	if ubulk.IsReading() {
		t.state = stateBulkLoaded
		if ubulk.Err() == nil && uptnl.Err() == nil {
			t.state = stateReady
		}
	}
}

// rewriteOffsets patches the offsets of payloads whose loader adds the bulk
// data start to them, once the export data size is final.
func (t *Texture) rewriteOffsets(uexp *archive.Archive, headerSize, uexpSize int64) {
	if !t.plan.fixOffsets {
		return
	}
	base := -headerSize - uexpSize
	for _, m := range t.Mips {
		b := m.Resource.Bulk()
		if b.IsInline() || !b.WrongOffset {
			continue
		}
		if r, ok := m.Resource.(*LegacyResource); ok {
			r.patchOffset(uexp, base+b.Offset)
		}
	}
}

// RemoveMipmaps keeps only the largest mip and moves it inline.
func (t *Texture) RemoveMipmaps() {
	t.requireReady("RemoveMipmaps")
	old := len(t.Mips)
	if old <= 1 {
		return
	}
	m := t.Mips[0]
	t.Mips = t.Mips[:1]
	m.Resource.set(BulkUexp, int64(len(m.Data)))
	t.updatePlacement()
	t.dirty = true
	t.pkg.logger.Info("mipmaps have been removed", "texture", t.Name(), "from", old, "to", 1)
}

// ToUncompressed switches a compressed texture to its uncompressed
// substitute format. Mip data is not converted; inject a matching DDS next.
func (t *Texture) ToUncompressed() {
	t.requireReady("ToUncompressed")
	if pf, ok := uncompressedFallback[t.PixelFormat]; ok {
		t.changeFormat(pf)
	}
}

func (t *Texture) changeFormat(pf string) {
	if t.PixelFormat == pf {
		return
	}
	t.pkg.logger.Info("changed pixel format", "texture", t.Name(), "from", t.PixelFormat, "to", pf)
	t.PixelFormat = pf
	t.updateFormat()
	if i := int(uint32(t.PixelFormatName)); i < len(t.pkg.names) {
		t.pkg.names[i].Set(pf)
	}
	t.dirty = true
}

func (t *Texture) LogValue() slog.Value {
	w, h := t.Size()
	attrs := []slog.Attr{
		slog.String("name", t.Name()),
		slog.String("type", t.TextureType()),
		slog.String("format", t.PixelFormat),
		slog.String("dxgi", t.Format.String()),
		slog.Uint64("width", uint64(w)),
		slog.Uint64("height", uint64(h)),
	}
	switch {
	case t.Is3D:
		attrs = append(attrs, slog.Uint64("depth", uint64(t.Depth())))
	case t.IsArray:
		attrs = append(attrs, slog.Uint64("array_size", uint64(t.ArraySize())))
	default:
		attrs = append(attrs, slog.Int("mipmaps", len(t.Mips)))
	}
	return slog.GroupValue(attrs...)
}
