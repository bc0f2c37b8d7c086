package dds

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goopsie/uetextools/pkg/archive"
)

func fill(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i*7)
	}
	return b
}

func newTest(t *testing.T, f Format, l Layout) *DDS {
	t.Helper()
	d := &DDS{}
	require.NoError(t, d.Update(f, l))
	slices := make([][]byte, d.NumSlices())
	for i := range slices {
		slices[i] = fill(int(d.SliceSize()), byte(i))
	}
	out, err := New(f, l, slices)
	require.NoError(t, err)
	return out
}

func TestHeaderSize(t *testing.T) {
	assert.Equal(t, 128, binary.Size(Header{}))
	assert.Equal(t, 20, binary.Size(DX10Header{}))
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		layout Layout
		typ    string
		slices uint32
	}{
		{"BC1 2D", DXGIFormatBC1Unorm, Layout{Width: 256, Height: 128, Mips: 9}, "2D", 1},
		{"BC7 cube", DXGIFormatBC7Unorm, Layout{Width: 64, Height: 64, Mips: 7, Cube: true}, "Cube", 6},
		{"BC5 npot", DXGIFormatBC5Unorm, Layout{Width: 100, Height: 60, Mips: 3}, "2D", 1},
		{"RGBA array", DXGIFormatR8G8B8A8Unorm, Layout{Width: 16, Height: 16, ArraySize: 4}, "2DArray", 4},
		{"BGRA volume", DXGIFormatB8G8R8A8Unorm, Layout{Width: 8, Height: 8, Depth: 4}, "3D", 4},
		{"BC6H cube array", DXGIFormatBC6HUF16, Layout{Width: 32, Height: 32, ArraySize: 2, Cube: true}, "CubeArray", 12},
		{"float", DXGIFormatR32G32B32A32Float, Layout{Width: 4, Height: 4, Mips: 3}, "2D", 1},
		{"ASTC", DXGIFormatASTC6x6Unorm, Layout{Width: 40, Height: 40, Mips: 2}, "2D", 1},
		{"ETC2", DXGIFormatETC2RGBA, Layout{Width: 32, Height: 32, Mips: 6}, "2D", 1},
		{"R1", DXGIFormatR1Unorm, Layout{Width: 20, Height: 3}, "2D", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTest(t, tt.format, tt.layout)
			assert.Equal(t, tt.typ, d.TextureType())
			assert.Equal(t, tt.slices, d.NumSlices())

			data := d.Bytes()
			got, err := Parse(data)
			require.NoError(t, err)
			assert.Equal(t, tt.format, got.Format)
			assert.Equal(t, d.Layout(), got.Layout())
			assert.Equal(t, d.Slices, got.Slices)
			assert.Equal(t, data, got.Bytes())
		})
	}
}

func TestSurfaceSize(t *testing.T) {
	tests := []struct {
		format Format
		w, h   uint32
		want   uint32
	}{
		{DXGIFormatBC1Unorm, 4, 4, 8},
		{DXGIFormatBC1Unorm, 1, 1, 8},
		{DXGIFormatBC4Unorm, 8, 8, 32},
		{DXGIFormatBC7Unorm, 512, 512, 262144},
		{DXGIFormatBC3Unorm, 6, 6, 64},
		{DXGIFormatASTC8x8Unorm, 9, 8, 32},
		{DXGIFormatB8G8R8A8Unorm, 3, 3, 36},
		{DXGIFormatR16G16B16A16Float, 2, 2, 32},
		{DXGIFormatR1Unorm, 16, 2, 4},
		{DXGIFormatYUY2, 3, 1, 8},
		{DXGIFormatETCRGB, 4, 8, 16},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.format.SurfaceSize(tt.w, tt.h))
		})
	}
	assert.False(t, Format(103).Supported())
}

func TestMipSizes(t *testing.T) {
	sizes := MipSizes(DXGIFormatBC1Unorm, 8, 2, 4)
	assert.Equal(t, []MipSize{
		{8, 2, 16},
		{4, 1, 8},
		{2, 1, 8},
		{1, 1, 8},
	}, sizes)
}

func TestLogValue(t *testing.T) {
	d := newTest(t, DXGIFormatBC7Unorm, Layout{Width: 64, Height: 64, Mips: 7, Cube: true})
	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("dds", "file", d)
	out := buf.String()
	assert.Contains(t, out, "file.format=BC7_UNORM")
	assert.Contains(t, out, "file.type=Cube")
	assert.Contains(t, out, "file.mips=7")
}

func TestHeaderFields(t *testing.T) {
	t.Run("compressed cube", func(t *testing.T) {
		d := newTest(t, DXGIFormatBC1Unorm, Layout{Width: 16, Height: 16, Mips: 5, Cube: true})
		h := d.Header
		assert.Equal(t, uint32(FlagCaps|FlagHeight|FlagWidth|FlagPixelFormat|FlagMipMapCount|FlagLinearSize), h.Flags)
		assert.Equal(t, uint32(128*6), h.PitchOrLinearSize)
		assert.Equal(t, uint32(CapsTexture|CapsComplex|CapsMipMap), h.Caps)
		assert.Equal(t, uint32(Caps2CubemapFull), h.Caps2)
		assert.Equal(t, uint32(MiscTextureCube), d.DX10.MiscFlag)
		assert.Equal(t, toolTag, h.ToolTag)
	})

	t.Run("uncompressed volume", func(t *testing.T) {
		d := newTest(t, DXGIFormatR8G8B8A8Unorm, Layout{Width: 8, Height: 4, Depth: 2})
		h := d.Header
		assert.Equal(t, uint32(FlagCaps|FlagHeight|FlagWidth|FlagPixelFormat|FlagMipMapCount|FlagPitch|FlagDepth), h.Flags)
		assert.Equal(t, uint32(32), h.PitchOrLinearSize)
		assert.Equal(t, uint32(CapsTexture), h.Caps)
		assert.Equal(t, uint32(Caps2Volume), h.Caps2)
		assert.Equal(t, uint32(Dimension3D), d.DX10.ResourceDimension)
	})

	t.Run("custom fourCC", func(t *testing.T) {
		d := newTest(t, DXGIFormatETCRGB, Layout{Width: 4, Height: 4})
		assert.Nil(t, d.DX10)
		assert.Equal(t, [4]byte{'E', 'T', 'C', '1'}, d.Header.PixelFormat.FourCC)
		assert.Len(t, d.Bytes(), 128+8)
	})
}

func legacyHeader(pf PixelFormat, w, h, mips uint32) Header {
	return Header{
		Magic:       magic,
		Size:        HeaderSize,
		Flags:       FlagCaps | FlagHeight | FlagWidth | FlagPixelFormat,
		Width:       w,
		Height:      h,
		MipMapCount: mips,
		PixelFormat: pf,
		Caps:        CapsTexture,
	}
}

func encode(t *testing.T, h Header, payload int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &h))
	buf.Write(fill(payload, 3))
	return buf.Bytes()
}

func TestLegacyFourCC(t *testing.T) {
	tests := []struct {
		fourCC [4]byte
		want   Format
	}{
		{cc("DXT1"), DXGIFormatBC1Unorm},
		{cc("DXT3"), DXGIFormatBC2Unorm},
		{cc("DXT5"), DXGIFormatBC3Unorm},
		{cc("ATI2"), DXGIFormatBC5Unorm},
		{cc("BC4S"), DXGIFormatBC4Snorm},
		{[4]byte{113, 0, 0, 0}, DXGIFormatR16G16B16A16Float},
	}
	for _, tt := range tests {
		t.Run(string(bytes.TrimRight(tt.fourCC[:], "\x00")), func(t *testing.T) {
			pf := PixelFormat{Size: PixelFormatSize, Flags: PixelFlagFourCC, FourCC: tt.fourCC}
			data := encode(t, legacyHeader(pf, 8, 8, 0), int(tt.want.SurfaceSize(8, 8)))

			d, err := Parse(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Format)
			assert.Nil(t, d.DX10)
			assert.Equal(t, uint32(1), d.MipCount())
			assert.Equal(t, data, d.Bytes(), "legacy headers are written back unchanged")
		})
	}
}

func TestBitmask(t *testing.T) {
	tests := []struct {
		name  string
		pf    PixelFormat
		want  Format
		warns bool
	}{
		{"BGRA", PixelFormat{Flags: PixelFlagRGB | PixelFlagAlphaPixels, RGBBitCount: 32,
			RBitMask: 0xff0000, GBitMask: 0xff00, BBitMask: 0xff, ABitMask: 0xff000000}, DXGIFormatB8G8R8A8Unorm, false},
		{"luminance", PixelFormat{Flags: PixelFlagLuminance, RGBBitCount: 8, RBitMask: 0xff}, DXGIFormatR8Unorm, false},
		{"bump", PixelFormat{Flags: PixelFlagBumpDuDv, RGBBitCount: 16, RBitMask: 0xff, GBitMask: 0xff00},
			DXGIFormatR8G8Snorm, false},
		{"unknown", PixelFormat{Flags: PixelFlagRGB, RGBBitCount: 32, RBitMask: 0x1}, DXGIFormatB8G8R8A8Unorm, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pf.Size = PixelFormatSize
			data := encode(t, legacyHeader(tt.pf, 4, 2, 1), int(tt.want.SurfaceSize(4, 2)))

			var logs strings.Builder
			logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
			d, err := Parse(data, WithLogger(logger))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Format)
			assert.Equal(t, tt.warns, strings.Contains(logs.String(), "bit masks"))
		})
	}
}

func TestParseErrors(t *testing.T) {
	valid := newTest(t, DXGIFormatBC1Unorm, Layout{Width: 8, Height: 8}).Bytes()

	withDX10 := func(mut func(*DX10Header)) []byte {
		d := newTest(t, DXGIFormatBC1Unorm, Layout{Width: 8, Height: 8})
		mut(d.DX10)
		return d.Bytes()
	}
	fourCC := func(code string) []byte {
		pf := PixelFormat{Size: PixelFormatSize, Flags: PixelFlagFourCC, FourCC: cc(code)}
		return encode(t, legacyHeader(pf, 4, 4, 1), 16)
	}

	tests := []struct {
		name   string
		data   []byte
		target error
		msg    string
	}{
		{"short", valid[:40], archive.ErrBufferBounds, ""},
		{"magic", append([]byte("XDS "), valid[4:]...), archive.ErrFormat, "not a DDS"},
		{"1D", withDX10(func(h *DX10Header) { h.ResourceDimension = Dimension1D }), archive.ErrFormat, "1D"},
		{"dxgi range", withDX10(func(h *DX10Header) { h.DXGIFormat = 200 }), archive.ErrFormat, "DXGI"},
		{"uncanonical", fourCC("PTC2"), archive.ErrFormat, "uncanonical"},
		{"atc", fourCC("ATCI"), archive.ErrFormat, "uncanonical"},
		{"unknown fourCC", fourCC("ZZZZ"), archive.ErrFormat, "unsupported fourCC"},
		{"truncated", valid[:len(valid)-1], archive.ErrBufferBounds, ""},
		{"trailing", append(append([]byte(nil), valid...), 0), archive.ErrFormat, "after the last slice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	d := newTest(t, DXGIFormatBC3Unorm, Layout{Width: 32, Height: 32, Mips: 6})
	dir := t.TempDir()

	t.Run("plain", func(t *testing.T) {
		path := filepath.Join(dir, "sub", "T_Test.dds")
		require.NoError(t, d.Save(path))
		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, d.Bytes(), got.Bytes())
	})

	t.Run("compressed", func(t *testing.T) {
		path := filepath.Join(dir, "T_Test.dds.zst")
		require.NoError(t, d.SaveCompressed(path, archive.DefaultCompressionLevel))
		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, d.Slices, got.Slices)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.dds"))
		assert.Error(t, err)
	})
}

func TestDisassembleAssemble(t *testing.T) {
	t.Run("cube array", func(t *testing.T) {
		d := newTest(t, DXGIFormatBC1Unorm, Layout{Width: 8, Height: 8, ArraySize: 3, Cube: true})
		parts, err := d.Disassemble()
		require.NoError(t, err)
		require.Len(t, parts, 3)
		for _, p := range parts {
			assert.Equal(t, "Cube", p.TextureType())
			assert.Len(t, p.Slices, 6)
		}

		back, err := Assemble(parts, true)
		require.NoError(t, err)
		assert.Equal(t, d.Bytes(), back.Bytes())
	})

	t.Run("volume", func(t *testing.T) {
		d := newTest(t, DXGIFormatR8Unorm, Layout{Width: 4, Height: 4, Depth: 5})
		parts, err := d.Disassemble()
		require.NoError(t, err)
		require.Len(t, parts, 5)
		assert.Equal(t, "2D", parts[0].TextureType())

		back, err := Assemble(parts, false)
		require.NoError(t, err)
		assert.Equal(t, "3D", back.TextureType())
		assert.Equal(t, d.Slices, back.Slices)
	})

	t.Run("mismatch", func(t *testing.T) {
		a := newTest(t, DXGIFormatR8Unorm, Layout{Width: 4, Height: 4})
		b := newTest(t, DXGIFormatR8Unorm, Layout{Width: 8, Height: 4})
		c := newTest(t, DXGIFormatA8Unorm, Layout{Width: 4, Height: 4})
		_, err := Assemble([]*DDS{a, b}, true)
		assert.ErrorContains(t, err, "sizes")
		_, err = Assemble([]*DDS{a, c}, true)
		assert.ErrorContains(t, err, "formats")
	})
}

func TestNewValidates(t *testing.T) {
	_, err := New(DXGIFormatBC1Unorm, Layout{Width: 4, Height: 4}, [][]byte{make([]byte, 7)})
	assert.ErrorContains(t, err, "slice 0")
	_, err = New(DXGIFormatBC1Unorm, Layout{Width: 4, Height: 4, ArraySize: 2}, [][]byte{make([]byte, 8)})
	assert.ErrorContains(t, err, "layout needs 2")
	_, err = New(Format(103), Layout{Width: 4, Height: 4}, nil)
	assert.ErrorContains(t, err, "unsupported")
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("DXGI_FORMAT_BC7_UNORM")
	require.True(t, ok)
	assert.Equal(t, DXGIFormatBC7Unorm, f)
	f, ok = ParseFormat("astc_4x4_unorm")
	require.True(t, ok)
	assert.Equal(t, DXGIFormatASTC4x4Unorm, f)
	_, ok = ParseFormat("BC9")
	assert.False(t, ok)
}
