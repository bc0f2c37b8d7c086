package dds

// Pixel format flags.
const (
	PixelFlagAlphaPixels = 0x1
	PixelFlagAlpha       = 0x2
	PixelFlagFourCC      = 0x4
	PixelFlagRGB         = 0x40
	PixelFlagYUV         = 0x200
	PixelFlagLuminance   = 0x20000
	PixelFlagBumpDuDv    = 0x80000
)

var fourCCDX10 = [4]byte{'D', 'X', '1', '0'}

func cc(s string) [4]byte { return [4]byte{s[0], s[1], s[2], s[3]} }

// fourCCFormats maps legacy FourCC codes to DXGI formats. D3DFMT numeric
// codes are stored as little-endian integers in the FourCC field.
var fourCCFormats = map[[4]byte]Format{
	cc("DXT1"): DXGIFormatBC1Unorm,
	cc("DXT2"): DXGIFormatBC2Unorm,
	cc("DXT3"): DXGIFormatBC2Unorm,
	cc("DXT4"): DXGIFormatBC3Unorm,
	cc("DXT5"): DXGIFormatBC3Unorm,
	cc("ATI1"): DXGIFormatBC4Unorm,
	cc("BC4U"): DXGIFormatBC4Unorm,
	cc("BC4S"): DXGIFormatBC4Snorm,
	cc("ATI2"): DXGIFormatBC5Unorm,
	cc("BC5U"): DXGIFormatBC5Unorm,
	cc("BC5S"): DXGIFormatBC5Snorm,
	cc("RGBG"): DXGIFormatR8G8B8G8Unorm,
	cc("GRGB"): DXGIFormatG8R8G8B8Unorm,
	cc("YUY2"): DXGIFormatYUY2,
	cc("ETC1"): DXGIFormatETCRGB,
	cc("ETC2"): DXGIFormatETC2RGB,
	cc("ETCA"): DXGIFormatETC2RGBA,

	{36, 0, 0, 0}:  DXGIFormatR16G16B16A16Unorm,
	{110, 0, 0, 0}: DXGIFormatR16G16B16A16Snorm,
	{111, 0, 0, 0}: DXGIFormatR16Float,
	{112, 0, 0, 0}: DXGIFormatR16G16Float,
	{113, 0, 0, 0}: DXGIFormatR16G16B16A16Float,
	{114, 0, 0, 0}: DXGIFormatR32Float,
	{115, 0, 0, 0}: DXGIFormatR32G32Float,
	{116, 0, 0, 0}: DXGIFormatR32G32B32A32Float,
}

// customFourCC is the code written for formats DX10 headers cannot carry.
var customFourCC = map[Format][4]byte{
	DXGIFormatETCRGB:   cc("ETC1"),
	DXGIFormatETC2RGB:  cc("ETC2"),
	DXGIFormatETC2RGBA: cc("ETCA"),
}

// uncanonicalFourCC lists vendor codes for formats that have a canonical
// spelling elsewhere. Files using them are rejected.
var uncanonicalFourCC = map[[4]byte]bool{
	cc("PTC2"): true, cc("PTC4"): true,
	cc("ATC\x00"): true, cc("ATC "): true, cc("ATCA"): true,
	cc("ATCE"): true, cc("ATCI"): true,
	cc("AS44"): true, cc("AS55"): true, cc("AS66"): true,
	cc("AS85"): true, cc("AS86"): true, cc("AS:5"): true,
}

type bitmask struct {
	r, g, b, a uint32
	format     Format
}

// bitmaskFormats resolves uncompressed headers by their channel masks.
// The first match wins.
var bitmaskFormats = []bitmask{
	{0xff0000, 0xff00, 0xff, 0xff000000, DXGIFormatB8G8R8A8Unorm},
	{0xff0000, 0xff00, 0xff, 0, DXGIFormatB8G8R8X8Unorm},
	{0xff, 0xff00, 0xff0000, 0xff000000, DXGIFormatR8G8B8A8Unorm},
	{0xffff, 0xffff0000, 0, 0, DXGIFormatR16G16Unorm},
	{0x3ff, 0xffc00, 0x3ff00000, 0xc0000000, DXGIFormatR10G10B10A2Unorm},
	{0xf800, 0x7e0, 0x1f, 0, DXGIFormatB5G6R5Unorm},
	{0x7c00, 0x3e0, 0x1f, 0x8000, DXGIFormatB5G5R5A1Unorm},
	{0xf00, 0xf0, 0xf, 0xf000, DXGIFormatB4G4R4A4Unorm},
	{0xff, 0, 0, 0, DXGIFormatR8Unorm},
	{0xffff, 0, 0, 0, DXGIFormatR16Unorm},
	{0xff, 0, 0, 0xff00, DXGIFormatR8G8Unorm},
	{0xff, 0xff00, 0, 0, DXGIFormatR8G8Unorm},
	{0, 0, 0, 0xff, DXGIFormatA8Unorm},
}

func formatFromMasks(pf *PixelFormat) (Format, bool) {
	for _, m := range bitmaskFormats {
		if pf.RBitMask == m.r && pf.GBitMask == m.g && pf.BBitMask == m.b && pf.ABitMask == m.a {
			f := m.format
			if pf.Flags&PixelFlagBumpDuDv != 0 {
				f = f.Signed()
			}
			return f, true
		}
	}
	return DXGIFormatUnknown, false
}
