package dds

import (
	"fmt"
	"strings"
)

// Format is a DXGI_FORMAT value. Values above MaxDX10Format are formats DX10
// headers cannot express; they are stored through their FourCC instead.
type Format uint32

// MaxDX10Format is the largest value a DX10 extension header may carry.
const MaxDX10Format Format = 191

// DXGI formats referenced by the codecs. The full enumeration lives in formatTable.
const (
	DXGIFormatUnknown            Format = 0
	DXGIFormatR32G32B32A32Float  Format = 2
	DXGIFormatR16G16B16A16Float  Format = 10
	DXGIFormatR16G16B16A16Unorm  Format = 11
	DXGIFormatR16G16B16A16Snorm  Format = 13
	DXGIFormatR32G32Float        Format = 16
	DXGIFormatR10G10B10A2Unorm   Format = 24
	DXGIFormatR11G11B10Float     Format = 26
	DXGIFormatR8G8B8A8Unorm      Format = 28
	DXGIFormatR8G8B8A8UnormSRGB  Format = 29
	DXGIFormatR8G8B8A8Snorm      Format = 31
	DXGIFormatR16G16Float        Format = 34
	DXGIFormatR16G16Unorm        Format = 35
	DXGIFormatR16G16Snorm        Format = 37
	DXGIFormatR32Float           Format = 41
	DXGIFormatR8G8Unorm          Format = 49
	DXGIFormatR8G8Snorm          Format = 51
	DXGIFormatR16Float           Format = 54
	DXGIFormatR16Unorm           Format = 56
	DXGIFormatR16Snorm           Format = 58
	DXGIFormatR8Unorm            Format = 61
	DXGIFormatR8Snorm            Format = 63
	DXGIFormatA8Unorm            Format = 65
	DXGIFormatR1Unorm            Format = 66
	DXGIFormatR8G8B8G8Unorm      Format = 68
	DXGIFormatG8R8G8B8Unorm      Format = 69
	DXGIFormatBC1Unorm           Format = 71
	DXGIFormatBC1UnormSRGB       Format = 72
	DXGIFormatBC2Unorm           Format = 74
	DXGIFormatBC2UnormSRGB       Format = 75
	DXGIFormatBC3Unorm           Format = 77
	DXGIFormatBC3UnormSRGB       Format = 78
	DXGIFormatBC4Unorm           Format = 80
	DXGIFormatBC4Snorm           Format = 81
	DXGIFormatBC5Unorm           Format = 83
	DXGIFormatBC5Snorm           Format = 84
	DXGIFormatB5G6R5Unorm        Format = 85
	DXGIFormatB5G5R5A1Unorm      Format = 86
	DXGIFormatB8G8R8A8Unorm      Format = 87
	DXGIFormatB8G8R8X8Unorm      Format = 88
	DXGIFormatB8G8R8A8UnormSRGB  Format = 91
	DXGIFormatBC6HUF16           Format = 95
	DXGIFormatBC6HSF16           Format = 96
	DXGIFormatBC7Unorm           Format = 98
	DXGIFormatBC7UnormSRGB       Format = 99
	DXGIFormatYUY2               Format = 107
	DXGIFormatB4G4R4A4Unorm      Format = 115
	DXGIFormatASTC4x4Unorm       Format = 134
	DXGIFormatASTC6x6Unorm       Format = 150
	DXGIFormatASTC8x8Unorm       Format = 162
	DXGIFormatASTC10x10Unorm     Format = 178
	DXGIFormatASTC12x12Unorm     Format = 186
	DXGIFormatA4B4G4R4Unorm      Format = 191
	DXGIFormatETCRGB             Format = 0x1000
	DXGIFormatETC2RGB            Format = 0x1001
	DXGIFormatETC2RGBA           Format = 0x1002
)

// formatInfo describes the storage of one format. Pixels are stored in
// blockW x blockH blocks of blockBytes bytes; plain pixel formats use 1x1
// blocks. A zero blockBytes marks planar layouts the codec cannot slice.
type formatInfo struct {
	name       string
	blockW     uint32
	blockH     uint32
	blockBytes uint32
	compressed bool
}

func px(name string, bytes uint32) formatInfo { return formatInfo{name, 1, 1, bytes, false} }

func packed(name string, w, bytes uint32) formatInfo { return formatInfo{name, w, 1, bytes, false} }

func bc(name string, bytes uint32) formatInfo { return formatInfo{name, 4, 4, bytes, true} }

func planar(name string) formatInfo { return formatInfo{name: name} }

var formatTable = map[Format]formatInfo{
	0:   planar("UNKNOWN"),
	1:   px("R32G32B32A32_TYPELESS", 16),
	2:   px("R32G32B32A32_FLOAT", 16),
	3:   px("R32G32B32A32_UINT", 16),
	4:   px("R32G32B32A32_SINT", 16),
	5:   px("R32G32B32_TYPELESS", 12),
	6:   px("R32G32B32_FLOAT", 12),
	7:   px("R32G32B32_UINT", 12),
	8:   px("R32G32B32_SINT", 12),
	9:   px("R16G16B16A16_TYPELESS", 8),
	10:  px("R16G16B16A16_FLOAT", 8),
	11:  px("R16G16B16A16_UNORM", 8),
	12:  px("R16G16B16A16_UINT", 8),
	13:  px("R16G16B16A16_SNORM", 8),
	14:  px("R16G16B16A16_SINT", 8),
	15:  px("R32G32_TYPELESS", 8),
	16:  px("R32G32_FLOAT", 8),
	17:  px("R32G32_UINT", 8),
	18:  px("R32G32_SINT", 8),
	19:  px("R32G8X24_TYPELESS", 8),
	20:  px("D32_FLOAT_S8X24_UINT", 8),
	21:  px("R32_FLOAT_X8X24_TYPELESS", 8),
	22:  px("X32_TYPELESS_G8X24_UINT", 8),
	23:  px("R10G10B10A2_TYPELESS", 4),
	24:  px("R10G10B10A2_UNORM", 4),
	25:  px("R10G10B10A2_UINT", 4),
	26:  px("R11G11B10_FLOAT", 4),
	27:  px("R8G8B8A8_TYPELESS", 4),
	28:  px("R8G8B8A8_UNORM", 4),
	29:  px("R8G8B8A8_UNORM_SRGB", 4),
	30:  px("R8G8B8A8_UINT", 4),
	31:  px("R8G8B8A8_SNORM", 4),
	32:  px("R8G8B8A8_SINT", 4),
	33:  px("R16G16_TYPELESS", 4),
	34:  px("R16G16_FLOAT", 4),
	35:  px("R16G16_UNORM", 4),
	36:  px("R16G16_UINT", 4),
	37:  px("R16G16_SNORM", 4),
	38:  px("R16G16_SINT", 4),
	39:  px("R32_TYPELESS", 4),
	40:  px("D32_FLOAT", 4),
	41:  px("R32_FLOAT", 4),
	42:  px("R32_UINT", 4),
	43:  px("R32_SINT", 4),
	44:  px("R24G8_TYPELESS", 4),
	45:  px("D24_UNORM_S8_UINT", 4),
	46:  px("R24_UNORM_X8_TYPELESS", 4),
	47:  px("X24_TYPELESS_G8_UINT", 4),
	48:  px("R8G8_TYPELESS", 2),
	49:  px("R8G8_UNORM", 2),
	50:  px("R8G8_UINT", 2),
	51:  px("R8G8_SNORM", 2),
	52:  px("R8G8_SINT", 2),
	53:  px("R16_TYPELESS", 2),
	54:  px("R16_FLOAT", 2),
	55:  px("D16_UNORM", 2),
	56:  px("R16_UNORM", 2),
	57:  px("R16_UINT", 2),
	58:  px("R16_SNORM", 2),
	59:  px("R16_SINT", 2),
	60:  px("R8_TYPELESS", 1),
	61:  px("R8_UNORM", 1),
	62:  px("R8_UINT", 1),
	63:  px("R8_SNORM", 1),
	64:  px("R8_SINT", 1),
	65:  px("A8_UNORM", 1),
	66:  packed("R1_UNORM", 8, 1),
	67:  px("R9G9B9E5_SHAREDEXP", 4),
	68:  packed("R8G8_B8G8_UNORM", 2, 4),
	69:  packed("G8R8_G8B8_UNORM", 2, 4),
	70:  bc("BC1_TYPELESS", 8),
	71:  bc("BC1_UNORM", 8),
	72:  bc("BC1_UNORM_SRGB", 8),
	73:  bc("BC2_TYPELESS", 16),
	74:  bc("BC2_UNORM", 16),
	75:  bc("BC2_UNORM_SRGB", 16),
	76:  bc("BC3_TYPELESS", 16),
	77:  bc("BC3_UNORM", 16),
	78:  bc("BC3_UNORM_SRGB", 16),
	79:  bc("BC4_TYPELESS", 8),
	80:  bc("BC4_UNORM", 8),
	81:  bc("BC4_SNORM", 8),
	82:  bc("BC5_TYPELESS", 16),
	83:  bc("BC5_UNORM", 16),
	84:  bc("BC5_SNORM", 16),
	85:  px("B5G6R5_UNORM", 2),
	86:  px("B5G5R5A1_UNORM", 2),
	87:  px("B8G8R8A8_UNORM", 4),
	88:  px("B8G8R8X8_UNORM", 4),
	89:  px("R10G10B10_XR_BIAS_A2_UNORM", 4),
	90:  px("B8G8R8A8_TYPELESS", 4),
	91:  px("B8G8R8A8_UNORM_SRGB", 4),
	92:  px("B8G8R8X8_TYPELESS", 4),
	93:  px("B8G8R8X8_UNORM_SRGB", 4),
	94:  bc("BC6H_TYPELESS", 16),
	95:  bc("BC6H_UF16", 16),
	96:  bc("BC6H_SF16", 16),
	97:  bc("BC7_TYPELESS", 16),
	98:  bc("BC7_UNORM", 16),
	99:  bc("BC7_UNORM_SRGB", 16),
	100: px("AYUV", 4),
	101: px("Y410", 4),
	102: px("Y416", 8),
	103: planar("NV12"),
	104: planar("P010"),
	105: planar("P016"),
	106: planar("420_OPAQUE"),
	107: packed("YUY2", 2, 4),
	108: packed("Y210", 2, 8),
	109: packed("Y216", 2, 8),
	110: planar("NV11"),
	111: px("AI44", 1),
	112: px("IA44", 1),
	113: px("P8", 1),
	114: px("A8P8", 2),
	115: px("B4G4R4A4_UNORM", 2),
	130: planar("P208"),
	131: planar("V208"),
	132: planar("V408"),
	189: planar("SAMPLER_FEEDBACK_MIN_MIP_OPAQUE"),
	190: planar("SAMPLER_FEEDBACK_MIP_REGION_USED_OPAQUE"),
	191: px("A4B4G4R4_UNORM", 2),

	DXGIFormatETCRGB:   bc("ETC_RGB", 8),
	DXGIFormatETC2RGB:  bc("ETC2_RGB", 8),
	DXGIFormatETC2RGBA: bc("ETC2_RGBA", 16),
}

func init() {
	// ASTC occupies 133..187 in groups of TYPELESS, UNORM, UNORM_SRGB.
	blocks := [][2]uint32{
		{4, 4}, {5, 4}, {5, 5}, {6, 5}, {6, 6}, {8, 5}, {8, 6}, {8, 8},
		{10, 5}, {10, 6}, {10, 8}, {10, 10}, {12, 10}, {12, 12},
	}
	for i, b := range blocks {
		base := Format(133 + 4*i)
		prefix := fmt.Sprintf("ASTC_%dX%d_", b[0], b[1])
		for j, suffix := range []string{"TYPELESS", "UNORM", "UNORM_SRGB"} {
			formatTable[base+Format(j)] = formatInfo{prefix + suffix, b[0], b[1], 16, true}
		}
	}
}

func (f Format) info() formatInfo { return formatTable[f] }

// String returns the DXGI name without the DXGI_FORMAT_ prefix.
func (f Format) String() string {
	if i, ok := formatTable[f]; ok {
		return i.name
	}
	return fmt.Sprintf("UNKNOWN(0x%x)", uint32(f))
}

// ParseFormat looks up a format by name, with or without the DXGI_FORMAT_ prefix.
func ParseFormat(name string) (Format, bool) {
	name = strings.TrimPrefix(strings.ToUpper(name), "DXGI_FORMAT_")
	for f, i := range formatTable {
		if i.name == name && f != DXGIFormatUnknown {
			return f, true
		}
	}
	return DXGIFormatUnknown, false
}

// Supported reports whether the codec can compute surface sizes for f.
func (f Format) Supported() bool { return f.info().blockBytes != 0 }

// IsCompressed reports block-compressed formats (BC, ASTC and ETC).
func (f Format) IsCompressed() bool { return f.info().compressed }

// BlockSize returns the block dimensions in pixels.
func (f Format) BlockSize() (w, h uint32) {
	i := f.info()
	return i.blockW, i.blockH
}

// IsSRGB, IsHDR and IsInt classify formats for the external converter.
func (f Format) IsSRGB() bool { return strings.Contains(f.String(), "SRGB") }

func (f Format) IsHDR() bool {
	n := f.String()
	return strings.Contains(n, "BC6") || strings.Contains(n, "FLOAT") ||
		strings.Contains(n, "INT") || strings.Contains(n, "SNORM")
}

func (f Format) IsInt() bool {
	n := f.String()
	return strings.Contains(n, "UINT") || strings.Contains(n, "SINT")
}

// IsNormalMap reports two-channel formats UE uses for normal maps.
func (f Format) IsNormalMap() bool {
	return f == DXGIFormatBC5Unorm || f == DXGIFormatBC5Snorm || f == DXGIFormatR8G8Unorm
}

// SurfaceSize returns the byte size of a width x height surface. Compressed
// formats round each dimension up to the block size.
func (f Format) SurfaceSize(width, height uint32) uint32 {
	i := f.info()
	if i.blockBytes == 0 {
		return 0
	}
	bw := (width + i.blockW - 1) / i.blockW
	bh := (height + i.blockH - 1) / i.blockH
	return bw * bh * i.blockBytes
}

// RowPitch returns the bytes of one row of pixels or blocks.
func (f Format) RowPitch(width uint32) uint32 {
	i := f.info()
	if i.blockBytes == 0 {
		return 0
	}
	return (width + i.blockW - 1) / i.blockW * i.blockBytes
}

var signedVariant = map[Format]Format{
	DXGIFormatR8G8B8A8Unorm:     DXGIFormatR8G8B8A8Snorm,
	DXGIFormatR16G16B16A16Unorm: DXGIFormatR16G16B16A16Snorm,
	DXGIFormatR16G16Unorm:       DXGIFormatR16G16Snorm,
	DXGIFormatR8G8Unorm:         DXGIFormatR8G8Snorm,
	DXGIFormatR16Unorm:          DXGIFormatR16Snorm,
	DXGIFormatR8Unorm:           DXGIFormatR8Snorm,
	DXGIFormatBC4Unorm:          DXGIFormatBC4Snorm,
	DXGIFormatBC5Unorm:          DXGIFormatBC5Snorm,
	DXGIFormatBC6HUF16:          DXGIFormatBC6HSF16,
}

// Signed returns the SNORM counterpart of f, or f when there is none.
func (f Format) Signed() Format {
	if s, ok := signedVariant[f]; ok {
		return s
	}
	return f
}
