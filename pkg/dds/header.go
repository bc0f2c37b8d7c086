package dds

// DDS header constants
const (
	HeaderSize      = 124
	PixelFormatSize = 32

	FlagCaps        = 0x1
	FlagHeight      = 0x2
	FlagWidth       = 0x4
	FlagPitch       = 0x8
	FlagPixelFormat = 0x1000
	FlagMipMapCount = 0x20000
	FlagLinearSize  = 0x80000
	FlagDepth       = 0x800000

	CapsComplex = 0x8
	CapsTexture = 0x1000
	CapsMipMap  = 0x400000

	Caps2Cubemap     = 0x200
	Caps2CubemapFull = 0xFE00
	Caps2Volume      = 0x200000

	// DX10 resource dimensions
	Dimension1D = 2
	Dimension2D = 3
	Dimension3D = 4

	MiscTextureCube = 0x4
)

var magic = [4]byte{'D', 'D', 'S', ' '}

// toolTag marks headers written by this package in the reserved area.
var toolTag = [4]byte{'U', 'E', 'D', 'T'}

// Header is the 128-byte file header including the magic.
type Header struct {
	Magic             [4]byte
	Size              uint32
	Flags             uint32
	Height            uint32
	Width             uint32
	PitchOrLinearSize uint32
	Depth             uint32
	MipMapCount       uint32
	Reserved1         [9]uint32
	ToolTag           [4]byte
	Reserved1b        uint32
	PixelFormat       PixelFormat
	Caps              uint32
	Caps2             uint32
	Caps3             uint32
	Caps4             uint32
	Reserved2         uint32
}

// PixelFormat is DDS_PIXELFORMAT.
type PixelFormat struct {
	Size        uint32
	Flags       uint32
	FourCC      [4]byte
	RGBBitCount uint32
	RBitMask    uint32
	GBitMask    uint32
	BBitMask    uint32
	ABitMask    uint32
}

// DX10Header is the extension header that follows FourCC "DX10".
type DX10Header struct {
	DXGIFormat        uint32
	ResourceDimension uint32
	MiscFlag          uint32
	ArraySize         uint32
	MiscFlags2        uint32
}

// IsDX10 reports whether the header is followed by a DX10Header.
func (h *Header) IsDX10() bool {
	return h.PixelFormat.Flags&PixelFlagFourCC != 0 && h.PixelFormat.FourCC == fourCCDX10
}

func headerFlags(compressed, is3D bool) uint32 {
	flags := uint32(FlagCaps | FlagHeight | FlagWidth | FlagPixelFormat | FlagMipMapCount)
	if compressed {
		flags |= FlagLinearSize
	} else {
		flags |= FlagPitch
	}
	if is3D {
		flags |= FlagDepth
	}
	return flags
}

func caps(hasMips, isCube bool) uint32 {
	c := uint32(CapsTexture)
	if hasMips {
		c |= CapsComplex | CapsMipMap
	}
	if isCube {
		c |= CapsComplex
	}
	return c
}

func caps2(isCube, is3D bool) uint32 {
	var c uint32
	if isCube {
		c |= Caps2CubemapFull
	}
	if is3D {
		c |= Caps2Volume
	}
	return c
}
