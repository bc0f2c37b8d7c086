package unreal

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/goopsie/uetextools/pkg/dds"
)

// pixelFormats maps EPixelFormat names to the DXGI format the D3D12 RHI uses.
var pixelFormats = map[string]dds.Format{
	"PF_DXT1":           dds.DXGIFormatBC1Unorm,
	"PF_DXT3":           dds.DXGIFormatBC2Unorm,
	"PF_DXT5":           dds.DXGIFormatBC3Unorm,
	"PF_BC4":            dds.DXGIFormatBC4Unorm,
	"PF_BC5":            dds.DXGIFormatBC5Unorm,
	"PF_BC6H":           dds.DXGIFormatBC6HUF16,
	"PF_BC7":            dds.DXGIFormatBC7Unorm,
	"PF_A1":             dds.DXGIFormatR1Unorm,
	"PF_A8":             dds.DXGIFormatA8Unorm,
	"PF_G8":             dds.DXGIFormatR8Unorm,
	"PF_R8":             dds.DXGIFormatR8Unorm,
	"PF_R8G8":           dds.DXGIFormatR8G8Unorm,
	"PF_G16":            dds.DXGIFormatR16Unorm,
	"PF_G16R16":         dds.DXGIFormatR16G16Unorm,
	"PF_B8G8R8A8":       dds.DXGIFormatB8G8R8A8Unorm,
	"PF_A2B10G10R10":    dds.DXGIFormatR10G10B10A2Unorm,
	"PF_A16B16G16R16":   dds.DXGIFormatR16G16B16A16Unorm,
	"PF_FloatRGB":       dds.DXGIFormatR11G11B10Float,
	"PF_FloatR11G11B10": dds.DXGIFormatR11G11B10Float,
	"PF_FloatRGBA":      dds.DXGIFormatR16G16B16A16Float,
	"PF_A32B32G32R32F":  dds.DXGIFormatR32G32B32A32Float,
	"PF_B5G5R5A1_UNORM": dds.DXGIFormatB5G5R5A1Unorm,
	"PF_ASTC_4x4":       dds.DXGIFormatASTC4x4Unorm,
	"PF_ASTC_6x6":       dds.DXGIFormatASTC6x6Unorm,
	"PF_ASTC_8x8":       dds.DXGIFormatASTC8x8Unorm,
	"PF_ASTC_10x10":     dds.DXGIFormatASTC10x10Unorm,
	"PF_ASTC_12x12":     dds.DXGIFormatASTC12x12Unorm,
	"PF_ETC1":           dds.DXGIFormatETCRGB,
	"PF_ETC2_RGB":       dds.DXGIFormatETC2RGB,
	"PF_ETC2_RGBA":      dds.DXGIFormatETC2RGBA,
}

// aliasPixelFormats share a DXGI format with a canonical name.
var aliasPixelFormats = map[string]string{
	"PF_R8":       "PF_G8",
	"PF_FloatRGB": "PF_FloatR11G11B10",
}

// uncompressedFallback is the format a compressed texture is stored as
// when it is injected uncompressed.
var uncompressedFallback = map[string]string{
	"PF_DXT1":       "PF_B8G8R8A8",
	"PF_DXT3":       "PF_B8G8R8A8",
	"PF_DXT5":       "PF_B8G8R8A8",
	"PF_BC4":        "PF_G8",
	"PF_BC5":        "PF_R8G8",
	"PF_BC6H":       "PF_FloatRGBA",
	"PF_BC7":        "PF_B8G8R8A8",
	"PF_ASTC_4x4":   "PF_B8G8R8A8",
	"PF_ASTC_6x6":   "PF_B8G8R8A8",
	"PF_ASTC_8x8":   "PF_B8G8R8A8",
	"PF_ASTC_10x10": "PF_B8G8R8A8",
	"PF_ASTC_12x12": "PF_B8G8R8A8",
	"PF_ETC1":       "PF_B8G8R8A8",
	"PF_ETC2_RGB":   "PF_B8G8R8A8",
	"PF_ETC2_RGBA":  "PF_B8G8R8A8",
}

var formatPixelFormats = func() map[dds.Format]string {
	m := make(map[dds.Format]string, len(pixelFormats))
	for pf, f := range pixelFormats {
		if _, alias := aliasPixelFormats[pf]; !alias {
			m[f] = pf
		}
	}
	return m
}()

// PixelFormats returns every supported EPixelFormat name, sorted.
func PixelFormats() []string {
	out := make([]string, 0, len(pixelFormats))
	for pf := range pixelFormats {
		out = append(out, pf)
	}
	slices.Sort(out)
	return out
}

// FormatOf returns the DXGI format of a pixel format name.
func FormatOf(pixelFormat string) (dds.Format, bool) {
	f, ok := pixelFormats[pixelFormat]
	return f, ok
}

// PixelFormatOf returns the canonical pixel format name for a DXGI format.
func PixelFormatOf(f dds.Format) (string, bool) {
	pf, ok := formatPixelFormats[f]
	return pf, ok
}

// UncompressedFallback returns the uncompressed substitute for a compressed
// pixel format.
func UncompressedFallback(pixelFormat string) (string, bool) {
	pf, ok := uncompressedFallback[pixelFormat]
	return pf, ok
}

var pixelFormatPrefix = []byte("PF_")

// PeekPixelFormat finds the first pixel format name stored in a package
// without parsing it, so it works before the engine version is known.
func PeekPixelFormat(path string) (string, error) {
	data, err := os.ReadFile(strings.TrimSuffix(path, filepath.Ext(path)) + ".uasset")
	if err != nil {
		return "", errors.Wrap(err, "failed to read package")
	}
	for len(data) > 0 {
		i := bytes.Index(data, pixelFormatPrefix)
		if i < 0 {
			break
		}
		data = data[i:]
		end := bytes.IndexByte(data, 0)
		if end < 0 {
			end = len(data)
		}
		name := string(data[:end])
		if len(name) > len(pixelFormatPrefix) && isIdentifier(name) {
			return name, nil
		}
		data = data[len(pixelFormatPrefix):]
	}
	return "", errors.New("can not detect pixel format; the asset might not be a texture")
}

func isIdentifier(s string) bool {
	for _, c := range s {
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}
