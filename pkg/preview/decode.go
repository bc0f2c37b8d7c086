package preview

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// decodePixels converts uncompressed data with bpp bytes per pixel.
func decodePixels(data []byte, w, h, bpp int, fn func(px []byte) [4]uint8) (*image.NRGBA, error) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if len(data) < w*h*bpp {
		return nil, errors.Errorf("data truncated: need %d bytes, have %d", w*h*bpp, len(data))
	}
	for i := range w * h {
		c := fn(data[i*bpp : (i+1)*bpp])
		copy(img.Pix[i*4:i*4+4], c[:])
	}
	return img, nil
}

func decodeR8(data []byte, w, h int) (*image.NRGBA, error) {
	return decodePixels(data, w, h, 1, func(p []byte) [4]uint8 { return [4]uint8{p[0], p[0], p[0], 255} })
}

func decodeA8(data []byte, w, h int) (*image.NRGBA, error) {
	return decodePixels(data, w, h, 1, func(p []byte) [4]uint8 { return [4]uint8{255, 255, 255, p[0]} })
}

func decodeR8G8(data []byte, w, h int) (*image.NRGBA, error) {
	return decodePixels(data, w, h, 2, func(p []byte) [4]uint8 { return [4]uint8{p[0], p[1], 0, 255} })
}

func decodeRGBA(data []byte, w, h int) (*image.NRGBA, error) {
	return decodePixels(data, w, h, 4, func(p []byte) [4]uint8 { return [4]uint8{p[0], p[1], p[2], p[3]} })
}

func decodeBGRA(data []byte, w, h int) (*image.NRGBA, error) {
	return decodePixels(data, w, h, 4, func(p []byte) [4]uint8 { return [4]uint8{p[2], p[1], p[0], p[3]} })
}

func decodeBGRX(data []byte, w, h int) (*image.NRGBA, error) {
	return decodePixels(data, w, h, 4, func(p []byte) [4]uint8 { return [4]uint8{p[2], p[1], p[0], 255} })
}

func decodeR11G11B10(data []byte, w, h int) (*image.NRGBA, error) {
	return decodePixels(data, w, h, 4, func(p []byte) [4]uint8 {
		v := uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
		return [4]uint8{
			unorm(smallFloat(v&0x7FF, 6)),
			unorm(smallFloat((v>>11)&0x7FF, 6)),
			unorm(smallFloat((v>>22)&0x3FF, 5)),
			255,
		}
	})
}

// smallFloat decodes an unsigned float with a 5-bit exponent and mbits of mantissa.
func smallFloat(u uint32, mbits uint) float64 {
	exp := (u >> mbits) & 0x1F
	mant := float64(u&(1<<mbits-1)) / float64(uint32(1)<<mbits)
	switch exp {
	case 0:
		return mant / 16384
	case 31:
		return 65504
	}
	return math.Ldexp(1+mant, int(exp)-15)
}

func unorm(f float64) uint8 {
	return uint8(math.Round(math.Min(1, math.Max(0, f)) * 255))
}
