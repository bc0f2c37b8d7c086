// Package preview writes uncompressed texture surfaces as PNG, JPEG or BMP
// images without an external converter. Block-compressed formats always go
// through texconv.
package preview

import (
	"image"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/pkg/errors"

	"github.com/goopsie/uetextools/pkg/dds"
)

// ErrUnsupported is returned for formats or file types preview cannot handle.
var ErrUnsupported = errors.New("preview not supported")

type decoder func(data []byte, w, h int) (*image.NRGBA, error)

var decoders = map[dds.Format]decoder{
	dds.DXGIFormatR8Unorm:           decodeR8,
	dds.DXGIFormatA8Unorm:           decodeA8,
	dds.DXGIFormatR8G8Unorm:         decodeR8G8,
	dds.DXGIFormatR8G8B8A8Unorm:     decodeRGBA,
	dds.DXGIFormatR8G8B8A8UnormSRGB: decodeRGBA,
	dds.DXGIFormatB8G8R8A8Unorm:     decodeBGRA,
	dds.DXGIFormatB8G8R8A8UnormSRGB: decodeBGRA,
	dds.DXGIFormatB8G8R8X8Unorm:     decodeBGRX,
	dds.DXGIFormatR11G11B10Float:    decodeR11G11B10,
}

var encoders = map[string]func() imgio.Encoder{
	".png":  imgio.PNGEncoder,
	".jpg":  func() imgio.Encoder { return imgio.JPEGEncoder(95) },
	".jpeg": func() imgio.Encoder { return imgio.JPEGEncoder(95) },
	".bmp":  imgio.BMPEncoder,
}

// Supported reports whether f has a built-in decoder.
func Supported(f dds.Format) bool {
	_, ok := decoders[f]
	return ok
}

// Extensions returns the image file extensions Save can write.
func Extensions() []string {
	out := make([]string, 0, len(encoders))
	for ext := range encoders {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// CanSave reports whether Save handles d written to a file with extension ext.
func CanSave(d *dds.DDS, ext string) bool {
	_, ok := encoders[strings.ToLower(ext)]
	return ok && Supported(d.Format)
}

// Image decodes the largest mip of slice s.
func Image(d *dds.DDS, s int) (*image.NRGBA, error) {
	fn, ok := decoders[d.Format]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "format %s", d.Format)
	}
	if s < 0 || s >= len(d.Slices) {
		return nil, errors.Errorf("slice %d out of range (%d slices)", s, len(d.Slices))
	}
	img, err := fn(d.Mip(s, 0), int(d.Width()), int(d.Height()))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", d.Format)
	}
	return img, nil
}

// Save writes the largest mip of every slice to path. Extra slices get an
// index suffix, e.g. T_Sky-1.png for the second cube face. It returns the
// files written.
func Save(d *dds.DDS, path string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	enc, ok := encoders[ext]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "file type %q", ext)
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	var out []string
	for s := range d.Slices {
		img, err := Image(d, s)
		if err != nil {
			return out, err
		}
		name := path
		if s > 0 {
			name = base + "-" + strconv.Itoa(s) + ext
		}
		if err := imgio.Save(name, img, enc()); err != nil {
			return out, errors.Wrapf(err, "failed to write %s", name)
		}
		out = append(out, name)
	}
	return out, nil
}

