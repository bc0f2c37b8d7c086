package unreal

import (
	"log/slog"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/goopsie/uetextools/pkg/archive"
	"github.com/goopsie/uetextools/pkg/dds"
)

func (t *Texture) formatError() error {
	return &archive.FormatError{
		Name:   t.pkg.uexpName(),
		Offset: t.pixelFormatPos,
		Field:  "pixel format",
		Msg:    "unsupported pixel format " + t.PixelFormat,
	}
}

// GetDDS returns the texture as a DDS surface. Mip payloads hold every
// slice back to back; the DDS stores every mip of a slice back to back.
func (t *Texture) GetDDS() (*dds.DDS, error) {
	t.requireReady("GetDDS")
	if !t.HasSupportedFormat() {
		return nil, t.formatError()
	}
	if len(t.Mips) == 0 || t.NumSlices == 0 {
		return nil, errors.Errorf("%s: texture has no surface data", t.Name())
	}
	n := int(t.NumSlices)
	slices := make([][]byte, n)
	for _, m := range t.Mips {
		if len(m.Data)%n != 0 {
			return nil, errors.Errorf("%s: mip %dx%d is %d bytes, not a multiple of %d slices",
				t.Name(), m.Width, m.Height, len(m.Data), n)
		}
		size := len(m.Data) / n
		for i := range slices {
			slices[i] = append(slices[i], m.Data[i*size:(i+1)*size]...)
		}
	}
	w, h := t.Size()
	l := dds.Layout{
		Width:     w,
		Height:    h,
		Depth:     t.Depth(),
		Mips:      uint32(len(t.Mips)),
		ArraySize: t.ArraySize(),
		Cube:      t.IsCube,
	}
	d, err := dds.New(t.Format, l, slices)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", t.Name())
	}
	return d, nil
}

// checkInject returns the first reason d cannot replace the texture.
func (t *Texture) checkInject(d *dds.DDS) error {
	const op = "inject"
	if !t.HasSupportedFormat() {
		return t.formatError()
	}
	if !d.Format.Supported() {
		return constraintf(op, "Unsupported DDS format. (%s)", d.Format)
	}
	if d.Format != t.Format {
		return constraintf(op, "The format does not match. (Uasset: %s, DDS: %s)", t.Format, d.Format)
	}
	if t.TextureType() != d.TextureType() {
		return constraintf(op, "Texture type does not match. (Uasset: %s, DDS: %s)", t.TextureType(), d.TextureType())
	}
	if t.ArraySize() != d.ArraySize() {
		return constraintf(op, "Array size does not match. (Uasset: %d, DDS: %d)", t.ArraySize(), d.ArraySize())
	}
	if (t.Is3D || t.IsArray) && d.MipCount() > 1 {
		return constraintf(op, "Mipmaps are not supported for 3D and array textures. (DDS has %d)", d.MipCount())
	}
	return nil
}

// inlineThreshold returns the pixel count of the largest mip the package
// keeps in the export data. Larger mips go to .ubulk on injection.
func (t *Texture) inlineThreshold() uint64 {
	for _, m := range t.Mips {
		if m.Resource.Bulk().IsInline() {
			return m.Pixels()
		}
	}
	if len(t.Mips) == 0 {
		return 0
	}
	return t.Mips[len(t.Mips)-1].Pixels()
}

func isPow2(n uint32) bool { return bits.OnesCount32(n) == 1 }

// InjectDDS replaces the surface with d. The texture is left untouched if
// d does not fit; the error is then a ConstraintError.
func (t *Texture) InjectDDS(d *dds.DDS) error {
	t.requireReady("InjectDDS")
	if err := t.checkInject(d); err != nil {
		return err
	}

	oldW, oldH := t.Size()
	oldMips := len(t.Mips)
	threshold := t.inlineThreshold()
	shape := t.pkg.resources.shape
	sizes := d.MipSizes()
	depth := d.NumSlices()

	mips := make([]*Mipmap, len(sizes))
	for i, sz := range sizes {
		var data []byte
		for s := range d.Slices {
			data = append(data, d.Mip(s, i)...)
		}
		placement := BulkUexp
		if t.HasUbulk && i+1 < len(sizes) && uint64(sz.Width)*uint64(sz.Height) > threshold {
			placement = BulkUbulk
		}
		m := newMipmap(shape)
		m.set(data, sz.Width, sz.Height, depth, placement)
		mips[i] = m
	}

	t.Mips = mips
	t.NumSlices = d.NumSlices()
	t.ImportedWidth, t.ImportedHeight = sizes[0].Width, sizes[0].Height
	t.FirstMip = 0
	t.updatePlacement()
	t.dirty = true

	log := t.pkg.logger.With("texture", t.Name())
	if len(sizes) > 1 && !(isPow2(d.Width()) && isPow2(d.Height())) {
		log.Warn("texture has mipmaps but its size is not a power of 2", "width", d.Width(), "height", d.Height())
	}
	if oldMips == 1 && len(sizes) > 1 {
		log.Warn("mipmap count increased; the texture may need a mip generation setting in its properties",
			"from", oldMips, "to", len(sizes))
	}
	log.Info("DDS has been injected",
		slog.Group("old", "width", oldW, "height", oldH, "mipmaps", oldMips),
		slog.Group("new", "width", sizes[0].Width, "height", sizes[0].Height, "mipmaps", len(sizes)))
	return nil
}
