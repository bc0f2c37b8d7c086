package main

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/goopsie/uetextools/pkg/archive"
	"github.com/goopsie/uetextools/pkg/dds"
	"github.com/goopsie/uetextools/pkg/preview"
	"github.com/goopsie/uetextools/pkg/texconv"
	"github.com/goopsie/uetextools/pkg/unreal"
	"github.com/goopsie/uetextools/pkg/verify"
	"github.com/goopsie/uetextools/pkg/version"
)

func isDDS(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".dds") || strings.HasSuffix(p, ".dds.zst")
}

func (a *app) loadPackage(path string) (*unreal.Package, error) {
	return unreal.Load(path, a.version, unreal.WithLogger(a.logger), unreal.WithVerbose(a.verbose))
}

func (a *app) firstTexture(p *unreal.Package) (*unreal.Texture, error) {
	if !p.HasTextures() {
		return nil, errors.Errorf("%s has no texture (main class %s)", p.Name(), p.MainClass())
	}
	return p.Textures()[0], nil
}

func (a *app) texconvOptions(c *cli.Context) texconv.Options {
	return texconv.Options{
		InvertNormals: c.Bool("invert-normals"),
		CubemapLayout: c.String("cubemap-layout"),
		ImageFilter:   a.cfg.ImageFilter,
	}
}

func packageSource(c *cli.Context) (official, set bool, err error) {
	switch s := c.String("package-source"); s {
	case "":
		return false, false, nil
	case "official", "mod":
		return s == "official", true, nil
	default:
		return false, false, errors.Errorf("package source must be official or mod, got %q", s)
	}
}

func tempDir() (string, func(), error) {
	dir, err := os.MkdirTemp("", "uetex")
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create temp folder")
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func (a *app) parse(*cli.Context) (jobFunc, error) {
	return func(_ context.Context, j job) error {
		if isDDS(j.File) {
			d, err := dds.Load(j.path(), dds.WithLogger(a.logger))
			if err != nil {
				return err
			}
			a.logger.Info("parsed", "file", j.File, "dds", d)
			return nil
		}
		p, err := unreal.Load(j.path(), a.version, unreal.WithLogger(a.logger), unreal.WithVerbose(true))
		if err != nil {
			return err
		}
		a.logger.Info("parsed", "file", j.File, "package", p)
		for _, t := range p.Textures() {
			a.logger.Info("texture", "file", j.File, "texture", t)
		}
		return nil
	}, nil
}

func validDDS(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read dds")
	}
	if archive.IsContainer(raw) {
		if raw, err = archive.Decompress(raw); err != nil {
			return err
		}
	}
	d, err := dds.Parse(raw)
	if err != nil {
		return err
	}
	if before, after := digest.FromBytes(raw), digest.FromBytes(d.Bytes()); before != after {
		return errors.Errorf("re-encoded dds differs (%s != %s)", before.Encoded()[:12], after.Encoded()[:12])
	}
	return nil
}

func (a *app) valid(*cli.Context) (jobFunc, error) {
	return func(_ context.Context, j job) error {
		if isDDS(j.File) {
			if err := validDDS(j.path()); err != nil {
				return err
			}
			a.logger.Info("valid", "file", j.File)
			return nil
		}
		tmp, cleanup, err := tempDir()
		if err != nil {
			return err
		}
		defer cleanup()
		r, err := verify.RoundTrip(j.path(), a.version, tmp, unreal.WithLogger(a.logger), unreal.WithVerbose(a.verbose))
		if err != nil {
			return err
		}
		if !r.OK() {
			return errors.Errorf("re-saved files differ: %s", strings.Join(r.Mismatches(), ", "))
		}
		a.logger.Info("valid", "file", j.File, "digests", r)
		return nil
	}, nil
}

// writeTexture saves d as base plus the export extension. DDS is written
// directly, plain 2D textures in a decodable format go through the built-in
// preview encoder, and everything else through texconv.
func (a *app) writeTexture(ctx context.Context, d *dds.DDS, base string, opts texconv.Options, compress bool) error {
	ext := a.cfg.ExportAs
	switch {
	case ext == "dds" && compress:
		return d.SaveCompressed(base+".dds.zst", archive.DefaultCompressionLevel)
	case ext == "dds":
		return d.Save(base + ".dds")
	case d.NumSlices() == 1 && preview.CanSave(d, "."+ext):
		_, err := preview.Save(d, base+"."+ext)
		return err
	}

	tmp, cleanup, err := tempDir()
	if err != nil {
		return err
	}
	defer cleanup()
	src := filepath.Join(tmp, filepath.Base(base)+".dds")
	if err := d.Save(src); err != nil {
		return err
	}
	_, err = a.conv.FromDDS(ctx, src, ext, filepath.Dir(base), opts)
	return err
}

func (a *app) export(c *cli.Context) (jobFunc, error) {
	noMips, compress := c.Bool("no-mipmaps"), c.Bool("compress")
	opts := a.texconvOptions(c)
	return func(ctx context.Context, j job) error {
		p, err := a.loadPackage(j.path())
		if err != nil {
			return err
		}
		if _, err := a.firstTexture(p); err != nil {
			return err
		}
		base := withExt(j.output(a.cfg.SaveFolder), "")
		for i, t := range p.Textures() {
			if noMips {
				t.RemoveMipmaps()
			}
			d, err := t.GetDDS()
			if err != nil {
				return err
			}
			name := base
			if i > 0 {
				name += "_" + t.Name()
			}
			if err := a.writeTexture(ctx, d, name, opts, compress); err != nil {
				return errors.Wrapf(err, "failed to export %s", t.Name())
			}
		}
		a.logger.Info("exported", "file", j.File, "as", a.cfg.ExportAs)
		return nil
	}, nil
}

// loadTexture reads a DDS as is or converts any other image to the
// texture's format with texconv.
func (a *app) loadTexture(ctx context.Context, path string, t *unreal.Texture, opts texconv.Options) (*dds.DDS, error) {
	if isDDS(path) {
		return dds.Load(path, dds.WithLogger(a.logger))
	}
	if t.Format.IsHDR() && !strings.EqualFold(filepath.Ext(path), ".hdr") {
		return nil, errors.Errorf("use .dds or .hdr to inject HDR textures (%s)", filepath.Base(path))
	}
	tmp, cleanup, err := tempDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()
	opts.Cubemap = t.TextureType() == "Cube"
	opts.NoMip = opts.NoMip || len(t.Mips) <= 1
	out, err := a.conv.ToDDS(ctx, path, t.Format, tmp, opts)
	if err != nil {
		return nil, err
	}
	return dds.Load(out, dds.WithLogger(a.logger))
}

func (a *app) inject(c *cli.Context) (jobFunc, error) {
	forceUncompressed, noMips := c.Bool("force-uncompressed"), c.Bool("no-mipmaps")
	official, setSource, err := packageSource(c)
	if err != nil {
		return nil, err
	}
	opts := a.texconvOptions(c)
	opts.NoMip = noMips
	return func(ctx context.Context, j job) error {
		if !isTextureFile(j.Texture) {
			return errors.Errorf("unsupported texture format (%s)", filepath.Ext(j.Texture))
		}
		p, err := a.loadPackage(j.path())
		if err != nil {
			return err
		}
		t, err := a.firstTexture(p)
		if err != nil {
			return err
		}
		if forceUncompressed {
			t.ToUncompressed()
		}
		d, err := a.loadTexture(ctx, j.Texture, t, opts)
		if err != nil {
			return err
		}
		if err := t.InjectDDS(d); err != nil {
			return err
		}
		if noMips {
			t.RemoveMipmaps()
		}
		if setSource {
			p.UpdatePackageSource(official)
		}
		if err := p.Save(j.output(a.cfg.SaveFolder), false); err != nil {
			return err
		}
		a.logger.Info("injected", "file", j.File, "texture", filepath.Base(j.Texture))
		return nil
	}, nil
}

func (a *app) removeMipmaps(*cli.Context) (jobFunc, error) {
	return func(_ context.Context, j job) error {
		p, err := a.loadPackage(j.path())
		if err != nil {
			return err
		}
		if _, err := a.firstTexture(p); err != nil {
			return err
		}
		for _, t := range p.Textures() {
			t.RemoveMipmaps()
		}
		return p.Save(j.output(a.cfg.SaveFolder), false)
	}, nil
}

// probe reports whether path round-trips under version v.
func (a *app) probe(path, v string) bool {
	tmp, cleanup, err := tempDir()
	if err != nil {
		return false
	}
	defer cleanup()
	r, err := verify.RoundTrip(path, version.MustParse(v), tmp)
	ok := err == nil && r.OK()
	a.logger.Debug("probe", "version", v, "passed", ok, "error", err)
	return ok
}

func (a *app) check(*cli.Context) (jobFunc, error) {
	return func(ctx context.Context, j job) error {
		pf, err := unreal.PeekPixelFormat(j.path())
		if err != nil {
			return err
		}
		a.logger.Info("pixel format", "file", j.File, "format", pf)
		if _, ok := unreal.FormatOf(pf); !ok {
			return errors.Errorf("unsupported pixel format (%s)", pf)
		}

		var passed []string
		for _, v := range version.Supported() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if a.probe(j.path(), v) {
				passed = append(passed, v)
			}
		}
		switch len(passed) {
		case 0:
			return errors.New("failed for all supported versions; the asset can not be modded with this tool")
		case 1:
			a.logger.Info("version found", "file", j.File, "version", passed[0])
		default:
			a.logger.Info("several versions can handle the asset", "file", j.File, "versions", strings.Join(passed, ", "))
		}
		return nil
	}, nil
}

func (a *app) convert(c *cli.Context) (jobFunc, error) {
	to := c.String("convert-to")
	ext := strings.ToLower(strings.TrimPrefix(to, "."))
	image := ext != "dds" && slices.Contains(textureExts, "."+ext)
	var format dds.Format
	if !image {
		f, ok := dds.ParseFormat(to)
		if !ok {
			return nil, errors.Errorf("the specified format is undefined (%s)", to)
		}
		format = f
	}
	opts := a.texconvOptions(c)
	opts.NoMip = c.Bool("no-mipmaps")

	return func(ctx context.Context, j job) error {
		outDir := filepath.Dir(j.output(a.cfg.SaveFolder))
		var err error
		switch {
		case !image:
			_, err = a.conv.ToDDS(ctx, j.path(), format, outDir, opts)
		case isDDS(j.File):
			d, lerr := dds.Load(j.path(), dds.WithLogger(a.logger))
			if lerr != nil {
				return lerr
			}
			if d.NumSlices() == 1 && preview.CanSave(d, "."+ext) {
				_, err = preview.Save(d, withExt(j.output(a.cfg.SaveFolder), "."+ext))
			} else {
				_, err = a.conv.FromDDS(ctx, j.path(), ext, outDir, opts)
			}
		default:
			_, err = a.conv.Convert(ctx, j.path(), ext, outDir)
		}
		if err != nil {
			return err
		}
		a.logger.Info("converted", "file", j.File, "to", to)
		return nil
	}, nil
}

func (a *app) copyPackage(c *cli.Context) (jobFunc, error) {
	official, setSource, err := packageSource(c)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, j job) error {
		p, err := a.loadPackage(j.path())
		if err != nil {
			return err
		}
		if setSource {
			p.UpdatePackageSource(official)
		}
		return p.Save(j.output(a.cfg.SaveFolder), false)
	}, nil
}
