// Package texconv drives the DirectXTex command line tools (texconv and
// texassemble) to move textures between DDS and ordinary image files.
package texconv

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/goopsie/uetextools/pkg/dds"
)

// ErrNotFound is returned when a converter executable cannot be located.
var ErrNotFound = errors.New("converter not found")

// maxCanonical is the last format texconv can read or write. ASTC and ETC
// sit above it.
const maxCanonical dds.Format = 115

// CubemapLayouts are the accepted values of Options.CubemapLayout.
var CubemapLayouts = []string{"h-cross", "v-cross", "h-strip", "v-strip"}

// Options tune a single conversion.
type Options struct {
	InvertNormals bool
	NoMip         bool
	Cubemap       bool
	CubemapLayout string // h-cross, v-cross, h-strip, v-strip
	ImageFilter   string
}

func (o Options) layout() (string, error) {
	if o.CubemapLayout == "" {
		return "h-cross", nil
	}
	for _, l := range CubemapLayouts {
		if l == o.CubemapLayout {
			return l, nil
		}
	}
	return "", errors.Errorf("unknown cubemap layout %q", o.CubemapLayout)
}

// Converter turns DDS files into images and back. Every method returns the
// path of the file it wrote.
type Converter interface {
	ToDDS(ctx context.Context, src string, format dds.Format, outDir string, opts Options) (string, error)
	FromDDS(ctx context.Context, src string, ext string, outDir string, opts Options) (string, error)
	Convert(ctx context.Context, src string, ext string, outDir string) (string, error)
}

type runFunc func(ctx context.Context, name string, args ...string) error

// Exec is a Converter backed by the texconv and texassemble executables.
type Exec struct {
	texconv     string
	texassemble string
	logger      *slog.Logger
	run         runFunc
}

var _ Converter = (*Exec)(nil)

// Option configures an Exec.
type Option func(*Exec)

// WithTexconv sets the texconv executable. A bare name is looked up in PATH.
func WithTexconv(path string) Option {
	return func(e *Exec) {
		if path != "" {
			e.texconv = path
		}
	}
}

// WithTexassemble sets the texassemble executable.
func WithTexassemble(path string) Option {
	return func(e *Exec) {
		if path != "" {
			e.texassemble = path
		}
	}
}

// WithLogger logs every command line at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exec) { e.logger = l }
}

// New returns an Exec using texconv and texassemble from PATH unless
// overridden.
func New(opts ...Option) *Exec {
	e := &Exec{
		texconv:     "texconv",
		texassemble: "texassemble",
		logger:      slog.New(slog.DiscardHandler),
	}
	e.run = e.exec
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available reports whether texconv can be found.
func (e *Exec) Available() bool {
	_, err := exec.LookPath(e.texconv)
	return err == nil
}

func (e *Exec) exec(ctx context.Context, name string, args ...string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "%s", name)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr, stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = lastLine(stdout.String())
		}
		return errors.Wrapf(err, "%s failed: %s", filepath.Base(name), msg)
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func (e *Exec) invoke(ctx context.Context, name string, args ...string) error {
	e.logger.Debug("run converter", "cmd", name, "args", strings.Join(args, " "))
	return e.run(ctx, name, args...)
}

// texconvRun appends the output folder and source to args and runs texconv.
func (e *Exec) texconvRun(ctx context.Context, src, outDir string, args []string) error {
	args = append(args, "-o", outDir, "-y", filepath.Clean(src))
	return e.invoke(ctx, e.texconv, args...)
}

func (e *Exec) texassembleRun(ctx context.Context, cmd, src, out string, args []string) error {
	full := append([]string{cmd}, args...)
	full = append(full, "-y", "-o", out, filepath.Clean(src))
	return e.invoke(ctx, e.texassemble, full...)
}

func outputPath(src, outDir, ext string) string {
	base := filepath.Base(src)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, base+"."+strings.TrimPrefix(ext, "."))
}

func expectOutput(path, src string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", errors.Errorf("failed to convert %s: %s was not written", src, path)
	}
	return path, nil
}

// ToDDS converts an image to a DDS file of the given format. With
// opts.Cubemap the image is first split into six faces by texassemble.
func (e *Exec) ToDDS(ctx context.Context, src string, format dds.Format, outDir string, opts Options) (string, error) {
	if format > maxCanonical || !format.Supported() {
		return "", errors.Errorf("texconv does not support %s; convert the image to dds with another tool", format)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create output folder")
	}

	args := []string{"-f", format.String()}
	if opts.NoMip {
		args = append(args, "-m", "1")
	}
	if opts.InvertNormals && format.IsNormalMap() {
		args = append(args, "-inverty")
	}
	if opts.ImageFilter != "" {
		args = append(args, "-if", opts.ImageFilter)
	}

	input := src
	if opts.Cubemap {
		layout, err := opts.layout()
		if err != nil {
			return "", err
		}
		tmp, err := os.MkdirTemp("", "uetex-cube")
		if err != nil {
			return "", errors.Wrap(err, "failed to create temp folder")
		}
		defer os.RemoveAll(tmp)

		input = outputPath(src, tmp, "dds")
		cmd := "cube-from-" + layout[:1] + layout[2:3]
		if err := e.texassembleRun(ctx, cmd, src, input, []string{"-f", intermediateFormat(format)}); err != nil {
			return "", err
		}
	}

	if err := e.texconvRun(ctx, input, outDir, args); err != nil {
		return "", err
	}
	return expectOutput(outputPath(src, outDir, "dds"), src)
}

func intermediateFormat(f dds.Format) string {
	if f.IsHDR() {
		return "fp32"
	}
	return "rgba"
}

// FromDDS converts a DDS file to an image with extension ext. HDR formats
// are written as .hdr when tga is requested. Cubemaps are unfolded with
// texassemble using opts.CubemapLayout.
func (e *Exec) FromDDS(ctx context.Context, src string, ext string, outDir string, opts Options) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "dds" {
		return "", errors.New("can not convert dds to dds")
	}
	d, err := dds.Load(src)
	if err != nil {
		return "", err
	}
	if d.Is3D() {
		return "", errors.New("can not convert 3D textures with texconv")
	}
	if d.Format > maxCanonical {
		return "", errors.Errorf("texconv does not support %s; export as dds instead", d.Format)
	}
	if d.Format.IsInt() {
		e.logger.Warn("integer format might not convert correctly", "format", d.Format)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create output folder")
	}

	var args []string
	native := "tga"
	if d.Format.IsHDR() {
		native = "hdr"
		if ext == "tga" {
			ext = native
		}
		if d.Format != dds.DXGIFormatR32G32B32A32Float {
			args = append(args, "-f", "fp32")
		}
	} else if d.Format != dds.DXGIFormatR8G8B8A8Unorm && d.Format != dds.DXGIFormatB8G8R8A8Unorm {
		args = append(args, "-f", "rgba")
	}

	post := []string{"-ft", ext}
	if d.Format.IsNormalMap() {
		post = append(post, "-reconstructz")
		if opts.InvertNormals {
			post = append(post, "-inverty")
		}
	}

	out := outputPath(src, outDir, ext)
	if !d.IsCube() {
		if err := e.texconvRun(ctx, src, outDir, append(args, post...)); err != nil {
			return "", err
		}
		return expectOutput(out, src)
	}

	layout, err := opts.layout()
	if err != nil {
		return "", err
	}
	unfolded := outputPath(src, outDir, native)
	if err := e.texassembleRun(ctx, layout, src, unfolded, args); err != nil {
		return "", err
	}
	if ext == native {
		return expectOutput(unfolded, src)
	}
	if err := e.texconvRun(ctx, unfolded, outDir, post); err != nil {
		return "", err
	}
	if err := os.Remove(unfolded); err != nil {
		e.logger.Warn("failed to remove intermediate file", "path", unfolded, "error", err)
	}
	return expectOutput(out, src)
}

// Convert converts between two non-DDS image formats.
func (e *Exec) Convert(ctx context.Context, src string, ext string, outDir string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create output folder")
	}
	if err := e.texconvRun(ctx, src, outDir, []string{"-ft", ext}); err != nil {
		return "", err
	}
	return expectOutput(outputPath(src, outDir, ext), src)
}
