package texconv

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goopsie/uetextools/pkg/dds"
)

type call struct {
	name string
	args []string
}

// fakeRun records each command and writes the file the real tool would.
func fakeRun(calls *[]call) runFunc {
	return func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, call{name, args})
		i := slices.Index(args, "-o")
		out := args[i+1]
		src := args[len(args)-1]
		if name == "texconv" {
			ext := "dds"
			if j := slices.Index(args, "-ft"); j >= 0 {
				ext = args[j+1]
			}
			out = outputPath(src, out, ext)
		}
		return os.WriteFile(out, []byte("x"), 0644)
	}
}

func newTestExec(calls *[]call) *Exec {
	e := New()
	e.run = fakeRun(calls)
	return e
}

func writeDDS(t *testing.T, dir, name string, f dds.Format, l dds.Layout) string {
	t.Helper()
	probe := &dds.DDS{}
	require.NoError(t, probe.Update(f, l))
	slices := make([][]byte, probe.NumSlices())
	for i := range slices {
		slices[i] = make([]byte, probe.SliceSize())
	}
	d, err := dds.New(f, l, slices)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, d.Save(path))
	return path
}

func TestToDDS(t *testing.T) {
	tests := []struct {
		name   string
		format dds.Format
		opts   Options
		tools  []string
		want   []string
	}{
		{"plain", dds.DXGIFormatBC1Unorm, Options{}, []string{"texconv"}, []string{"-f", "BC1_UNORM"}},
		{"no mips", dds.DXGIFormatBC7Unorm, Options{NoMip: true}, []string{"texconv"}, []string{"-m", "1"}},
		{"inverted normal", dds.DXGIFormatBC5Unorm, Options{InvertNormals: true}, []string{"texconv"}, []string{"-inverty"}},
		{"filter", dds.DXGIFormatBC3Unorm, Options{ImageFilter: "CUBIC"}, []string{"texconv"}, []string{"-if", "CUBIC"}},
		{"cubemap", dds.DXGIFormatBC6HUF16, Options{Cubemap: true, CubemapLayout: "v-strip"}, []string{"texassemble", "texconv"}, []string{"-f", "BC6H_UF16"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "T_Test.png")
			var calls []call
			out, err := newTestExec(&calls).ToDDS(context.Background(), src, tt.format, filepath.Join(dir, "out"), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "out", "T_Test.dds"), out)

			require.Len(t, calls, len(tt.tools))
			for i, c := range calls {
				assert.Equal(t, tt.tools[i], c.name)
			}
			last := calls[len(calls)-1].args
			assert.Subset(t, last, tt.want)
			if tt.opts.Cubemap {
				assert.Equal(t, "cube-from-vs", calls[0].args[0])
				assert.Contains(t, calls[0].args, "fp32")
			}
			if !tt.opts.InvertNormals {
				assert.NotContains(t, last, "-inverty")
			}
		})
	}
}

func TestToDDSErrors(t *testing.T) {
	dir := t.TempDir()
	var calls []call
	e := newTestExec(&calls)

	_, err := e.ToDDS(context.Background(), filepath.Join(dir, "a.png"), dds.DXGIFormatASTC4x4Unorm, dir, Options{})
	assert.ErrorContains(t, err, "does not support")

	_, err = e.ToDDS(context.Background(), filepath.Join(dir, "a.png"), dds.DXGIFormatBC1Unorm, dir, Options{Cubemap: true, CubemapLayout: "sphere"})
	assert.ErrorContains(t, err, "cubemap layout")
	assert.Empty(t, calls)

	e.run = func(context.Context, string, ...string) error { return nil }
	_, err = e.ToDDS(context.Background(), filepath.Join(dir, "a.png"), dds.DXGIFormatBC1Unorm, dir, Options{})
	assert.ErrorContains(t, err, "was not written")
}

func TestFromDDS(t *testing.T) {
	tests := []struct {
		name    string
		format  dds.Format
		layout  dds.Layout
		ext     string
		opts    Options
		wantExt string
		tools   []string
		want    []string
		absent  []string
	}{
		{"bgra to png", dds.DXGIFormatB8G8R8A8Unorm, dds.Layout{Width: 4, Height: 4}, "png", Options{}, "png", []string{"texconv"}, []string{"-ft", "png"}, []string{"-f"}},
		{"bc1 needs rgba", dds.DXGIFormatBC1Unorm, dds.Layout{Width: 4, Height: 4}, ".TGA", Options{}, "tga", []string{"texconv"}, []string{"-f", "rgba"}, nil},
		{"hdr tga becomes hdr", dds.DXGIFormatBC6HUF16, dds.Layout{Width: 4, Height: 4}, "tga", Options{}, "hdr", []string{"texconv"}, []string{"fp32", "-ft", "hdr"}, nil},
		{"normal map", dds.DXGIFormatBC5Unorm, dds.Layout{Width: 4, Height: 4}, "png", Options{InvertNormals: true}, "png", []string{"texconv"}, []string{"-reconstructz", "-inverty"}, nil},
		{"cube to native", dds.DXGIFormatR8G8B8A8Unorm, dds.Layout{Width: 4, Height: 4, Cube: true}, "tga", Options{}, "tga", []string{"texassemble"}, []string{"h-cross"}, nil},
		{"cube to png", dds.DXGIFormatR8G8B8A8Unorm, dds.Layout{Width: 4, Height: 4, Cube: true}, "png", Options{CubemapLayout: "v-cross"}, "png", []string{"texassemble", "texconv"}, []string{"-ft", "png"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := writeDDS(t, dir, "T_Test.dds", tt.format, tt.layout)
			var calls []call
			out, err := newTestExec(&calls).FromDDS(context.Background(), src, tt.ext, filepath.Join(dir, "out"), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, "out", "T_Test."+tt.wantExt), out)

			require.Len(t, calls, len(tt.tools))
			for i, c := range calls {
				assert.Equal(t, tt.tools[i], c.name)
			}
			last := calls[len(calls)-1].args
			assert.Subset(t, last, tt.want)
			for _, a := range tt.absent {
				assert.NotContains(t, last, a)
			}
			if len(calls) == 2 {
				assert.Equal(t, tt.opts.CubemapLayout, calls[0].args[0])
				_, err := os.Stat(filepath.Join(dir, "out", "T_Test.tga"))
				assert.True(t, os.IsNotExist(err))
			}
		})
	}
}

func TestFromDDSErrors(t *testing.T) {
	dir := t.TempDir()
	var calls []call
	e := newTestExec(&calls)

	vol := writeDDS(t, dir, "vol.dds", dds.DXGIFormatR8G8B8A8Unorm, dds.Layout{Width: 4, Height: 4, Depth: 4})
	_, err := e.FromDDS(context.Background(), vol, "png", dir, Options{})
	assert.ErrorContains(t, err, "3D")

	astc := writeDDS(t, dir, "astc.dds", dds.DXGIFormatASTC4x4Unorm, dds.Layout{Width: 4, Height: 4})
	_, err = e.FromDDS(context.Background(), astc, "png", dir, Options{})
	assert.ErrorContains(t, err, "export as dds")

	_, err = e.FromDDS(context.Background(), astc, "dds", dir, Options{})
	assert.ErrorContains(t, err, "dds to dds")
	assert.Empty(t, calls)
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	var calls []call
	out, err := newTestExec(&calls).Convert(context.Background(), filepath.Join(dir, "T_Test.tga"), ".png", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "T_Test.png"), out)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-ft", "png", "-o", dir, "-y", filepath.Join(dir, "T_Test.tga")}, calls[0].args)
}

func TestExecMissingTool(t *testing.T) {
	e := New(WithTexconv(filepath.Join(t.TempDir(), "no-such-texconv")))
	assert.False(t, e.Available())
	_, err := e.Convert(context.Background(), "a.tga", "png", t.TempDir())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "FAILED", lastLine("reading a.png\nFAILED\n"))
	assert.Equal(t, "one", lastLine(" one "))
	assert.Empty(t, lastLine(""))
}
