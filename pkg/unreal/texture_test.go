package unreal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goopsie/uetextools/pkg/dds"
	"github.com/goopsie/uetextools/pkg/version"
)

func newTestDDS(t *testing.T, f dds.Format, l dds.Layout) *dds.DDS {
	t.Helper()
	d := &dds.DDS{}
	require.NoError(t, d.Update(f, l))
	slices := make([][]byte, d.NumSlices())
	for i := range slices {
		slices[i] = fill(int(d.SliceSize()), byte(100+i))
	}
	out, err := dds.New(f, l, slices)
	require.NoError(t, err)
	return out
}

func mipChain(w uint32, n int, ubulk int) []testMip {
	out := make([]testMip, n)
	for i := range out {
		s := max(1, w>>i)
		p := BulkUexp
		if i < ubulk {
			p = BulkUbulk
		}
		out[i] = testMip{s, s, p}
	}
	return out
}

func placements(tex *Texture) []BulkType {
	out := make([]BulkType, len(tex.Mips))
	for i, m := range tex.Mips {
		out[i] = m.Type()
	}
	return out
}

func TestInjectDDS(t *testing.T) {
	t.Run("larger surface moves big mips to ubulk", func(t *testing.T) {
		p := newTestPackage(t, "4.27", false, "PF_BC7", mipChain(256, 9, 2)...)
		tex := p.Textures()[0]
		d := newTestDDS(t, dds.DXGIFormatBC7Unorm, dds.Layout{Width: 512, Height: 512, Mips: 10})

		require.NoError(t, tex.InjectDDS(d))
		w, h := tex.Size()
		assert.Equal(t, uint32(512), w)
		assert.Equal(t, uint32(512), h)
		assert.Equal(t, uint32(512), tex.ImportedWidth)
		assert.Len(t, tex.Mips, 10)
		want := []BulkType{BulkUbulk, BulkUbulk, BulkUbulk}
		for range 7 {
			want = append(want, BulkUexp)
		}
		assert.Equal(t, want, placements(tex))
		assert.True(t, tex.HasUbulk)

		base := filepath.Join(t.TempDir(), "T_Test")
		require.NoError(t, p.Save(base+".uasset", false))
		q, err := Load(base+".uasset", version.MustParse("4.27"))
		require.NoError(t, err)
		got, err := q.Textures()[0].GetDDS()
		require.NoError(t, err)
		assert.Equal(t, d.Bytes(), got.Bytes())
	})

	t.Run("inline textures stay inline", func(t *testing.T) {
		p := newTestPackage(t, "4.27", false, "PF_DXT1", mipChain(1024, 11, 0)...)
		tex := p.Textures()[0]
		d := newTestDDS(t, dds.DXGIFormatBC1Unorm, dds.Layout{Width: 2048, Height: 2048, Mips: 12})
		require.NoError(t, tex.InjectDDS(d))
		for i, typ := range placements(tex) {
			assert.Equal(t, BulkUexp, typ, "mip %d", i)
		}
		assert.False(t, tex.HasUbulk)
	})

	t.Run("2048 surface keeps only the last mip inline", func(t *testing.T) {
		p := newTestPackage(t, "4.27", false, "PF_DXT1", mipChain(1024, 11, 10)...)
		tex := p.Textures()[0]
		d := newTestDDS(t, dds.DXGIFormatBC1Unorm, dds.Layout{Width: 2048, Height: 2048, Mips: 12})
		require.NoError(t, tex.InjectDDS(d))

		var want []BulkType
		for range 11 {
			want = append(want, BulkUbulk)
		}
		want = append(want, BulkUexp)
		assert.Equal(t, want, placements(tex))
		assert.True(t, tex.HasUbulk)

		base := filepath.Join(t.TempDir(), "T_Test")
		require.NoError(t, p.Save(base+".uasset", false))
		q, err := Load(base+".uasset", version.MustParse("4.27"))
		require.NoError(t, err)
		assert.Equal(t, want, placements(q.Textures()[0]))
		got, err := q.Textures()[0].GetDDS()
		require.NoError(t, err)
		assert.Equal(t, d.Bytes(), got.Bytes())
	})

	t.Run("last mip is never moved", func(t *testing.T) {
		p := newTestPackage(t, "4.27", false, "PF_DXT1", mipChain(64, 2, 1)...)
		tex := p.Textures()[0]
		d := newTestDDS(t, dds.DXGIFormatBC1Unorm, dds.Layout{Width: 256, Height: 256, Mips: 2})
		require.NoError(t, tex.InjectDDS(d))
		assert.Equal(t, []BulkType{BulkUbulk, BulkUexp}, placements(tex))
	})

	t.Run("table resources are renumbered on save", func(t *testing.T) {
		p := newTestPackage(t, "5.3", true, "PF_DXT1", mipChain(64, 7, 1)...)
		tex := p.Textures()[0]
		d := newTestDDS(t, dds.DXGIFormatBC1Unorm, dds.Layout{Width: 128, Height: 128, Mips: 8})
		require.NoError(t, tex.InjectDDS(d))

		base := filepath.Join(t.TempDir(), "T_Test")
		require.NoError(t, p.Save(base+".uasset", false))
		q, err := Load(base+".uasset", version.MustParse("5.3"))
		require.NoError(t, err)
		assert.Len(t, q.resources.items, 8)
		got, err := q.Textures()[0].GetDDS()
		require.NoError(t, err)
		assert.Equal(t, d.Bytes(), got.Bytes())
	})
}

func TestInjectDDSConstraints(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tex *Texture)
		dds   func(t *testing.T) *dds.DDS
		msg   string
	}{
		{
			name: "format",
			dds: func(t *testing.T) *dds.DDS {
				return newTestDDS(t, dds.DXGIFormatBC7Unorm, dds.Layout{Width: 64, Height: 64, Mips: 7})
			},
			msg: "The format does not match.",
		},
		{
			name: "texture type",
			dds: func(t *testing.T) *dds.DDS {
				return newTestDDS(t, dds.DXGIFormatBC1Unorm, dds.Layout{Width: 64, Height: 64, Cube: true})
			},
			msg: "Texture type does not match.",
		},
		{
			name: "array dds into 2D texture",
			dds: func(t *testing.T) *dds.DDS {
				return newTestDDS(t, dds.DXGIFormatBC1Unorm, dds.Layout{Width: 64, Height: 64, ArraySize: 2})
			},
			msg: "Texture type does not match.",
		},
		{
			name: "array size",
			setup: func(tex *Texture) {
				tex.IsArray = true
				tex.NumSlices = 2
			},
			dds: func(t *testing.T) *dds.DDS {
				return newTestDDS(t, dds.DXGIFormatBC1Unorm, dds.Layout{Width: 64, Height: 64, ArraySize: 3})
			},
			msg: "Array size does not match.",
		},
		{
			name: "volume mipmaps",
			setup: func(tex *Texture) {
				tex.Is3D = true
				tex.NumSlices = 4
			},
			dds: func(t *testing.T) *dds.DDS {
				return newTestDDS(t, dds.DXGIFormatBC1Unorm, dds.Layout{Width: 64, Height: 64, Depth: 4, Mips: 3})
			},
			msg: "Mipmaps are not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPackage(t, "4.27", false, "PF_DXT1", mipChain(64, 7, 2)...)
			tex := p.Textures()[0]
			if tt.setup != nil {
				tt.setup(tex)
			}
			mips := tex.Mips
			slices := tex.NumSlices
			iw, ih := tex.ImportedWidth, tex.ImportedHeight

			err := tex.InjectDDS(tt.dds(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConstraint)
			assert.Contains(t, err.Error(), tt.msg)

			assert.Equal(t, mips, tex.Mips)
			assert.Equal(t, slices, tex.NumSlices)
			assert.Equal(t, iw, tex.ImportedWidth)
			assert.Equal(t, ih, tex.ImportedHeight)
		})
	}
}

func TestRemoveMipmaps(t *testing.T) {
	tests := []struct {
		name   string
		pf     string
		format dds.Format
		mips   []testMip
		shrink bool
	}{
		{"DXT1 streamed", "PF_DXT1", dds.DXGIFormatBC1Unorm, mipChain(128, 8, 3), false},
		{"BC7 512 streamed", "PF_BC7", dds.DXGIFormatBC7Unorm, mipChain(512, 9, 1), false},
		{"BC7 512 inline", "PF_BC7", dds.DXGIFormatBC7Unorm, mipChain(512, 9, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "T_Test")
			require.NoError(t, newTestPackage(t, "4.27", false, tt.pf, tt.mips...).Save(base+".uasset", false))
			before := readFiles(t, base)

			p, err := Load(base+".uasset", version.MustParse("4.27"))
			require.NoError(t, err)
			tex := p.Textures()[0]
			d, err := tex.GetDDS()
			require.NoError(t, err)
			assert.Equal(t, tt.mips[0].w, d.Width())
			assert.Equal(t, tt.mips[0].h, d.Height())
			assert.Equal(t, uint32(len(tt.mips)), d.MipCount())
			assert.Equal(t, tt.format, d.Format)
			assert.Equal(t, "2D", d.TextureType())
			assert.Equal(t, uint32(1), d.NumSlices())

			first := tex.Mips[0].Data
			tex.RemoveMipmaps()
			require.Len(t, tex.Mips, 1)
			assert.Equal(t, BulkUexp, tex.Mips[0].Type())
			assert.Equal(t, first, tex.Mips[0].Data)
			assert.False(t, tex.HasUbulk)

			tex.RemoveMipmaps()
			assert.Len(t, tex.Mips, 1)

			require.NoError(t, p.Save(base+".uasset", false))
			after := readFiles(t, base)
			assert.NotContains(t, after, ".ubulk")
			_, err = os.Stat(base + ".ubulk")
			assert.True(t, os.IsNotExist(err))
			if tt.shrink {
				assert.Less(t, len(after[".uexp"]), len(before[".uexp"]))
			}

			q, err := Load(base+".uasset", version.MustParse("4.27"))
			require.NoError(t, err)
			got, err := q.Textures()[0].GetDDS()
			require.NoError(t, err)
			assert.Equal(t, uint32(1), got.MipCount())
			assert.Equal(t, first, got.Mip(0, 0))
		})
	}
}

func TestToUncompressed(t *testing.T) {
	p := newTestPackage(t, "4.27", false, "PF_DXT1", mipChain(16, 5, 0)...)
	tex := p.Textures()[0]
	assert.True(t, tex.IsCompressed())

	tex.ToUncompressed()
	assert.Equal(t, "PF_B8G8R8A8", tex.PixelFormat)
	assert.Equal(t, dds.DXGIFormatB8G8R8A8Unorm, tex.Format)
	assert.Equal(t, "PF_B8G8R8A8", p.Names()[2])
	assert.False(t, tex.IsCompressed())

	d := newTestDDS(t, dds.DXGIFormatB8G8R8A8Unorm, dds.Layout{Width: 16, Height: 16, Mips: 5})
	require.NoError(t, tex.InjectDDS(d))

	base := filepath.Join(t.TempDir(), "T_Test")
	require.NoError(t, p.Save(base+".uasset", false))
	q, err := Load(base+".uasset", version.MustParse("4.27"))
	require.NoError(t, err)
	assert.Equal(t, "PF_B8G8R8A8", q.Textures()[0].PixelFormat)
	got, err := q.Textures()[0].GetDDS()
	require.NoError(t, err)
	assert.Equal(t, d.Bytes(), got.Bytes())
}

func TestGetDDSShapes(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(tex *Texture)
		slices uint32
		typ    string
	}{
		{"2D", func(*Texture) {}, 1, "2D"},
		{"cube", func(tex *Texture) { tex.IsCube = true }, 6, "Cube"},
		{"array", func(tex *Texture) { tex.IsArray = true }, 3, "2DArray"},
		{"volume", func(tex *Texture) { tex.Is3D = true }, 4, "3D"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPackage(t, "4.27", false, "PF_DXT1", mipChain(32, 1, 0)...)
			tex := p.Textures()[0]
			tt.setup(tex)
			tex.NumSlices = tt.slices
			m := tex.Mips[0]
			m.Data = fill(len(m.Data)*int(tt.slices), 7)

			d, err := tex.GetDDS()
			require.NoError(t, err)
			assert.Equal(t, tt.typ, d.TextureType())
			assert.Equal(t, tt.slices, d.NumSlices())
			assert.Equal(t, m.Data[:len(m.Data)/int(tt.slices)], d.Mip(0, 0))

			require.NoError(t, tex.InjectDDS(d))
			assert.Equal(t, m.Data, tex.Mips[0].Data)
		})
	}
}

func TestTextureRequiresLoad(t *testing.T) {
	p := newTestPackage(t, "4.27", false, "PF_DXT1", mipChain(32, 1, 0)...)
	tex := p.Textures()[0]
	tex.state = stateMipsLoaded
	assert.Panics(t, func() { _, _ = tex.GetDDS() })
	assert.Panics(t, func() { tex.RemoveMipmaps() })
	assert.Panics(t, func() { tex.ToUncompressed() })
}

func TestScanProperties(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		size int
		ok   bool
	}{
		{"default flags", append([]byte{9, 9}, stripFlags[0]...), 10, true},
		{"5.4 flags", append([]byte{9}, stripFlags[1]...), 9, true},
		{"missing", []byte{1, 0, 1, 0, 1, 0, 0, 9, 9, 9}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestReader(tt.data)
			size, ok := scanProperties(a)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.size, size)
		})
	}
}
