package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, nil, 0644))
	}
}

func TestReadFileList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("\"C:/game/Content\"\n\nTextures/T_A.uasset\r\n  'T_B.uasset'  \n"), 0644))

	base, files, err := readFileList(path)
	require.NoError(t, err)
	assert.Equal(t, "C:/game/Content", base)
	assert.Equal(t, []string{"Textures/T_A.uasset", "T_B.uasset"}, files)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0644))
	_, _, err = readFileList(empty)
	assert.ErrorContains(t, err, "empty")
}

func TestExpandJobs(t *testing.T) {
	root := t.TempDir()
	content := filepath.Join(root, "Content")
	textures := filepath.Join(root, "edited")
	touch(t,
		filepath.Join(content, "T_A.uasset"),
		filepath.Join(content, "T_A.uexp"),
		filepath.Join(content, "Sub", "T_B.uasset"),
		filepath.Join(textures, "T_A.dds"),
		filepath.Join(textures, "Sub", "T_B.PNG"),
		filepath.Join(textures, "notes.md"),
	)
	list := filepath.Join(root, "list.txt")
	require.NoError(t, os.WriteFile(list, []byte(content+"\nT_A.uasset\nSub/T_B.uasset\n"), 0644))
	pairs := filepath.Join(root, "pairs.txt")
	require.NoError(t, os.WriteFile(pairs, []byte(content+"\nT_A.uasset\nT_A.dds\n"), 0644))
	odd := filepath.Join(root, "odd.txt")
	require.NoError(t, os.WriteFile(odd, []byte(content+"\nT_A.uasset\n"), 0644))

	tests := []struct {
		name    string
		src     string
		texture string
		inject  bool
		exts    []string
		want    []job
		err     string
	}{
		{
			name: "single file",
			src:  filepath.Join(content, "T_A.uasset"),
			want: []job{{Folder: content, File: "T_A.uasset"}},
		},
		{
			name:    "single inject",
			src:     filepath.Join(content, "T_A.uasset"),
			texture: "x.dds",
			inject:  true,
			want:    []job{{Folder: content, File: "T_A.uasset", Texture: "x.dds"}},
		},
		{
			name: "folder",
			src:  content,
			exts: []string{".uasset"},
			want: []job{
				{Folder: root, File: filepath.Join("Content", "Sub", "T_B.uasset")},
				{Folder: root, File: filepath.Join("Content", "T_A.uasset")},
			},
		},
		{
			name:    "folder inject",
			src:     content,
			texture: textures,
			inject:  true,
			want: []job{
				{Folder: root, File: filepath.Join("Content", "Sub", "T_B.uasset"), Texture: filepath.Join(textures, "Sub", "T_B.PNG")},
				{Folder: root, File: filepath.Join("Content", "T_A.uasset"), Texture: filepath.Join(textures, "T_A.dds")},
			},
		},
		{
			name:    "folder inject needs texture folder",
			src:     content,
			texture: filepath.Join(textures, "T_A.dds"),
			inject:  true,
			err:     "second is not",
		},
		{
			name: "list",
			src:  list,
			want: []job{
				{Folder: root, File: filepath.Join("Content", "T_A.uasset")},
				{Folder: root, File: filepath.Join("Content", "Sub", "T_B.uasset")},
			},
		},
		{
			name:   "inject pairs",
			src:    pairs,
			inject: true,
			want: []job{
				{Folder: root, File: filepath.Join("Content", "T_A.uasset"), Texture: filepath.Join(content, "T_A.dds")},
			},
		},
		{name: "odd pairs", src: odd, inject: true, err: "pairs"},
		{name: "missing", src: filepath.Join(root, "nope"), err: "failed to open input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandJobs(tt.src, tt.texture, tt.inject, tt.exts)
			if tt.err != "" {
				assert.ErrorContains(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobPaths(t *testing.T) {
	j := job{Folder: "game", File: filepath.Join("Content", "T_A.uasset")}
	assert.Equal(t, filepath.Join("game", "Content", "T_A.uasset"), j.path())
	assert.Equal(t, filepath.Join("out", "Content", "T_A.uasset"), j.output("out"))
	assert.Equal(t, filepath.Join("out", "Content", "T_A"), withExt(j.output("out"), ""))
}

func TestIsTextureFile(t *testing.T) {
	for path, want := range map[string]bool{
		"a.dds":     true,
		"a.DDS":     true,
		"a.dds.zst": true,
		"a.hdr":     true,
		"a.uasset":  false,
		"a.zst":     false,
		"a":         false,
	} {
		assert.Equal(t, want, isTextureFile(path), path)
	}
	assert.True(t, isDDS("T.DDS.zst"))
	assert.False(t, isDDS("T.png"))
}

func TestRunJobs(t *testing.T) {
	jobs := make([]job, 20)
	for i := range jobs {
		jobs[i] = job{File: filepath.Join("f", string(rune('a'+i)))}
	}

	t.Run("all succeed", func(t *testing.T) {
		var inFlight, peak atomic.Int32
		n, err := runJobs(context.Background(), jobs, 3, func(context.Context, job) error {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			inFlight.Add(-1)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, len(jobs), n)
		assert.LessOrEqual(t, peak.Load(), int32(3))
	})

	t.Run("first error wins", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := runJobs(context.Background(), jobs, 1, func(_ context.Context, j job) error {
			if j.File == jobs[2].File {
				return boom
			}
			return nil
		})
		assert.True(t, errors.Is(err, boom))
		assert.ErrorContains(t, err, jobs[2].File)
	})
}
