package main

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// textureExts are the image files inject and convert accept.
var textureExts = []string{".dds", ".tga", ".hdr", ".png", ".jpg", ".bmp"}

// job is one unit of batch work. File is relative to Folder and is also
// the path the output takes under the save folder.
type job struct {
	Folder  string
	File    string
	Texture string
}

func (j job) path() string { return filepath.Join(j.Folder, j.File) }

func (j job) output(saveFolder string) string { return filepath.Join(saveFolder, j.File) }

func isTextureFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".zst" {
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	}
	return slices.Contains(textureExts, ext)
}

// baseFolder splits a folder into its parent and its own name so outputs keep
// the folder name.
func baseFolder(p string) (dir, name string) {
	p = filepath.Clean(p)
	dir, name = filepath.Dir(p), filepath.Base(p)
	if dir == "." {
		dir = ""
	}
	return dir, name
}

// readFileList parses a .txt list: the first line is the base folder and
// each following line a path relative to it. Quotes and blank lines are
// ignored.
func readFileList(path string) (string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to open file list")
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.Trim(strings.TrimSpace(sc.Text()), `"'`)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return "", nil, errors.Wrap(err, "failed to read file list")
	}
	if len(lines) == 0 {
		return "", nil, errors.Errorf("%s is empty", filepath.Base(path))
	}
	return lines[0], lines[1:], nil
}

// walkFolder returns the files under root with one of exts, relative to
// root and sorted.
func walkFolder(root string, exts []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", root)
	}
	slices.Sort(out)
	return out, nil
}

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// expandJobs turns the command arguments into jobs. src is a file, a folder
// or a .txt list. texture is only used by inject, where it is the matching
// texture file or folder.
func expandJobs(src, texture string, inject bool, exts []string) ([]job, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open input")
	}

	switch {
	case !fi.IsDir() && strings.EqualFold(filepath.Ext(src), ".txt"):
		base, files, err := readFileList(src)
		if err != nil {
			return nil, err
		}
		dir, name := baseFolder(base)
		if !inject {
			jobs := make([]job, 0, len(files))
			for _, f := range files {
				jobs = append(jobs, job{Folder: dir, File: filepath.Join(name, f)})
			}
			return jobs, nil
		}
		if len(files)%2 != 0 {
			return nil, errors.New("inject file list needs uasset and texture pairs")
		}
		jobs := make([]job, 0, len(files)/2)
		for i := 0; i < len(files); i += 2 {
			jobs = append(jobs, job{
				Folder:  dir,
				File:    filepath.Join(name, files[i]),
				Texture: filepath.Join(dir, name, files[i+1]),
			})
		}
		return jobs, nil

	case !fi.IsDir():
		return []job{{Folder: filepath.Dir(src), File: filepath.Base(src), Texture: texture}}, nil

	case inject:
		if ti, err := os.Stat(texture); err != nil || !ti.IsDir() {
			return nil, errors.Errorf("the first argument is a folder but the second is not (%s)", texture)
		}
		textures, err := walkFolder(texture, textureExts)
		if err != nil {
			return nil, err
		}
		dir, name := baseFolder(src)
		jobs := make([]job, 0, len(textures))
		for _, t := range textures {
			jobs = append(jobs, job{
				Folder:  dir,
				File:    filepath.Join(name, withExt(t, ".uasset")),
				Texture: filepath.Join(texture, t),
			})
		}
		return jobs, nil

	default:
		files, err := walkFolder(src, exts)
		if err != nil {
			return nil, err
		}
		dir, name := baseFolder(src)
		jobs := make([]job, 0, len(files))
		for _, f := range files {
			jobs = append(jobs, job{Folder: dir, File: filepath.Join(name, f)})
		}
		return jobs, nil
	}
}
