// Package verify checks that a package survives an unmodified load and save.
// Every physical file is digested before and after the round trip.
package verify

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"github.com/goopsie/uetextools/pkg/unreal"
	"github.com/goopsie/uetextools/pkg/version"
)

// Extensions are the files that make up a package, in output order.
var Extensions = []string{".uasset", ".uexp", ".ubulk", ".uptnl"}

// Digests maps a file extension to the digest of that file's content.
type Digests map[string]digest.Digest

// Files digests every package file that exists next to path.
func Files(path string) (Digests, error) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	out := Digests{}
	for _, ext := range Extensions {
		f, err := os.Open(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %s", ext)
		}
		d, err := digest.Canonical.FromReader(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to digest %s", ext)
		}
		out[ext] = d
	}
	if _, ok := out[".uasset"]; !ok {
		return nil, errors.Errorf("%s.uasset not found", filepath.Base(base))
	}
	return out, nil
}

// Result holds the digests of the source and the re-saved package.
type Result struct {
	Before Digests
	After  Digests
}

// Mismatches lists the extensions whose content or presence changed.
func (r Result) Mismatches() []string {
	var out []string
	for _, ext := range Extensions {
		if r.Before[ext] != r.After[ext] {
			out = append(out, ext)
		}
	}
	return out
}

// OK reports whether every file came back byte for byte.
func (r Result) OK() bool { return len(r.Mismatches()) == 0 }

func (r Result) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(r.Before))
	for _, ext := range Extensions {
		if d, ok := r.Before[ext]; ok {
			attrs = append(attrs, slog.String(strings.TrimPrefix(ext, "."), d.Encoded()[:12]))
		}
	}
	return slog.GroupValue(attrs...)
}

// RoundTrip loads path as version v, saves it in valid mode under outDir
// and compares digests. A mismatch is not an error; inspect the Result.
func RoundTrip(path string, v version.Info, outDir string, opts ...unreal.Option) (Result, error) {
	var r Result
	before, err := Files(path)
	if err != nil {
		return r, err
	}
	r.Before = before

	out := filepath.Join(outDir, filepath.Base(path))
	if same(path, out) {
		return r, errors.New("output folder must differ from the source folder")
	}
	p, err := unreal.Load(path, v, opts...)
	if err != nil {
		return r, err
	}
	if err := p.Save(out, true); err != nil {
		return r, errors.Wrap(err, "failed to save")
	}
	after, err := Files(out)
	if err != nil {
		return r, err
	}
	r.After = after
	return r, nil
}

func same(a, b string) bool {
	a, errA := filepath.Abs(a)
	b, errB := filepath.Abs(b)
	return errA == nil && errB == nil && a == b
}

// Changed returns the extensions whose digest differs between before and
// the files now on disk next to path.
func Changed(before Digests, path string) ([]string, error) {
	after, err := Files(path)
	if err != nil {
		return nil, err
	}
	return Result{Before: before, After: after}.Mismatches(), nil
}
