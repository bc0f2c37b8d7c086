package unreal

import (
	"bytes"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/goopsie/uetextools/pkg/archive"
	"github.com/goopsie/uetextools/pkg/version"
)

// object is the decoded payload of an export.
type object interface {
	serializeObject(a *archive.Archive, st *streamState)
}

// streamState is what objects share while the export data is serialized.
type streamState struct {
	mc    mipContext
	ubulk int64 // bytes placed in .ubulk so far
	uptnl int64
}

// rawObject is an export whose class is not decoded. Its bytes are kept as is.
type rawObject struct {
	Data []byte
	size int
}

func (o *rawObject) serializeObject(a *archive.Archive, _ *streamState) {
	a.Raw(&o.Data, o.size)
}

func (t *Texture) serializeObject(a *archive.Archive, st *streamState) {
	t.serialize(a, &st.mc, st.ubulk, st.uptnl)
	if a.IsReading() {
		return
	}
	for _, m := range t.Mips {
		switch m.Type() {
		case BulkUbulk:
			st.ubulk += int64(len(m.Data))
		case BulkUptnl:
			st.uptnl += int64(len(m.Data))
		}
	}
}

// Package is a cooked asset: a .uasset header, its export data and the
// optional .ubulk and .uptnl payload files.
type Package struct {
	ctx    archive.Context
	logger *slog.Logger
	path   string // without extension

	summary   Summary
	names     []Name
	imports   []Import
	exports   []Export
	resources *resourceTable

	order       []int // export indices by serial offset
	trackedBase bool  // export offsets follow the (cooked) header size
	fixedBase   int64
	uexpTrailer []byte

	textures []*Texture
}

// Load reads the package at path. The extension is ignored; the sibling
// .uexp, .ubulk and .uptnl files are found next to it.
func Load(path string, v version.Info, opts ...Option) (*Package, error) {
	o := newOptions(opts)
	p := &Package{
		ctx:    archive.Context{Version: v, Verbose: o.verbose},
		logger: o.logger,
		path:   strings.TrimSuffix(path, filepath.Ext(path)),
	}
	if err := p.load(); err != nil {
		if errors.Is(err, archive.ErrFormat) || errors.Is(err, archive.ErrBufferBounds) {
			return nil, &archive.VersionMismatchError{Version: v.String(), Err: err}
		}
		return nil, err
	}
	return p, nil
}

func (p *Package) file(ext string) string { return p.path + ext }

func (p *Package) uexpName() string {
	if p.isLegacy() && !splitUexp(p.ctx.Version) {
		return filepath.Base(p.file(".uasset"))
	}
	return filepath.Base(p.file(".uexp"))
}

func (p *Package) isLegacy() bool {
	_, ok := p.summary.(*legacySummary)
	return ok
}

func readOptional(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

func (p *Package) newSummary(data []byte) Summary {
	v := p.ctx.Version
	if v.Less("4.25") || bytes.HasPrefix(data, packageTag) || bytes.HasPrefix(data, swappedTag) {
		return newLegacySummary(p.ctx)
	}
	p.ctx.Ucas = true
	if v.AtLeast("5.0") {
		return newZenSummary()
	}
	return &zen4Summary{}
}

// textureHeaderSize is the header size mip payload offsets are relative to.
func (p *Package) textureHeaderSize() int64 {
	if p.ctx.Ucas && p.ctx.Version.AtMost("5.1") {
		return p.summary.CookedHeaderSize()
	}
	return p.summary.HeaderSize()
}

func (p *Package) exportBase() int64 {
	if p.trackedBase {
		return p.summary.CookedHeaderSize()
	}
	return p.fixedBase
}

func (p *Package) tables() *tables {
	return &tables{names: &p.names, imports: &p.imports, exports: &p.exports, resources: p.resources}
}

func (p *Package) load() error {
	v := p.ctx.Version
	data, err := os.ReadFile(p.file(".uasset"))
	if err != nil {
		return errors.Wrap(err, "failed to read package")
	}
	p.summary = p.newSummary(data)
	p.resources = &resourceTable{shape: newResourceShape(v, p.ctx.Ucas)}

	a := archive.NewReader(filepath.Base(p.file(".uasset")), data, p.ctx)
	p.summary.serialize(a)
	p.summary.serializeTables(a, p.tables(), false)
	if err := a.Err(); err != nil {
		return err
	}
	p.resolve(a)
	if err := a.Err(); err != nil {
		return err
	}
	if p.ctx.Verbose {
		p.dumpHeader()
	}

	uexp, ubulk, err := p.splitStreams(data)
	if err != nil {
		return err
	}
	uptnl, err := readOptional(p.file(".uptnl"))
	if err != nil {
		return errors.Wrap(err, "failed to read .uptnl")
	}
	return p.loadObjects(uexp, ubulk, uptnl)
}

func (p *Package) resolve(a *archive.Archive) {
	for _, imp := range p.imports {
		switch imp := imp.(type) {
		case *LegacyImport:
			imp.resolve(a, p.names, p.imports)
		case *ZenImport:
			imp.resolve()
		}
	}
	for _, e := range p.exports {
		switch e := e.(type) {
		case *LegacyExport:
			e.resolve(a, p.names, p.imports, p.exports)
		case *ZenExport:
			e.resolve(a, p.names, p.exports)
		}
	}
}

func (p *Package) tagError(name string, pos int, got []byte) error {
	return &archive.FormatError{Name: name, Offset: pos, Field: "package tag", Expected: packageTag, Actual: got}
}

// splitStreams returns the export data and the .ubulk payload.
func (p *Package) splitStreams(uasset []byte) (uexp, ubulk []byte, err error) {
	v := p.ctx.Version
	header := p.summary.HeaderSize()
	if header < 0 || header > int64(len(uasset)) {
		return nil, nil, &archive.FormatError{Name: filepath.Base(p.file(".uasset")), Field: "header size",
			Msg: "header size exceeds the file size"}
	}

	if p.isLegacy() && !splitUexp(v) {
		if _, err := os.Stat(p.file(".uexp")); err == nil {
			return nil, nil, &archive.VersionMismatchError{Version: v.String(),
				Msg: ".uexp files are not used before UE 4.16"}
		}
		name := filepath.Base(p.file(".uasset"))
		bulk := int64(p.summary.(*legacySummary).BulkOffset)
		end := len(uasset) - len(packageTag)
		if bulk < header || bulk > int64(end) {
			return nil, nil, &archive.FormatError{Name: name, Field: "bulk data offset",
				Msg: "bulk data offset outside the file"}
		}
		if tag := uasset[end:]; !bytes.Equal(tag, packageTag) {
			return nil, nil, p.tagError(name, end, tag)
		}
		return uasset[header:bulk], uasset[bulk:end], nil
	}

	ubulk, err = readOptional(p.file(".ubulk"))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read .ubulk")
	}
	if !p.isLegacy() {
		return uasset[header:], ubulk, nil
	}

	uexp, err = os.ReadFile(p.file(".uexp"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, &archive.VersionMismatchError{Version: v.String(),
			Msg: ".uexp file not found. UE 4.16 and later store export data in .uexp"}
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read .uexp")
	}
	end := len(uexp) - len(packageTag)
	if end < 0 || !bytes.Equal(uexp[end:], packageTag) {
		return nil, nil, p.tagError(filepath.Base(p.file(".uexp")), max(end, 0), uexp[max(end, 0):])
	}
	return uexp[:end], ubulk, nil
}

func (p *Package) loadObjects(uexp, ubulk, uptnl []byte) error {
	p.order = make([]int, len(p.exports))
	for i := range p.order {
		p.order[i] = i
	}
	sort.SliceStable(p.order, func(i, j int) bool {
		return p.exports[p.order[i]].SerialOffset() < p.exports[p.order[j]].SerialOffset()
	})

	p.trackedBase = true
	if p.ctx.Ucas && len(p.order) > 0 {
		first := int64(p.exports[p.order[0]].SerialOffset())
		if first != p.summary.CookedHeaderSize() {
			p.trackedBase, p.fixedBase = false, first
		}
	}

	a := archive.NewReader(p.uexpName(), uexp, p.ctx)
	st := &streamState{mc: mipContext{inlineBase: p.textureHeaderSize(), resources: p.resources}}
	base := p.exportBase()
	for _, i := range p.order {
		e := p.exports[i]
		pos := a.Tell()
		if off := int64(e.SerialOffset()) - base; off != int64(pos) {
			return &archive.FormatError{Name: a.Name(), Offset: pos, Field: "export offset",
				Expected: pos, Actual: off}
		}
		var obj object
		if isTexture(e) {
			t := newTexture(p, e)
			p.textures = append(p.textures, t)
			obj = t
		} else {
			obj = &rawObject{size: int(e.SerialSize())}
		}
		obj.serializeObject(a, st)
		if err := a.Err(); err != nil {
			return errors.Wrapf(err, "failed to read %s", e.ObjectName())
		}
		if got := uint64(a.Tell() - pos); got != e.SerialSize() {
			return &archive.FormatError{Name: a.Name(), Offset: pos, Field: e.ObjectName() + " size",
				Expected: e.SerialSize(), Actual: got}
		}
		e.base().object = obj
	}
	a.Raw(&p.uexpTrailer, a.Remaining())

	ua := archive.NewReader(filepath.Base(p.file(".ubulk")), ubulk, p.ctx)
	pa := archive.NewReader(filepath.Base(p.file(".uptnl")), uptnl, p.ctx)
	for _, t := range p.textures {
		t.serializeBulk(ua, pa)
	}
	for _, b := range []*archive.Archive{ua, pa} {
		if err := b.Err(); err != nil {
			return err
		}
		if b.Remaining() != 0 {
			return &archive.FormatError{Name: b.Name(), Offset: b.Tell(), Field: "payload",
				Msg: "unused bytes after the last mip"}
		}
	}

	for _, t := range p.textures {
		t.state = stateReady
		if p.ctx.Verbose {
			p.logger.Debug("texture", "texture", t)
			for i, m := range t.Mips {
				p.logger.Debug("mip", "texture", t.Name(), "index", i, "mip", m)
			}
		}
	}
	return nil
}

func (p *Package) dumpHeader() {
	p.logger.Debug("summary", "file", filepath.Base(p.file(".uasset")), "summary", p.summary)
	for i, n := range p.names {
		p.logger.Debug("name", "index", i, "name", n)
	}
	for i, imp := range p.imports {
		p.logger.Debug("import", "index", i, "import", imp)
	}
	for i, e := range p.exports {
		p.logger.Debug("export", "index", i, "export", e)
	}
}

// Version returns the engine version the package was loaded with.
func (p *Package) Version() version.Info { return p.ctx.Version }

// IsUcas reports whether the package uses the IO store layout.
func (p *Package) IsUcas() bool { return p.ctx.Ucas }

// Name returns the file name without directory and extension.
func (p *Package) Name() string { return filepath.Base(p.path) }

// Names returns the name map.
func (p *Package) Names() []string {
	out := make([]string, len(p.names))
	for i, n := range p.names {
		out[i] = n.Value
	}
	return out
}

func (p *Package) Imports() []Import { return p.imports }
func (p *Package) Exports() []Export { return p.exports }

// Textures returns the decoded textures in export data order.
func (p *Package) Textures() []*Texture { return p.textures }

func (p *Package) HasTextures() bool { return len(p.textures) > 0 }

// MainClass returns the class of the first standalone export.
func (p *Package) MainClass() string {
	for _, e := range p.exports {
		if IsStandalone(e) {
			return e.ClassName()
		}
	}
	return ""
}

// IsOfficial reports whether a legacy package carries the source hash of
// an official asset. IO store packages always report false.
func (p *Package) IsOfficial() bool {
	s, ok := p.summary.(*legacySummary)
	return ok && s.isOfficial(p.path)
}

// UpdatePackageSource rewrites the package source of legacy packages.
func (p *Package) UpdatePackageSource(official bool) {
	p.summary.UpdatePackageSource(p.path, official)
}

func (p *Package) dirty() bool {
	for _, t := range p.textures {
		if t.dirty {
			return true
		}
	}
	return false
}

// prepareResources renumbers the data resource table after textures were
// edited. Resources no texture owns keep their index.
func (p *Package) prepareResources() error {
	rt := p.resources
	if rt.shape == shapeLegacy || !p.dirty() {
		return nil
	}
	var items []DataResource
	var owned []bool
	for i, r := range rt.items {
		if rt.owned[i] {
			continue
		}
		if i != len(items) {
			return errors.Errorf("data resource %d is used by an object that is not a texture and would be renumbered", i)
		}
		items = append(items, r)
		owned = append(owned, false)
	}
	rt.items, rt.owned = items, owned
	for _, t := range p.textures {
		for _, m := range t.Mips {
			m.index = rt.add(m.Resource)
		}
	}
	return nil
}

// Save writes the package to path. With valid set, derived fields keep
// their loaded values so an unedited package is reproduced byte for byte.
func (p *Package) Save(path string, valid bool) error {
	p.ctx.Valid = valid
	path = strings.TrimSuffix(path, filepath.Ext(path))
	if err := p.prepareResources(); err != nil {
		return err
	}

	// The header size depends on the name map, so measure it first.
	old := p.summary.HeaderSize()
	m := archive.NewWriter(filepath.Base(path)+".uasset", p.ctx)
	p.summary.serialize(m)
	p.summary.serializeTables(m, p.tables(), true)
	if err := m.Err(); err != nil {
		return err
	}
	p.summary.IncFileSize(int64(m.Tell()) - old)

	uexp := archive.NewWriter(p.uexpName(), p.ctx)
	st := &streamState{mc: mipContext{inlineBase: p.textureHeaderSize(), resources: p.resources}}
	base := p.exportBase()
	for _, i := range p.order {
		e := p.exports[i]
		pos := uexp.Tell()
		e.base().object.serializeObject(uexp, st)
		e.setSerial(uint64(base+int64(pos)), uint64(uexp.Tell()-pos))
	}
	uexp.Raw(&p.uexpTrailer, 0)
	uexpSize := int64(uexp.Size())
	for _, t := range p.textures {
		t.rewriteOffsets(uexp, p.summary.HeaderSize(), uexpSize)
	}

	ubulk := archive.NewWriter(filepath.Base(path)+".ubulk", p.ctx)
	uptnl := archive.NewWriter(filepath.Base(path)+".uptnl", p.ctx)
	for _, t := range p.textures {
		t.serializeBulk(ubulk, uptnl)
	}

	if s, ok := p.summary.(*legacySummary); ok {
		s.BulkOffset = int32(s.HeaderSize() + uexpSize)
	}
	h := archive.NewWriter(filepath.Base(path)+".uasset", p.ctx)
	p.summary.serialize(h)
	p.summary.serializeTables(h, p.tables(), false)
	for _, a := range []*archive.Archive{uexp, ubulk, uptnl, h} {
		if err := a.Err(); err != nil {
			return err
		}
	}
	if int64(h.Size()) != p.summary.HeaderSize() {
		return errors.Errorf("header is %d bytes, expected %d", h.Size(), p.summary.HeaderSize())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	files := p.outputFiles(h.Bytes(), uexp.Bytes(), ubulk.Bytes(), uptnl.Bytes())
	for _, ext := range []string{".uasset", ".uexp", ".ubulk", ".uptnl"} {
		data, ok := files[ext]
		if !ok {
			if err := os.Remove(path + ext); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return errors.Wrapf(err, "failed to remove stale %s", ext)
			}
			continue
		}
		if err := os.WriteFile(path+ext, data, 0644); err != nil {
			return errors.Wrapf(err, "failed to write %s", ext)
		}
	}
	for _, t := range p.textures {
		t.dirty = false
	}
	return nil
}

// outputFiles lays the streams out the way the package variant stores them.
// Empty payload files are left out.
func (p *Package) outputFiles(header, uexp, ubulk, uptnl []byte) map[string][]byte {
	files := map[string][]byte{}
	switch {
	case p.isLegacy() && !splitUexp(p.ctx.Version):
		files[".uasset"] = concat(header, uexp, ubulk, packageTag)
		return files
	case p.isLegacy():
		files[".uasset"] = header
		files[".uexp"] = concat(uexp, packageTag)
	default:
		files[".uasset"] = concat(header, uexp)
	}
	if len(ubulk) > 0 {
		files[".ubulk"] = ubulk
	}
	if len(uptnl) > 0 {
		files[".uptnl"] = uptnl
	}
	return files
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, b := range parts {
		n += len(b)
	}
	out := make([]byte, 0, n)
	for _, b := range parts {
		out = append(out, b...)
	}
	return out
}

func (p *Package) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", p.Name()),
		slog.String("version", p.ctx.Version.String()),
		slog.Bool("ucas", p.ctx.Ucas),
		slog.String("main_class", p.MainClass()),
		slog.Int("names", len(p.names)),
		slog.Int("imports", len(p.imports)),
		slog.Int("exports", len(p.exports)),
		slog.Int("textures", len(p.textures)),
	)
}
