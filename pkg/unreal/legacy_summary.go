package unreal

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/goopsie/uetextools/pkg/archive"
	"github.com/goopsie/uetextools/pkg/hash"
)

// legacySummary is FPackageFileSummary of a .uasset file.
type legacySummary struct {
	plan summaryPlan

	VersionInfo         []byte
	TotalHeaderSize     int32
	PackageName         string
	packageNameWide     bool
	PackageFlags        uint32
	NameCount           int32
	NameOffset          int32
	SoftObjectOffset    int32
	ExportCount         int32
	ExportOffset        int32
	ImportCount         int32
	ImportOffset        int32
	DependsOffset       int32
	StringAssetOffset   int32
	GUID                []byte
	Generations         []int32 // export and name count pairs
	EngineVersions      []byte
	Compression         []byte
	PackageSource       uint32
	AssetRegistryOffset int32
	BulkOffset          int32
	PreloadCount        int32
	PreloadOffset       int32
	ReferencedNames     int32
	PayloadTOCOffset    int64
	DataResourceOffset  int32

	nameGap, importGap, exportGap []byte
	tail                          legacyTail
}

// legacyTail keeps the regions after the export map that are not decoded:
// the depends map, asset registry data and preload dependencies. The data
// resource table, when present, splits it in two.
type legacyTail struct {
	before  []byte
	after   []byte
	anchors []anchor
}

// anchor ties a header offset to a position inside the tail so it follows
// the tail when the tables before it change size.
type anchor struct {
	field *int32
	seg   int
	rel   int32
}

const (
	segFixed = iota
	segBefore
	segAfter
)

func newLegacySummary(v archive.Context) *legacySummary {
	return &legacySummary{plan: newSummaryPlan(v.Version), DataResourceOffset: -1}
}

func (s *legacySummary) serialize(a *archive.Archive) {
	p := s.plan

	var tag []byte
	pos := a.Tell()
	if a.IsWriting() {
		tag = packageTag
	}
	a.Raw(&tag, 4)
	if a.IsReading() && a.Err() == nil && string(tag) != string(packageTag) {
		if string(tag) == string(swappedTag) {
			a.Fail(&archive.FormatError{Name: a.Name(), Offset: pos, Field: "tag", Msg: "big-endian packages are not supported"})
			return
		}
		a.Mismatch(pos, "tag", packageTag, tag)
		return
	}
	a.ConstInt32(p.fileVersion, "file version")
	a.Raw(&s.VersionInfo, p.versionInfoSize)
	a.Int32(&s.TotalHeaderSize)
	a.WideString(&s.PackageName, &s.packageNameWide)

	pos = a.Tell()
	a.Uint32(&s.PackageFlags)
	if a.IsReading() && a.Err() == nil && s.PackageFlags&PkgFilterEditorOnly == 0 {
		a.Fail(&archive.FormatError{Name: a.Name(), Offset: pos, Field: "package flags",
			Msg: "Unsupported file format detected. (PKG_FilterEditorOnly is false.)"})
		return
	}

	a.Int32(&s.NameCount)
	a.Int32(&s.NameOffset)
	if p.softObjectPaths {
		a.ConstInt32(0, "soft object path count")
		if a.IsWriting() {
			s.SoftObjectOffset = s.ImportOffset
		}
		a.Int32(&s.SoftObjectOffset)
	}
	if p.gatherableText {
		a.ConstInt32(0, "gatherable text count")
		a.ConstInt32(0, "gatherable text offset")
	}
	a.Int32(&s.ExportCount)
	a.Int32(&s.ExportOffset)
	a.Int32(&s.ImportCount)
	a.Int32(&s.ImportOffset)
	a.Int32(&s.DependsOffset)
	switch {
	case p.stringAssetRefs:
		a.ConstInt32(0, "string asset reference count")
		a.Int32(&s.StringAssetOffset)
	case p.softPackageRefs:
		a.ConstInt32(0, "soft package reference count")
		a.ConstInt32(0, "soft package reference offset")
		a.ConstInt32(0, "searchable names offset")
	}
	a.ConstInt32(0, "thumbnail table offset")
	a.Raw(&s.GUID, 16)

	n := int32(len(s.Generations) / 2)
	pos = a.Tell()
	a.Int32(&n)
	if a.IsReading() && a.Err() == nil && (n <= 0 || n >= 10) {
		a.Fail(&archive.FormatError{Name: a.Name(), Offset: pos, Field: "generation count",
			Expected: "1 to 9", Actual: n})
		return
	}
	archive.Array(a, &s.Generations, int(n)*2, (*archive.Archive).Int32)

	a.Raw(&s.EngineVersions, p.engineVersionSize)
	a.Raw(&s.Compression, 8)
	a.Uint32(&s.PackageSource)
	a.ConstInt32(0, "additional packages to cook")
	if p.textureAllocations {
		a.ConstInt32(0, "texture allocations")
	}
	a.Int32(&s.AssetRegistryOffset)
	a.Int32(&s.BulkOffset)
	a.ConstInt32(0, "world tile info offset")
	a.ConstInt32(0, "chunk id count")
	a.ConstInt32(0, "chunk id")
	if !p.preload {
		return
	}
	a.Int32(&s.PreloadCount)
	a.Int32(&s.PreloadOffset)
	if !p.payloadTOC {
		return
	}
	a.Int32(&s.ReferencedNames)
	a.Int64(&s.PayloadTOCOffset)
	if !p.dataResources {
		return
	}
	a.Int32(&s.DataResourceOffset)
}

func (s *legacySummary) serializeTables(a *archive.Archive, t *tables, measure bool) {
	s.seekToNameMap(a)
	s.serializeNameMap(a, t.names)
	s.serializeImports(a, t.imports)
	if measure {
		s.skipExports(a, len(*t.exports))
	} else {
		s.serializeExports(a, t.exports)
	}
	s.serializeTail(a, t.resources)
}

func (s *legacySummary) seekToNameMap(a *archive.Archive) {
	a.Region(&s.NameOffset, &s.nameGap, "name map")
}

func (s *legacySummary) serializeNameMap(a *archive.Archive, names *[]Name) {
	if a.IsWriting() {
		s.NameCount = int32(len(*names))
	}
	archive.Array(a, names, int(s.NameCount), func(a *archive.Archive, n *Name) { n.serializeLegacy(a) })
}

func (s *legacySummary) serializeImports(a *archive.Archive, imports *[]Import) {
	a.Region(&s.ImportOffset, &s.importGap, "import map")
	if a.IsWriting() {
		s.ImportCount = int32(len(*imports))
	}
	serializeImportList(a, s, imports, int(s.ImportCount))
}

func (s *legacySummary) serializeExports(a *archive.Archive, exports *[]Export) {
	a.Region(&s.ExportOffset, &s.exportGap, "export map")
	if a.IsWriting() {
		s.ExportCount = int32(len(*exports))
	}
	serializeExportList(a, s, exports, int(s.ExportCount))
}

func (s *legacySummary) skipExports(a *archive.Archive, count int) {
	a.Region(&s.ExportOffset, &s.exportGap, "export map")
	s.ExportCount = int32(count)
	a.Skip(newExportLayout(a.Version).size() * count)
}

// serializeTail moves the undecoded regions after the export map and the
// data resource table between them.
func (s *legacySummary) serializeTail(a *archive.Archive, t *resourceTable) {
	start := a.Tell()
	end := int(s.TotalHeaderSize)
	hasTable := s.plan.dataResources && s.DataResourceOffset != -1
	if a.IsWriting() {
		hasTable = s.plan.dataResources && len(t.items) > 0
	}

	if a.IsReading() {
		stop := end
		if hasTable {
			stop = int(s.DataResourceOffset)
		}
		if stop < start {
			a.Failf("header tail", "offset points before the end of the export map")
			return
		}
		a.Raw(&s.tail.before, stop-start)
		tableEnd := stop
		if hasTable {
			s.serializeDataResources(a, t)
			tableEnd = a.Tell()
			if end < tableEnd {
				a.Failf("header tail", "data resources run past the header")
				return
			}
		}
		a.Raw(&s.tail.after, end-tableEnd)
		s.tail.anchors = s.anchors(start, start+len(s.tail.before), tableEnd, end, hasTable)
		return
	}

	a.Raw(&s.tail.before, 0)
	tableEnd := a.Tell()
	if hasTable {
		s.serializeDataResources(a, t)
		tableEnd = a.Tell()
	} else if s.plan.dataResources {
		s.DataResourceOffset = -1
	}
	a.Raw(&s.tail.after, 0)
	for _, an := range s.tail.anchors {
		switch an.seg {
		case segBefore:
			*an.field = int32(start) + an.rel
		case segAfter:
			*an.field = int32(tableEnd) + an.rel
		}
	}
}

func (s *legacySummary) anchors(start, beforeEnd, tableEnd, end int, hasTable bool) []anchor {
	fields := []*int32{&s.DependsOffset, &s.AssetRegistryOffset}
	if s.plan.stringAssetRefs {
		fields = append(fields, &s.StringAssetOffset)
	}
	if s.plan.preload {
		fields = append(fields, &s.PreloadOffset)
	}
	out := make([]anchor, 0, len(fields))
	for _, f := range fields {
		o := int(*f)
		switch {
		case o >= start && o <= beforeEnd:
			out = append(out, anchor{f, segBefore, int32(o - start)})
		case hasTable && o >= tableEnd && o <= end:
			out = append(out, anchor{f, segAfter, int32(o - tableEnd)})
		}
	}
	return out
}

func (s *legacySummary) serializeDataResources(a *archive.Archive, t *resourceTable) {
	var gap []byte
	a.Region(&s.DataResourceOffset, &gap, "data resources")
	a.ConstInt32(1, "data resource version")
	n := int32(len(t.items))
	a.Int32(&n)
	archive.Array(a, &t.items, int(n), func(a *archive.Archive, r *DataResource) {
		if *r == nil {
			*r = &TableResource{}
		}
		(*r).serialize(a, 0)
	})
	if a.IsReading() {
		t.owned = make([]bool, len(t.items))
	}
}

func (s *legacySummary) HeaderSize() int64       { return int64(s.TotalHeaderSize) }
func (s *legacySummary) CookedHeaderSize() int64 { return int64(s.TotalHeaderSize) }
func (s *legacySummary) IncFileSize(delta int64) { s.TotalHeaderSize += int32(delta) }

func (s *legacySummary) IsUnversioned() bool { return s.PackageFlags&PkgUnversionedProperties != 0 }

func (s *legacySummary) newImport() Import { return &LegacyImport{} }
func (s *legacySummary) newExport() Export { return &LegacyExport{} }

// UpdatePackageSource marks the package as an official asset, using the
// CRC of its file name, or as a mod.
func (s *legacySummary) UpdatePackageSource(name string, official bool) {
	if official {
		s.PackageSource = hash.PackageCRC(baseName(name))
		return
	}
	s.PackageSource = hash.ModPackageSource
}

// isOfficial reports whether the package source matches the file name.
func (s *legacySummary) isOfficial(name string) bool {
	return s.PackageSource == hash.PackageCRC(baseName(name))
}

// baseName strips the directory and every extension.
func baseName(path string) string {
	b := filepath.Base(path)
	if i := strings.IndexByte(b, '.'); i >= 0 {
		b = b[:i]
	}
	return b
}

func (s *legacySummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("header_size", int(s.TotalHeaderSize)),
		slog.Int("names", int(s.NameCount)),
		slog.Int("name_offset", int(s.NameOffset)),
		slog.Int("exports", int(s.ExportCount)),
		slog.Int("export_offset", int(s.ExportOffset)),
		slog.Int("imports", int(s.ImportCount)),
		slog.Int("import_offset", int(s.ImportOffset)),
		slog.Int("depends_offset", int(s.DependsOffset)),
		slog.Int("bulk_offset", int(s.BulkOffset)),
		slog.Bool("unversioned", s.IsUnversioned()),
	)
}
