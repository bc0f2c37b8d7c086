package unreal

import (
	"log/slog"

	"github.com/goopsie/uetextools/pkg/archive"
)

// zenSummary is FZenPackageSummary, the header of UE5 IO store packages.
type zenSummary struct {
	HasVersionInfo            uint32
	TotalHeaderSize           uint32
	PackageName               uint32
	PackageNameNumber         uint32
	PackageFlags              uint32
	CookedSize                uint32
	ExportHashesOffset        int32
	ImportOffset              int32
	ExportOffset              int32
	ExportBundleEntriesOffset int32
	DependencyHeadersOffset   int32 // 5.3+
	DependencyEntriesOffset   int32 // 5.3+
	ImportedNamesOffset       int32 // 5.3+
	GraphDataOffset           int32 // before 5.3
	VersionInfo               []byte

	nameMapOffset int
	NameCount     uint32
	NamesSize     uint32
	PadSize       uint64 // 5.4+
	alignNames    bool
	BulkMapSize   int64 // 5.2+

	ExportHashes        []byte
	ExportBundleEntries []byte
	DependencyHeaders   []byte
	DependencyEntries   []byte
	ImportedNames       []byte
	GraphData           []byte

	gaps [8][]byte
}

func newZenSummary() *zenSummary { return &zenSummary{alignNames: true} }

func (s *zenSummary) serialize(a *archive.Archive) {
	a.Uint32(&s.HasVersionInfo)
	a.Uint32(&s.TotalHeaderSize)
	a.Uint32(&s.PackageName)
	a.Uint32(&s.PackageNameNumber)
	a.Uint32(&s.PackageFlags)
	a.Uint32(&s.CookedSize)
	a.Int32(&s.ExportHashesOffset)
	a.Int32(&s.ImportOffset)
	a.Int32(&s.ExportOffset)
	a.Int32(&s.ExportBundleEntriesOffset)
	if a.Version.AtLeast("5.3") {
		a.Int32(&s.DependencyHeadersOffset)
		a.Int32(&s.DependencyEntriesOffset)
		a.Int32(&s.ImportedNamesOffset)
	} else {
		a.Int32(&s.GraphDataOffset)
	}
	if s.HasVersionInfo != 0 {
		a.Raw(&s.VersionInfo, newSummaryPlan(a.Version).versionInfoSize)
	}
	s.nameMapOffset = a.Tell()
}

func (s *zenSummary) serializeTables(a *archive.Archive, t *tables, measure bool) {
	s.seekToNameMap(a)
	s.serializeNameMap(a, t.names)
	if a.Version.AtLeast("5.2") {
		s.serializeDataResources(a, t.resources)
	}

	size := int(s.ImportOffset - s.ExportHashesOffset)
	a.Region(&s.ExportHashesOffset, &s.gaps[0], "export hashes")
	a.Raw(&s.ExportHashes, size)

	s.serializeImports(a, t.imports)
	if measure {
		s.skipExports(a, len(*t.exports))
	} else {
		s.serializeExports(a, t.exports)
	}
	s.serializeOthers(a)
}

func (s *zenSummary) seekToNameMap(a *archive.Archive) {
	a.Seek(s.nameMapOffset)
}

func (s *zenSummary) serializeNameMap(a *archive.Archive, names *[]Name) {
	if a.IsWriting() {
		s.NameCount = uint32(len(*names))
		s.NamesSize = 0
		for i := range *names {
			s.NamesSize += uint32((*names)[i].byteSize())
		}
	}
	a.Uint32(&s.NameCount)
	a.Uint32(&s.NamesSize)
	a.ConstUint64(zenNameHashVersion, "name hash version")
	if a.IsReading() {
		if a.Err() != nil || int(s.NameCount) > a.Remaining() || int(s.NamesSize) > a.Remaining() {
			a.Failf("name map", "name batch larger than the header")
			return
		}
		*names = make([]Name, s.NameCount)
	}
	list := *names
	for i := range list {
		list[i].serializeZenHash(a)
	}
	lengths := make([]int, len(list))
	for i := range list {
		list[i].serializeZenHead(a, &lengths[i])
	}
	for i := range list {
		list[i].serializeZenString(a, lengths[i])
	}

	if a.Version.AtLeast("5.4") {
		if a.IsWriting() && s.alignNames {
			s.PadSize = uint64((8 - a.Tell()%8) % 8)
		}
		a.Uint64(&s.PadSize)
		if s.PadSize > 8 {
			a.Mismatch(a.Tell()-8, "name map padding", "at most 8", s.PadSize)
			return
		}
		pad := make([]byte, s.PadSize)
		pos := a.Tell()
		a.Raw(&pad, int(s.PadSize))
		for _, c := range pad {
			if c != 0 {
				a.Mismatch(pos, "name map padding", 0, c)
				return
			}
		}
		if a.IsReading() {
			s.alignNames = a.Tell()%8 == 0
		}
	}
}

func (s *zenSummary) serializeDataResources(a *archive.Archive, t *resourceTable) {
	if a.IsWriting() {
		s.BulkMapSize = int64(len(t.items) * mapResourceSize)
	}
	a.Int64(&s.BulkMapSize)
	if a.IsReading() && (s.BulkMapSize < 0 || s.BulkMapSize%mapResourceSize != 0) {
		a.Mismatch(a.Tell()-8, "bulk data map size", "a multiple of 32", s.BulkMapSize)
		return
	}
	archive.Array(a, &t.items, int(s.BulkMapSize/mapResourceSize), func(a *archive.Archive, r *DataResource) {
		if *r == nil {
			*r = &MapResource{}
		}
		(*r).serialize(a, 0)
	})
	if a.IsReading() {
		t.owned = make([]bool, len(t.items))
	}
}

func (s *zenSummary) serializeImports(a *archive.Archive, imports *[]Import) {
	n := int(s.ExportOffset-s.ImportOffset) / 8
	a.Region(&s.ImportOffset, &s.gaps[1], "import map")
	serializeImportList(a, s, imports, n)
}

func (s *zenSummary) serializeExports(a *archive.Archive, exports *[]Export) {
	n := int(s.ExportBundleEntriesOffset-s.ExportOffset) / zenExportSize
	a.Region(&s.ExportOffset, &s.gaps[2], "export map")
	serializeExportList(a, s, exports, n)
}

func (s *zenSummary) skipExports(a *archive.Archive, count int) {
	a.Region(&s.ExportOffset, &s.gaps[2], "export map")
	a.Skip(zenExportSize * count)
}

// serializeOthers moves the export bundles and dependency data. They are
// kept as bytes; only their offsets move.
func (s *zenSummary) serializeOthers(a *archive.Archive) {
	if a.Version.AtLeast("5.3") {
		sizes := []int{
			int(s.DependencyHeadersOffset - s.ExportBundleEntriesOffset),
			int(s.DependencyEntriesOffset - s.DependencyHeadersOffset),
			int(s.ImportedNamesOffset - s.DependencyEntriesOffset),
			int(int32(s.TotalHeaderSize) - s.ImportedNamesOffset),
		}
		a.Region(&s.ExportBundleEntriesOffset, &s.gaps[3], "export bundle entries")
		a.Raw(&s.ExportBundleEntries, sizes[0])
		a.Region(&s.DependencyHeadersOffset, &s.gaps[4], "dependency bundle headers")
		a.Raw(&s.DependencyHeaders, sizes[1])
		a.Region(&s.DependencyEntriesOffset, &s.gaps[5], "dependency bundle entries")
		a.Raw(&s.DependencyEntries, sizes[2])
		a.Region(&s.ImportedNamesOffset, &s.gaps[6], "imported package names")
		a.Raw(&s.ImportedNames, sizes[3])
		return
	}
	sizes := []int{
		int(s.GraphDataOffset - s.ExportBundleEntriesOffset),
		int(int32(s.TotalHeaderSize) - s.GraphDataOffset),
	}
	a.Region(&s.ExportBundleEntriesOffset, &s.gaps[3], "export bundle entries")
	a.Raw(&s.ExportBundleEntries, sizes[0])
	a.Region(&s.GraphDataOffset, &s.gaps[7], "graph data")
	a.Raw(&s.GraphData, sizes[1])
}

func (s *zenSummary) HeaderSize() int64       { return int64(s.TotalHeaderSize) }
func (s *zenSummary) CookedHeaderSize() int64 { return int64(s.CookedSize) }

func (s *zenSummary) IncFileSize(delta int64) {
	s.TotalHeaderSize = uint32(int64(s.TotalHeaderSize) + delta)
	s.CookedSize = uint32(int64(s.CookedSize) + delta)
}

// UpdatePackageSource is a no-op: IO store packages carry no package source.
func (s *zenSummary) UpdatePackageSource(string, bool) {}

func (s *zenSummary) IsUnversioned() bool { return s.PackageFlags&PkgUnversionedProperties != 0 }

func (s *zenSummary) newImport() Import { return &ZenImport{} }
func (s *zenSummary) newExport() Export { return &ZenExport{} }

func (s *zenSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("header_size", int(s.TotalHeaderSize)),
		slog.Int("cooked_header_size", int(s.CookedSize)),
		slog.Int("name_offset", s.nameMapOffset),
		slog.Int("import_offset", int(s.ImportOffset)),
		slog.Int("export_offset", int(s.ExportOffset)),
		slog.Bool("unversioned", s.IsUnversioned()),
	)
}

// zen4Summary is FPackageSummary, the header of UE4 IO store packages. Its
// name hashes follow the name map instead of preceding it.
type zen4Summary struct {
	Name                      uint32
	NameNumber                uint32
	SourceName                uint32
	SourceNameNumber          uint32
	PackageFlags              uint32
	CookedSize                uint32
	NameMapOffset             int32
	NameMapSize               int32
	NameHashesOffset          int32
	NameHashesSize            int32
	ImportOffset              int32
	ExportOffset              int32
	ExportBundleEntriesOffset int32
	GraphDataOffset           int32
	GraphDataSize             int32

	ExportBundleEntries []byte
	GraphData           []byte

	gaps [6][]byte
}

func (s *zen4Summary) serialize(a *archive.Archive) {
	a.Uint32(&s.Name)
	a.Uint32(&s.NameNumber)
	a.Uint32(&s.SourceName)
	a.Uint32(&s.SourceNameNumber)
	a.Uint32(&s.PackageFlags)
	a.Uint32(&s.CookedSize)
	a.Int32(&s.NameMapOffset)
	a.Int32(&s.NameMapSize)
	a.Int32(&s.NameHashesOffset)
	a.Int32(&s.NameHashesSize)
	a.Int32(&s.ImportOffset)
	a.Int32(&s.ExportOffset)
	a.Int32(&s.ExportBundleEntriesOffset)
	a.Int32(&s.GraphDataOffset)
	a.Int32(&s.GraphDataSize)
	a.ConstInt32(0, "summary padding")
}

func (s *zen4Summary) serializeTables(a *archive.Archive, t *tables, measure bool) {
	s.serializeNameMap(a, t.names)
	s.serializeImports(a, t.imports)
	if measure {
		s.skipExports(a, len(*t.exports))
	} else {
		s.serializeExports(a, t.exports)
	}
	size := int(s.GraphDataOffset - s.ExportBundleEntriesOffset)
	a.Region(&s.ExportBundleEntriesOffset, &s.gaps[4], "export bundle entries")
	a.Raw(&s.ExportBundleEntries, size)
	a.Region(&s.GraphDataOffset, &s.gaps[5], "graph data")
	a.Raw(&s.GraphData, int(s.GraphDataSize))
	if a.IsWriting() {
		s.GraphDataSize = int32(len(s.GraphData))
	}
}

func (s *zen4Summary) seekToNameMap(a *archive.Archive) {
	a.Region(&s.NameMapOffset, &s.gaps[0], "name map")
}

func (s *zen4Summary) serializeNameMap(a *archive.Archive, names *[]Name) {
	s.seekToNameMap(a)
	if a.IsReading() {
		n := int(s.NameHashesSize-8) / 8
		if s.NameHashesSize < 8 || n > a.Remaining() {
			a.Mismatch(a.Tell(), "name hashes size", "8 + 8 per name", s.NameHashesSize)
			return
		}
		*names = make([]Name, n)
	}
	list := *names
	for i := range list {
		var length int
		list[i].serializeZenHead(a, &length)
		list[i].serializeZenString(a, length)
	}
	if a.IsWriting() {
		s.NameMapSize = int32(a.Tell()) - s.NameMapOffset
	}
	a.Align(8)

	a.Region(&s.NameHashesOffset, &s.gaps[1], "name hashes")
	a.ConstUint64(zenNameHashVersion, "name hash version")
	for i := range list {
		list[i].serializeZenHash(a)
	}
	if a.IsWriting() {
		s.NameHashesSize = int32(len(list)*8 + 8)
	}
}

// serializeDataResources is a no-op: UE4 packages keep bulk data headers inline.
func (s *zen4Summary) serializeDataResources(*archive.Archive, *resourceTable) {}

func (s *zen4Summary) serializeImports(a *archive.Archive, imports *[]Import) {
	n := int(s.ExportOffset-s.ImportOffset) / 8
	a.Region(&s.ImportOffset, &s.gaps[2], "import map")
	serializeImportList(a, s, imports, n)
}

func (s *zen4Summary) serializeExports(a *archive.Archive, exports *[]Export) {
	n := int(s.ExportBundleEntriesOffset-s.ExportOffset) / zenExportSize
	a.Region(&s.ExportOffset, &s.gaps[3], "export map")
	serializeExportList(a, s, exports, n)
}

func (s *zen4Summary) skipExports(a *archive.Archive, count int) {
	a.Region(&s.ExportOffset, &s.gaps[3], "export map")
	a.Skip(zenExportSize * count)
}

func (s *zen4Summary) HeaderSize() int64       { return int64(s.GraphDataOffset) + int64(s.GraphDataSize) }
func (s *zen4Summary) CookedHeaderSize() int64 { return int64(s.CookedSize) }

// IncFileSize only moves the cooked size; the header size follows the graph data.
func (s *zen4Summary) IncFileSize(delta int64) {
	s.CookedSize = uint32(int64(s.CookedSize) + delta)
}

func (s *zen4Summary) UpdatePackageSource(string, bool) {}

func (s *zen4Summary) IsUnversioned() bool { return s.PackageFlags&PkgUnversionedProperties != 0 }

func (s *zen4Summary) newImport() Import { return &ZenImport{} }
func (s *zen4Summary) newExport() Export { return &ZenExport{} }

func (s *zen4Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("header_size", int(s.HeaderSize())),
		slog.Int("cooked_header_size", int(s.CookedSize)),
		slog.Int("name_offset", int(s.NameMapOffset)),
		slog.Int("name_hashes_offset", int(s.NameHashesOffset)),
		slog.Int("name_hashes_size", int(s.NameHashesSize)),
		slog.Int("import_offset", int(s.ImportOffset)),
		slog.Int("export_offset", int(s.ExportOffset)),
		slog.Bool("unversioned", s.IsUnversioned()),
	)
}
