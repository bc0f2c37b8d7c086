package unreal

import (
	"log/slog"

	"github.com/goopsie/uetextools/pkg/archive"
)

// Summary is a package header. The legacy .uasset header and the two IO
// store headers implement it, so Package never branches on the layout.
type Summary interface {
	serialize(a *archive.Archive)

	// serializeTables moves everything between the fixed header and the
	// end of the header region. A measuring pass writes placeholder exports.
	serializeTables(a *archive.Archive, t *tables, measure bool)

	serializeNameMap(a *archive.Archive, names *[]Name)
	serializeImports(a *archive.Archive, imports *[]Import)
	serializeExports(a *archive.Archive, exports *[]Export)
	serializeDataResources(a *archive.Archive, t *resourceTable)
	seekToNameMap(a *archive.Archive)
	skipExports(a *archive.Archive, count int)

	// HeaderSize is the byte size of the header region.
	HeaderSize() int64
	// CookedHeaderSize is the header size of the cooked legacy package an
	// IO store package was converted from.
	CookedHeaderSize() int64
	IncFileSize(delta int64)
	UpdatePackageSource(name string, official bool)
	IsUnversioned() bool
	newImport() Import
	newExport() Export

	slog.LogValuer
}

// tables are the package structures a Summary serializes.
type tables struct {
	names     *[]Name
	imports   *[]Import
	exports   *[]Export
	resources *resourceTable
}

func serializeImportList(a *archive.Archive, s Summary, imports *[]Import, n int) {
	archive.Array(a, imports, n, func(a *archive.Archive, imp *Import) {
		if *imp == nil {
			*imp = s.newImport()
		}
		(*imp).serialize(a)
	})
}

func serializeExportList(a *archive.Archive, s Summary, exports *[]Export, n int) {
	archive.Array(a, exports, n, func(a *archive.Archive, e *Export) {
		if *e == nil {
			*e = s.newExport()
		}
		(*e).serialize(a)
	})
}
