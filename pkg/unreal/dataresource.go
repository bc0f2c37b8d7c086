package unreal

import (
	"log/slog"

	"github.com/goopsie/uetextools/pkg/archive"
)

// BulkType is where a bulk payload is stored.
type BulkType int

const (
	BulkUnknown BulkType = iota
	BulkUexp
	BulkUbulk
	BulkUptnl
	BulkNone
)

func (t BulkType) String() string {
	switch t {
	case BulkUexp:
		return "uexp"
	case BulkUbulk:
		return "ubulk"
	case BulkUptnl:
		return "uptnl"
	case BulkNone:
		return "none"
	}
	return "unknown"
}

// BulkData is the logical state shared by every data resource shape.
// Type is derived from Flags on read and Flags from Type on write.
type BulkData struct {
	Type        BulkType
	Flags       uint32
	DataSize    int64
	Offset      int64
	WrongOffset bool // the loader adds the bulk start offset to Offset
	Size64      bool
}

// IsInline reports whether the payload lives in the export data.
func (b *BulkData) IsInline() bool { return b.Type == BulkUexp || b.Type == BulkNone }

func (b *BulkData) unpack(a *archive.Archive) {
	switch {
	case b.Flags&BulkForceInlinePayload != 0:
		b.Type = BulkUexp
	case b.Flags&BulkUnused != 0:
		b.Type = BulkNone
	case b.Flags&BulkOptionalPayload != 0:
		b.Type = BulkUptnl
	default:
		b.Type = BulkUbulk
	}
	p := newBulkPlan(a.Version)
	switch {
	case p.noFixUpFlag:
		b.WrongOffset = b.Flags&BulkNoOffsetFixUp == 0
	case p.dispatcherError && b.Flags&BulkNoOffsetFixUp != 0:
		a.Failf("bulk flags", "BULKDATA_UsesIoDispatcher is not supported for this version")
	default:
		b.WrongOffset = true
	}
	b.Size64 = b.Flags&BulkSize64Bit != 0
}

func (b *BulkData) updateFlags(a *archive.Archive) {
	p := newBulkPlan(a.Version)
	switch b.Type {
	case BulkUexp:
		b.Flags = BulkForceInlinePayload
		if p.singleUse {
			b.Flags |= BulkSingleUse
		}
	case BulkNone:
		b.Flags = BulkUnused
	default:
		b.Flags = BulkPayloadAtEndOfFile
		if p.forceNotInline {
			b.Flags |= BulkForceNotInlinePayload
		}
		if p.separateFile {
			b.Flags |= BulkPayloadInSeparateFile
		}
		if p.noFixUpFlag {
			b.Flags |= BulkNoOffsetFixUp
		} else {
			b.WrongOffset = true
		}
		if b.Type == BulkUptnl {
			b.Flags |= BulkOptionalPayload
		}
	}
	if b.Size64 {
		b.Flags |= BulkSize64Bit
	}
}

func (b *BulkData) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", b.Type.String()),
		slog.Uint64("flags", uint64(b.Flags)),
		slog.Int64("size", b.DataSize),
		slog.Int64("offset", b.Offset),
	)
}

// DataResource is the on-disk record describing one bulk payload.
type DataResource interface {
	Bulk() *BulkData

	// set replaces the payload description after an edit.
	set(t BulkType, size int64)
	serialize(a *archive.Archive, inlineBase int64)
}

// newResource returns an empty resource in the shape the package uses.
func newResource(shape resourceShape) DataResource {
	switch shape {
	case shapeTable:
		return &TableResource{DuplicateOffset: -1, OuterIndex: 1}
	case shapeMap:
		return &MapResource{DuplicateOffset: -1}
	}
	return &LegacyResource{}
}

// LegacyResource is the bulk data header written inline before UE 5.2.
type LegacyResource struct {
	BulkData

	offsetPos int
}

func (r *LegacyResource) Bulk() *BulkData { return &r.BulkData }

func (r *LegacyResource) set(t BulkType, size int64) {
	r.Type, r.DataSize, r.Offset = t, size, 0
	r.Size64 = size > 1<<31
}

// serialize writes inline payload offsets as inlineBase plus the payload's
// position in the export data.
func (r *LegacyResource) serialize(a *archive.Archive, inlineBase int64) {
	if a.IsWriting() && !a.Valid {
		r.updateFlags(a)
	}
	a.Uint32(&r.Flags)
	if a.IsReading() {
		r.unpack(a)
	}
	if r.Size64 {
		a.Int64(&r.DataSize)
		a.ConstInt64(r.DataSize, "bulk size on disk")
	} else {
		n := int32(r.DataSize)
		a.Int32(&n)
		r.DataSize = int64(n)
		a.ConstInt32(n, "bulk size on disk")
	}
	if a.IsWriting() && r.IsInline() {
		r.Offset = inlineBase + int64(a.Tell()) + 8
	}
	r.offsetPos = a.Tell()
	a.Int64(&r.Offset)
}

// patchOffset rewrites the stored offset after the stream has been written.
func (r *LegacyResource) patchOffset(a *archive.Archive, offset int64) {
	r.Offset = offset
	a.PatchInt64(r.offsetPos, offset)
}

// TableResource is FObjectDataResource, stored in the .uasset of UE 5.2+.
type TableResource struct {
	BulkData

	ResourceFlags   uint32
	DuplicateOffset int64
	OuterIndex      int32
}

func (r *TableResource) Bulk() *BulkData { return &r.BulkData }

func (r *TableResource) set(t BulkType, size int64) {
	r.Type, r.DataSize, r.Offset = t, size, 0
	r.Size64 = true
}

func (r *TableResource) serialize(a *archive.Archive, _ int64) {
	if a.IsWriting() && !a.Valid {
		r.updateFlags(a)
	}
	a.Uint32(&r.ResourceFlags)
	a.Int64(&r.Offset)
	a.Int64(&r.DuplicateOffset)
	a.Int64(&r.DataSize)
	a.ConstInt64(r.DataSize, "raw size")
	a.Int32(&r.OuterIndex)
	a.Uint32(&r.Flags)
	if a.IsReading() {
		r.unpack(a)
	}
}

// MapResource is FBulkDataMapEntry, stored in IO store packages of UE 5.2+.
type MapResource struct {
	BulkData

	DuplicateOffset int64
}

const mapResourceSize = 32

func (r *MapResource) Bulk() *BulkData { return &r.BulkData }

func (r *MapResource) set(t BulkType, size int64) {
	r.Type, r.DataSize, r.Offset = t, size, 0
	r.Size64 = true
}

func (r *MapResource) serialize(a *archive.Archive, _ int64) {
	if a.IsWriting() && !a.Valid {
		r.updateFlags(a)
	}
	a.Int64(&r.Offset)
	a.Int64(&r.DuplicateOffset)
	a.Int64(&r.DataSize)
	a.Uint32(&r.Flags)
	a.ConstUint32(0, "bulk map padding")
	if a.IsReading() {
		r.unpack(a)
	}
}
