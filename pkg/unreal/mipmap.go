package unreal

import (
	"log/slog"

	"github.com/goopsie/uetextools/pkg/archive"
)

// Mipmap is FTexture2DMipMap. Data holds the level for every slice, slice by slice.
type Mipmap struct {
	Width  uint32
	Height uint32
	Depth  uint32
	Data   []byte

	Resource DataResource
	index    int32 // data resource table index, UE 5.2+
}

// resourceTable is the package-level list of data resources used from UE 5.2.
type resourceTable struct {
	shape resourceShape
	items []DataResource
	owned []bool // referenced by a decoded texture
}

func (t *resourceTable) add(r DataResource) int32 {
	t.items = append(t.items, r)
	t.owned = append(t.owned, true)
	return int32(len(t.items) - 1)
}

// mipContext carries the package state a mip needs while it is serialized.
type mipContext struct {
	inlineBase int64
	resources  *resourceTable
}

func newMipmap(shape resourceShape) *Mipmap {
	return &Mipmap{Depth: 1, Resource: newResource(shape)}
}

// Type returns where the mip payload is stored.
func (m *Mipmap) Type() BulkType { return m.Resource.Bulk().Type }

// set replaces the payload and its placement.
func (m *Mipmap) set(data []byte, w, h, depth uint32, t BulkType) {
	m.Data = data
	m.Width, m.Height, m.Depth = w, h, depth
	m.Resource.set(t, int64(len(data)))
}

// Pixels returns the pixel count of one slice.
func (m *Mipmap) Pixels() uint64 { return uint64(m.Width) * uint64(m.Height) }

func (m *Mipmap) serialize(a *archive.Archive, mc *mipContext) {
	p := newMipPlan(a.Version)
	if p.cooked {
		a.ConstUint32(1, "cooked mip")
	}
	if a.IsWriting() && m.Type() != BulkNone {
		m.Resource.Bulk().DataSize = int64(len(m.Data))
	}

	if p.table {
		a.Int32(&m.index)
		if a.IsReading() && a.Err() == nil {
			if m.index < 0 || int(m.index) >= len(mc.resources.items) {
				a.Failf("data resource index", "index out of range")
				return
			}
			m.Resource = mc.resources.items[m.index]
			mc.resources.owned[m.index] = true
		}
	} else {
		if a.IsReading() {
			m.Resource = &LegacyResource{}
		}
		m.Resource.serialize(a, mc.inlineBase)
	}
	if a.Err() != nil {
		return
	}

	b := m.Resource.Bulk()
	if b.Type == BulkUexp {
		if a.IsWriting() && p.table && !a.Valid {
			b.Offset = mc.inlineBase + int64(a.Tell())
		}
		a.Raw(&m.Data, int(b.DataSize))
	}

	if p.shortSizes {
		w, h, d := uint16(m.Width), uint16(m.Height), uint16(m.Depth)
		a.Uint16(&w)
		a.Uint16(&h)
		if p.depth {
			a.Uint16(&d)
		}
		m.Width, m.Height, m.Depth = uint32(w), uint32(h), uint32(d)
	} else {
		a.Uint32(&m.Width)
		a.Uint32(&m.Height)
		if p.depth {
			a.Uint32(&m.Depth)
		}
	}
	if !p.depth {
		m.Depth = 1
	}
}

// serializeBulk moves a .ubulk or .uptnl payload. Payloads are stored back
// to back in mip order, so streams are visited sequentially.
func (m *Mipmap) serializeBulk(ubulk, uptnl *archive.Archive) {
	var a *archive.Archive
	switch m.Type() {
	case BulkUbulk:
		a = ubulk
	case BulkUptnl:
		a = uptnl
	default:
		return
	}
	a.Raw(&m.Data, int(m.Resource.Bulk().DataSize))
}

func (m *Mipmap) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("width", uint64(m.Width)),
		slog.Uint64("height", uint64(m.Height)),
		slog.Uint64("depth", uint64(m.Depth)),
		slog.Any("bulk", m.Resource.Bulk()),
	)
}
