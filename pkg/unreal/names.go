package unreal

import (
	"log/slog"
	"unicode/utf16"

	"github.com/goopsie/uetextools/pkg/archive"
	"github.com/goopsie/uetextools/pkg/hash"
)

// Name is one entry of a package's name map. Legacy packages store a
// 4-byte hash after the string; IO store packages keep a CityHash per name.
type Name struct {
	Value   string
	Hash    [4]byte
	ZenHash uint64

	wide bool
}

// NewName returns a name with both hash forms computed.
func NewName(s string) Name {
	var n Name
	n.Set(s)
	return n
}

// Set replaces the string and recomputes its hashes.
func (n *Name) Set(s string) {
	n.Value = s
	n.Hash = hash.NameHash(s)
	n.ZenHash = hash.ZenNameHash(s)
	n.wide = !archive.IsASCII(s)
}

func (n Name) String() string { return n.Value }

func (n Name) LogValue() slog.Value { return slog.StringValue(n.Value) }

// byteSize is the stored string length in an IO store name batch.
func (n *Name) byteSize() int {
	if n.wide {
		return len(utf16.Encode([]rune(n.Value))) * 2
	}
	return len(n.Value)
}

func (n *Name) serializeLegacy(a *archive.Archive) {
	a.WideString(&n.Value, &n.wide)
	if a.Version.Less("4.12") {
		return
	}
	h := n.Hash[:]
	a.Raw(&h, 4)
	if a.IsReading() && a.Err() == nil {
		copy(n.Hash[:], h)
	}
}

func (n *Name) serializeZenHash(a *archive.Archive) {
	a.Uint64(&n.ZenHash)
}

// serializeZenHead handles the 2-byte big-endian length header. The top bit
// marks UTF-16 storage.
func (n *Name) serializeZenHead(a *archive.Archive, length *int) {
	var hi, lo uint8
	if a.IsWriting() {
		l := len(n.Value)
		if n.wide {
			l = len(utf16.Encode([]rune(n.Value)))
		}
		hi, lo = uint8(l>>8), uint8(l)
		if n.wide {
			hi |= 0x80
		}
	}
	a.Uint8(&hi)
	a.Uint8(&lo)
	if a.IsReading() {
		n.wide = hi&0x80 != 0
		*length = int(hi&0x7F)<<8 | int(lo)
	}
}

func (n *Name) serializeZenString(a *archive.Archive, length int) {
	a.FixedString(&n.Value, length, n.wide)
}

// nameAt resolves a name map index.
func nameAt(a *archive.Archive, names []Name, id int32, field string) string {
	if id < 0 || int(id) >= len(names) {
		a.Failf(field, "name index out of range")
		return ""
	}
	return names[id].Value
}
