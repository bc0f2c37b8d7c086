// Package archive provides the cursor the package codecs serialize through,
// and the ZSTD container used for compressed texture exports.
//
// An Archive runs in one of two modes. Every codec method takes a pointer:
// reading fills the target, writing emits it. A struct codec written once
// against an Archive therefore both decodes and encodes its structure, and
// write mode reproduces read mode's cursor positions for unmodified data.
//
// Errors are sticky. The first failure is recorded and every later call
// becomes a no-op, so codecs check Err once after a whole structure.
package archive

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/goopsie/uetextools/pkg/version"
)

// Mode selects decoding or encoding.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// Context is the state shared by every codec working on one package.
type Context struct {
	Version version.Info
	Ucas    bool // IO store (zen) layout
	Valid   bool // reproduce the input exactly; skip derived-field updates
	Verbose bool
}

// Archive is a read/write cursor over an in-memory stream.
type Archive struct {
	Context

	name  string
	mode  Mode
	order binary.ByteOrder
	buf   []byte
	pos   int
	err   error
}

// NewReader returns an archive decoding data.
func NewReader(name string, data []byte, ctx Context) *Archive {
	return &Archive{Context: ctx, name: name, mode: ModeRead, order: binary.LittleEndian, buf: data}
}

// NewWriter returns an empty archive in write mode.
func NewWriter(name string, ctx Context) *Archive {
	return &Archive{Context: ctx, name: name, mode: ModeWrite, order: binary.LittleEndian}
}

// SetByteOrder changes the integer byte order. Archives start little-endian.
func (a *Archive) SetByteOrder(order binary.ByteOrder) { a.order = order }

// Name returns the stream name used in error messages.
func (a *Archive) Name() string { return a.name }

func (a *Archive) IsReading() bool { return a.mode == ModeRead }
func (a *Archive) IsWriting() bool { return a.mode == ModeWrite }

// Err returns the first error recorded on the archive.
func (a *Archive) Err() error { return a.err }

// Fail records err unless an earlier error is already pending.
func (a *Archive) Fail(err error) {
	if a.err == nil && err != nil {
		a.err = err
	}
}

// Failf records a FormatError at the current position.
func (a *Archive) Failf(field, msg string) {
	a.Fail(&FormatError{Name: a.name, Offset: a.pos, Field: field, Msg: msg})
}

// Mismatch records a FormatError for a value read at pos.
func (a *Archive) Mismatch(pos int, field string, expected, actual any) {
	a.Fail(&FormatError{Name: a.name, Offset: pos, Field: field, Expected: expected, Actual: actual})
}

// Tell returns the cursor position.
func (a *Archive) Tell() int { return a.pos }

// Size returns the stream length.
func (a *Archive) Size() int { return len(a.buf) }

// Remaining returns the number of bytes after the cursor.
func (a *Archive) Remaining() int { return len(a.buf) - a.pos }

// Bytes returns the underlying stream. In write mode this is the output.
func (a *Archive) Bytes() []byte { return a.buf }

// Seek moves the cursor. Writers grow the stream with zeros when needed.
func (a *Archive) Seek(pos int) {
	if a.err != nil {
		return
	}
	if pos < 0 {
		a.Fail(&BufferBoundsError{Name: a.name, Offset: a.pos, Size: pos - a.pos, Available: a.pos})
		return
	}
	if pos > len(a.buf) {
		if a.IsReading() {
			a.Fail(&BufferBoundsError{Name: a.name, Offset: a.pos, Size: pos - a.pos, Available: a.Remaining()})
			return
		}
		a.buf = append(a.buf, make([]byte, pos-len(a.buf))...)
	}
	a.pos = pos
}

// Skip advances the cursor by n bytes. Writers emit zeros.
func (a *Archive) Skip(n int) {
	if a.IsWriting() {
		a.put(n)
		return
	}
	a.take(n)
}

// take returns the next n bytes of a reader, or nil after recording a bounds error.
func (a *Archive) take(n int) []byte {
	if a.err != nil {
		return nil
	}
	if n < 0 || n > len(a.buf)-a.pos {
		a.Fail(&BufferBoundsError{Name: a.name, Offset: a.pos, Size: n, Available: a.Remaining()})
		return nil
	}
	b := a.buf[a.pos : a.pos+n]
	a.pos += n
	return b
}

// put returns n writable bytes at the cursor, growing the stream.
func (a *Archive) put(n int) []byte {
	end := a.pos + n
	if end > len(a.buf) {
		a.buf = append(a.buf, make([]byte, end-len(a.buf))...)
	}
	b := a.buf[a.pos:end]
	a.pos = end
	return b
}

func (a *Archive) Uint8(v *uint8) {
	if a.err != nil {
		return
	}
	if a.IsReading() {
		if b := a.take(1); b != nil {
			*v = b[0]
		}
		return
	}
	a.put(1)[0] = *v
}

func (a *Archive) Uint16(v *uint16) {
	if a.err != nil {
		return
	}
	if a.IsReading() {
		if b := a.take(2); b != nil {
			*v = a.order.Uint16(b)
		}
		return
	}
	a.order.PutUint16(a.put(2), *v)
}

func (a *Archive) Uint32(v *uint32) {
	if a.err != nil {
		return
	}
	if a.IsReading() {
		if b := a.take(4); b != nil {
			*v = a.order.Uint32(b)
		}
		return
	}
	a.order.PutUint32(a.put(4), *v)
}

func (a *Archive) Uint64(v *uint64) {
	if a.err != nil {
		return
	}
	if a.IsReading() {
		if b := a.take(8); b != nil {
			*v = a.order.Uint64(b)
		}
		return
	}
	a.order.PutUint64(a.put(8), *v)
}

func (a *Archive) Int32(v *int32) {
	u := uint32(*v)
	a.Uint32(&u)
	*v = int32(u)
}

func (a *Archive) Int64(v *int64) {
	u := uint64(*v)
	a.Uint64(&u)
	*v = int64(u)
}

func (a *Archive) Bool32(v *bool) {
	var u uint32
	if *v {
		u = 1
	}
	pos := a.pos
	a.Uint32(&u)
	if a.IsReading() {
		if u > 1 {
			a.Mismatch(pos, "bool", "0 or 1", u)
		}
		*v = u == 1
	}
}

// Raw reads n bytes into v, or writes all of v.
func (a *Archive) Raw(v *[]byte, n int) {
	if a.err != nil {
		return
	}
	if a.IsReading() {
		if b := a.take(n); b != nil {
			*v = append([]byte(nil), b...)
		}
		return
	}
	copy(a.put(len(*v)), *v)
}

// ConstUint32 serializes a field that must hold want.
func (a *Archive) ConstUint32(want uint32, field string) {
	v, pos := want, a.pos
	a.Uint32(&v)
	if a.IsReading() && a.err == nil && v != want {
		a.Mismatch(pos, field, want, v)
	}
}

func (a *Archive) ConstInt32(want int32, field string) {
	v, pos := want, a.pos
	a.Int32(&v)
	if a.IsReading() && a.err == nil && v != want {
		a.Mismatch(pos, field, want, v)
	}
}

func (a *Archive) ConstUint64(want uint64, field string) {
	v, pos := want, a.pos
	a.Uint64(&v)
	if a.IsReading() && a.err == nil && v != want {
		a.Mismatch(pos, field, want, v)
	}
}

func (a *Archive) ConstInt64(want int64, field string) {
	v, pos := want, a.pos
	a.Int64(&v)
	if a.IsReading() && a.err == nil && v != want {
		a.Mismatch(pos, field, want, v)
	}
}

// ConstBytes serializes a fixed byte sequence such as a magic tag.
func (a *Archive) ConstBytes(want []byte, field string) {
	if a.err != nil {
		return
	}
	if a.IsWriting() {
		copy(a.put(len(want)), want)
		return
	}
	pos := a.pos
	b := a.take(len(want))
	if b != nil && string(b) != string(want) {
		a.Mismatch(pos, field, want, append([]byte(nil), b...))
	}
}

// Align pads to a multiple of n. Readers require the padding to be zero.
func (a *Archive) Align(n int) {
	pad := (n - a.pos%n) % n
	if a.IsWriting() {
		a.put(pad)
		return
	}
	pos := a.pos
	for _, c := range a.take(pad) {
		if c != 0 {
			a.Mismatch(pos, "padding", 0, c)
			return
		}
	}
}

// Region positions the cursor at the start of a table whose offset the
// header stores in off. Readers seek there and keep any skipped bytes in gap.
// Writers emit gap and record the table position in off.
func (a *Archive) Region(off *int32, gap *[]byte, field string) {
	if a.err != nil {
		return
	}
	if a.IsWriting() {
		copy(a.put(len(*gap)), *gap)
		*off = int32(a.pos)
		return
	}
	target := int(*off)
	if target < a.pos {
		a.Fail(&FormatError{Name: a.name, Offset: a.pos, Field: field,
			Msg: "table overlaps the preceding data"})
		return
	}
	if b := a.take(target - a.pos); b != nil {
		*gap = append([]byte(nil), b...)
	}
}

// PatchUint32 overwrites four bytes at pos without moving the cursor.
func (a *Archive) PatchUint32(pos int, v uint32) {
	if a.err != nil {
		return
	}
	if pos < 0 || pos+4 > len(a.buf) {
		a.Fail(&BufferBoundsError{Name: a.name, Offset: pos, Size: 4, Available: len(a.buf) - pos})
		return
	}
	a.order.PutUint32(a.buf[pos:], v)
}

// PatchInt64 overwrites eight bytes at pos without moving the cursor.
func (a *Archive) PatchInt64(pos int, v int64) {
	if a.err != nil {
		return
	}
	if pos < 0 || pos+8 > len(a.buf) {
		a.Fail(&BufferBoundsError{Name: a.name, Offset: pos, Size: 8, Available: len(a.buf) - pos})
		return
	}
	a.order.PutUint64(a.buf[pos:], uint64(v))
}

// String serializes an FString. Non-ASCII text is written as UTF-16.
func (a *Archive) String(v *string) {
	wide := a.IsWriting() && !isASCII(*v)
	a.WideString(v, &wide)
}

// WideString serializes an FString and reports or honours its storage width.
//
// The int32 length counts the terminator: negative lengths are UTF-16 code
// units, positive lengths are 8-bit characters, zero is the empty string.
func (a *Archive) WideString(v *string, wide *bool) {
	if a.err != nil {
		return
	}
	if a.IsWriting() {
		if *v == "" {
			var n int32
			a.Int32(&n)
			return
		}
		if *wide || !isLatin1(*v) {
			units := utf16.Encode([]rune(*v))
			n := -int32(len(units) + 1)
			a.Int32(&n)
			b := a.put(len(units)*2 + 2)
			for i, u := range units {
				a.order.PutUint16(b[i*2:], u)
			}
			return
		}
		n := int32(len([]rune(*v)) + 1)
		a.Int32(&n)
		b := a.put(int(n))
		for i, r := range []rune(*v) {
			b[i] = byte(r)
		}
		return
	}

	var n int32
	pos := a.pos
	a.Int32(&n)
	switch {
	case a.err != nil:
	case n == 0:
		*v, *wide = "", false
	case n < 0:
		units := -int64(n)
		b := a.take(int(units * 2))
		if b == nil {
			return
		}
		if b[len(b)-1] != 0 || b[len(b)-2] != 0 {
			a.Mismatch(pos, "string terminator", 0, b[len(b)-2:])
			return
		}
		*v, *wide = decodeUTF16(b[:len(b)-2], a.order), true
	default:
		b := a.take(int(n))
		if b == nil {
			return
		}
		if b[len(b)-1] != 0 {
			a.Mismatch(pos, "string terminator", 0, b[len(b)-1])
			return
		}
		*v, *wide = decodeLatin1(b[:len(b)-1]), false
	}
}

// FixedString serializes n characters without a length prefix or terminator.
// Writers emit v in the given width and ignore n.
func (a *Archive) FixedString(v *string, n int, wide bool) {
	if a.err != nil {
		return
	}
	if a.IsWriting() {
		if wide {
			units := utf16.Encode([]rune(*v))
			b := a.put(len(units) * 2)
			for i, u := range units {
				a.order.PutUint16(b[i*2:], u)
			}
			return
		}
		rs := []rune(*v)
		b := a.put(len(rs))
		for i, r := range rs {
			b[i] = byte(r)
		}
		return
	}
	if wide {
		if b := a.take(n * 2); b != nil {
			*v = decodeUTF16(b, a.order)
		}
		return
	}
	if b := a.take(n); b != nil {
		*v = decodeLatin1(b)
	}
}

// Array serializes a sequence of n structs with fn. Writers ignore n and
// emit every element of items.
func Array[T any](a *Archive, items *[]T, n int, fn func(*Archive, *T)) {
	if a.err != nil {
		return
	}
	if a.IsWriting() {
		for i := range *items {
			fn(a, &(*items)[i])
		}
		return
	}
	if n < 0 || n > a.Remaining() {
		a.Failf("array length", "implausible element count")
		return
	}
	out := make([]T, 0, n)
	for i := 0; i < n && a.err == nil; i++ {
		var item T
		fn(a, &item)
		out = append(out, item)
	}
	*items = out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isLatin1(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}

// IsASCII reports whether s has only 7-bit characters.
func IsASCII(s string) bool { return isASCII(s) }

func decodeLatin1(b []byte) string {
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = rune(c)
	}
	return string(rs)
}

func decodeUTF16(b []byte, order binary.ByteOrder) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = order.Uint16(b[i*2:])
	}
	return string(utf16.Decode(units))
}
