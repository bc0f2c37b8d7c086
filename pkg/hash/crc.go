// Package hash implements the string hashes the engine stores in cooked packages.
package hash

import (
	"encoding/binary"
	"hash/crc32"
	"strings"
	"unicode"
	"unicode/utf16"
)

// crcTableMSB is the MSB-first table for polynomial 0x04C11DB7 used by the
// engine's deprecated string CRCs.
var crcTableMSB = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if c&0x80000000 != 0 {
				c = c<<1 ^ 0x04C11DB7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// StrCrc32 is the engine's case-sensitive string CRC: IEEE CRC-32 over each
// UTF-16 unit widened to four little-endian bytes.
func StrCrc32(s string) uint32 {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*4)
	for i, u := range units {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(u))
	}
	return crc32.ChecksumIEEE(buf)
}

// Strihash is the engine's deprecated case-insensitive hash. ASCII strings
// contribute one byte per character, wide strings two bytes per unit.
func Strihash(s string) uint32 {
	var h uint32
	step := func(b byte) {
		h = (h >> 8 & 0x00FFFFFF) ^ crcTableMSB[byte(h)^b]
	}
	if isASCII(s) {
		for i := 0; i < len(s); i++ {
			c := s[i]
			if 'a' <= c && c <= 'z' {
				c -= 'a' - 'A'
			}
			step(c)
		}
		return h
	}
	for _, u := range utf16.Encode([]rune(s)) {
		u = upperUnit(u)
		step(byte(u))
		step(byte(u >> 8))
	}
	return h
}

func upperUnit(u uint16) uint16 {
	if utf16.IsSurrogate(rune(u)) {
		return u
	}
	r := unicode.ToUpper(rune(u))
	if r > 0xFFFF {
		return u
	}
	return uint16(r)
}

// NameHash returns the four hash bytes stored after each legacy name entry:
// the low halves of Strihash and StrCrc32.
func NameHash(s string) [4]byte {
	v := Strihash(s)&0xFFFF | StrCrc32(s)&0xFFFF<<16
	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], v)
	return out
}

// PackageCRC is the package source hash: StrCrc_DEPRECATED of the upper-cased
// package name.
func PackageCRC(name string) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, u := range utf16.Encode([]rune(strings.ToUpper(name))) {
		for _, b := range [2]byte{byte(u), byte(u >> 8)} {
			crc = crc<<8 ^ crcTableMSB[byte(crc>>24)^b]
		}
	}
	return ^crc
}

// ModPackageSource is the package source value marking a non-official asset.
var ModPackageSource = binary.LittleEndian.Uint32([]byte("MOD "))
