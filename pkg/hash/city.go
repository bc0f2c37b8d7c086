package hash

import (
	"strings"
	"unicode/utf16"

	"github.com/tenfyzhong/cityhash"
)

// CityHash64 is CityHash v1.0.2, the variant the IO store uses.
func CityHash64(b []byte) uint64 {
	return cityhash.CityHash64(b)
}

func utf16le(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		b[i*2] = byte(u)
		b[i*2+1] = byte(u >> 8)
	}
	return b
}

// ZenNameHash hashes a name-map entry: the lower-cased name as 8-bit text
// when it is ASCII, otherwise as UTF-16LE.
func ZenNameHash(s string) uint64 {
	s = strings.ToLower(s)
	if isASCII(s) {
		return CityHash64([]byte(s))
	}
	return CityHash64(utf16le(s))
}

// objectIndexMask clears the two type bits of a package object index.
const objectIndexMask = ^(uint64(3) << 62)

// ObjectPathHash derives the import id of a script object from its path,
// e.g. "/Script/Engine.Texture2D".
func ObjectPathHash(path string) uint64 {
	p := strings.NewReplacer(".", "/", ":", "/").Replace(path)
	return CityHash64(utf16le(strings.ToLower(p))) & objectIndexMask
}
