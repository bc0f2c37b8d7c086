package unreal

// Package flags.
const (
	PkgUnversionedProperties uint32 = 0x2000
	PkgFilterEditorOnly      uint32 = 0x80000000
)

// Object flags.
const (
	RFPublic             uint32 = 0x1
	RFStandalone         uint32 = 0x2
	RFTransactional      uint32 = 0x8
	RFClassDefaultObject uint32 = 0x10
	RFArchetypeObject    uint32 = 0x20
)

// Bulk data flags.
const (
	BulkPayloadAtEndOfFile    uint32 = 1 << 0
	BulkSingleUse             uint32 = 1 << 3
	BulkUnused                uint32 = 1 << 5
	BulkForceInlinePayload    uint32 = 1 << 6
	BulkPayloadInSeparateFile uint32 = 1 << 8
	BulkForceNotInlinePayload uint32 = 1 << 10
	BulkOptionalPayload       uint32 = 1 << 11
	BulkSize64Bit             uint32 = 1 << 13
	BulkNoOffsetFixUp         uint32 = 1 << 16
)

// packageTag opens every legacy .uasset and closes every .uexp.
var packageTag = []byte{0xC1, 0x83, 0x2A, 0x9E}

// swappedTag is packageTag as a big-endian platform writes it.
var swappedTag = []byte{0x9E, 0x2A, 0x83, 0xC1}

// zenNameHashVersion precedes the name hashes of IO store packages.
const zenNameHashVersion uint64 = 0xC1640000

var textureClasses = map[string]bool{
	"Texture2D":          true,
	"TextureCube":        true,
	"LightMapTexture2D":  true,
	"ShadowMapTexture2D": true,
	"Texture2DArray":     true,
	"TextureCubeArray":   true,
	"VolumeTexture":      true,
}

// IsTextureClass reports whether objects of class name are decoded as textures.
func IsTextureClass(name string) bool { return textureClasses[name] }
