package unreal

import (
	"log/slog"

	"github.com/goopsie/uetextools/pkg/archive"
)

// Import is an object the package references from another package.
type Import interface {
	ObjectName() string
	ClassName() string
	PackageName() string

	serialize(a *archive.Archive)
	slog.LogValuer
}

type importNames struct {
	objectName  string
	className   string
	packageName string
}

func (n *importNames) ObjectName() string  { return n.objectName }
func (n *importNames) ClassName() string   { return n.className }
func (n *importNames) PackageName() string { return n.packageName }

func (n *importNames) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", n.objectName),
		slog.String("class", n.className),
		slog.String("package", n.packageName),
	)
}

// LegacyImport is FObjectImport.
type LegacyImport struct {
	importNames

	ClassPackage       int32
	ClassPackageNumber int32
	Class              int32
	ClassNumber        int32
	Outer              int32 // import index of the owning package
	Name               int32
	NameNumber         int32
	Optional           uint32 // 5.0+
}

func (imp *LegacyImport) serialize(a *archive.Archive) {
	a.Int32(&imp.ClassPackage)
	a.Int32(&imp.ClassPackageNumber)
	a.Int32(&imp.Class)
	a.Int32(&imp.ClassNumber)
	a.Int32(&imp.Outer)
	a.Int32(&imp.Name)
	a.Int32(&imp.NameNumber)
	if a.Version.AtLeast("5.0") {
		a.Uint32(&imp.Optional)
	}
}

func (imp *LegacyImport) resolve(a *archive.Archive, names []Name, imports []Import) {
	imp.objectName = nameAt(a, names, imp.Name, "import name")
	imp.className = nameAt(a, names, imp.Class, "import class")
	imp.packageName = "None"
	if imp.Outer < 0 {
		i := int(-imp.Outer - 1)
		if i >= len(imports) {
			a.Failf("import outer", "import index out of range")
			return
		}
		imp.packageName = nameAt(a, names, imports[i].(*LegacyImport).Name, "import outer")
	}
}

// ObjectIndex is FPackageObjectIndex: a 2-bit type and a 62-bit id.
type ObjectIndex uint64

// ObjectIndex types.
const (
	IndexExport ObjectIndex = iota
	IndexScriptImport
	IndexPackageImport
)

// InvalidIndex is the null object index.
const InvalidIndex = ^ObjectIndex(0)

const indexBits = 62

func (i ObjectIndex) Type() ObjectIndex { return i >> indexBits }
func (i ObjectIndex) ID() uint64        { return uint64(i) & (1<<indexBits - 1) }
func (i ObjectIndex) IsInvalid() bool   { return i == InvalidIndex }

// ScriptObject names a native object that IO store packages import by hash.
type ScriptObject struct {
	Name    string
	Class   string
	Package string
}

// scriptObjects maps ObjectPathHash ids to the texture-related engine objects.
var scriptObjects = map[uint64]ScriptObject{
	0x11acced3dc7c0922: {"/Script/Engine", "Package", "None"},
	0x1b93bca796d1fa6f: {"Texture2D", "Class", "/Script/Engine"},
	0x2bfad34ac8b1f6d0: {"Default__Texture2D", "Texture2D", "/Script/Engine"},
	0x21ff31428abdc8ae: {"TextureCube", "Class", "/Script/Engine"},
	0x3712d23e90fd5fe5: {"Default__TextureCube", "TextureCube", "/Script/Engine"},
	0x2461c85f4ba3d161: {"VolumeTexture", "Class", "/Script/Engine"},
	0x015b0407da6ae563: {"Default__VolumeTexture", "VolumeTexture", "/Script/Engine"},
	0x2b74936cc124e6fb: {"Texture2DArray", "Class", "/Script/Engine"},
	0x250cd2505b93e715: {"Default__Texture2DArray", "Texture2DArray", "/Script/Engine"},
	0x22ebbf4da0c22e82: {"TextureCubeArray", "Class", "/Script/Engine"},
	0x14dba7ea9c83a397: {"Default__TextureCubeArray", "Texture2DArray", "/Script/Engine"},
	0x2fe6ca4e48506419: {"LightMapTexture2D", "Class", "/Script/Engine"},
	0x029e125411d1912f: {"Default__LightMapTexture2D", "LightMapTexture2D", "/Script/Engine"},
	0x1e90a76c6b6d37bf: {"ShadowMapTexture2D", "Class", "/Script/Engine"},
	0x01bb4bc588d632f7: {"Default__ShadowMapTexture2D", "ShadowMapTexture2D", "/Script/Engine"},
}

// LookupScriptObject returns the engine object a script import id refers to.
func LookupScriptObject(id uint64) (ScriptObject, bool) {
	o, ok := scriptObjects[id]
	return o, ok
}

// ZenImport is an import map entry of an IO store package.
type ZenImport struct {
	importNames

	Index ObjectIndex
}

func (imp *ZenImport) serialize(a *archive.Archive) {
	v := uint64(imp.Index)
	a.Uint64(&v)
	imp.Index = ObjectIndex(v)
}

func (imp *ZenImport) resolve() {
	switch {
	case imp.Index.IsInvalid():
		imp.importNames = importNames{"Invalid", "None", "None"}
	case imp.Index.Type() == IndexScriptImport:
		if o, ok := scriptObjects[imp.Index.ID()]; ok {
			imp.importNames = importNames{o.Name, o.Class, o.Package}
			return
		}
		fallthrough
	default:
		imp.importNames = importNames{"???", "???", "???"}
	}
}
