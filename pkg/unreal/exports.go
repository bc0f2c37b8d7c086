package unreal

import (
	"log/slog"

	"github.com/goopsie/uetextools/pkg/archive"
)

// Export is an object whose data the package stores in its export payload.
type Export interface {
	ObjectName() string
	ClassName() string
	SuperName() string
	TemplateName() string
	Flags() uint32
	SerialSize() uint64
	SerialOffset() uint64

	setSerial(offset, size uint64)
	serialize(a *archive.Archive)
	base() *exportBase
	slog.LogValuer
}

// exportBase holds the resolved names and the decoded payload.
type exportBase struct {
	objectName   string
	className    string
	superName    string
	templateName string

	object object
}

func (e *exportBase) ObjectName() string   { return e.objectName }
func (e *exportBase) ClassName() string    { return e.className }
func (e *exportBase) SuperName() string    { return e.superName }
func (e *exportBase) TemplateName() string { return e.templateName }
func (e *exportBase) base() *exportBase    { return e }

// IsStandalone reports whether e is a main object of its package.
func IsStandalone(e Export) bool { return e.Flags()&RFStandalone != 0 }

// IsDefaultObject reports whether e is a class default or archetype object.
func IsDefaultObject(e Export) bool {
	return e.Flags()&(RFClassDefaultObject|RFArchetypeObject) != 0
}

// isTexture reports whether e is decoded as a Texture.
func isTexture(e Export) bool {
	return IsTextureClass(e.ClassName()) && !IsDefaultObject(e)
}

func exportLogValue(e Export) slog.Value {
	return slog.GroupValue(
		slog.String("name", e.ObjectName()),
		slog.String("class", e.ClassName()),
		slog.String("super", e.SuperName()),
		slog.String("template", e.TemplateName()),
		slog.Uint64("size", e.SerialSize()),
		slog.Uint64("offset", e.SerialOffset()),
		slog.Bool("standalone", IsStandalone(e)),
		slog.Bool("public", e.Flags()&RFPublic != 0),
		slog.Bool("default", IsDefaultObject(e)),
	)
}

// LegacyExport is FObjectExport. Class, Super, Template and Outer are
// package indices: negative values are imports, positive values exports.
type LegacyExport struct {
	exportBase

	Class       int32
	Super       int32
	Template    int32
	Outer       int32
	Name        int32
	NameNumber  int32
	ObjectFlags uint32
	Size        uint64
	Offset      uint32
	Tail        []byte
}

func (e *LegacyExport) Flags() uint32        { return e.ObjectFlags }
func (e *LegacyExport) SerialSize() uint64   { return e.Size }
func (e *LegacyExport) SerialOffset() uint64 { return uint64(e.Offset) }
func (e *LegacyExport) LogValue() slog.Value { return exportLogValue(e) }

func (e *LegacyExport) setSerial(offset, size uint64) {
	e.Offset = uint32(offset)
	e.Size = size
}

func (e *LegacyExport) serialize(a *archive.Archive) {
	l := newExportLayout(a.Version)
	a.Int32(&e.Class)
	a.Int32(&e.Super)
	if l.template {
		a.Int32(&e.Template)
	}
	a.Int32(&e.Outer)
	a.Int32(&e.Name)
	a.Int32(&e.NameNumber)
	a.Uint32(&e.ObjectFlags)
	if l.size64 {
		a.Uint64(&e.Size)
	} else {
		size := uint32(e.Size)
		a.Uint32(&size)
		e.Size = uint64(size)
	}
	a.Uint32(&e.Offset)
	a.Raw(&e.Tail, l.tail)
}

func (e *LegacyExport) resolve(a *archive.Archive, names []Name, imports []Import, exports []Export) {
	ref := func(i int32, field string) string {
		switch {
		case i == 0:
			return "None"
		case i < 0 && int(-i-1) < len(imports):
			return imports[-i-1].ObjectName()
		case i > 0 && int(i-1) < len(exports):
			return nameAt(a, names, exports[i-1].(*LegacyExport).Name, field)
		}
		a.Failf(field, "package index out of range")
		return ""
	}
	e.objectName = nameAt(a, names, e.Name, "export name")
	e.className = ref(e.Class, "export class")
	e.superName = ref(e.Super, "export super")
	e.templateName = ref(e.Template, "export template")
}

// ZenExport is an export map entry of an IO store package.
type ZenExport struct {
	exportBase

	Offset           uint64
	Size             uint64
	Name             uint32
	NameNumber       uint32
	Outer            ObjectIndex
	Class            ObjectIndex
	Super            ObjectIndex
	Template         ObjectIndex
	PublicExportHash uint64
	ObjectFlags      uint32
	FilterFlags      uint8
}

const zenExportSize = 72

func (e *ZenExport) Flags() uint32        { return e.ObjectFlags }
func (e *ZenExport) SerialSize() uint64   { return e.Size }
func (e *ZenExport) SerialOffset() uint64 { return e.Offset }
func (e *ZenExport) LogValue() slog.Value { return exportLogValue(e) }

func (e *ZenExport) setSerial(offset, size uint64) {
	e.Offset = offset
	e.Size = size
}

func (e *ZenExport) serialize(a *archive.Archive) {
	a.Uint64(&e.Offset)
	a.Uint64(&e.Size)
	a.Uint32(&e.Name)
	a.Uint32(&e.NameNumber)
	for _, idx := range []*ObjectIndex{&e.Outer, &e.Class, &e.Super, &e.Template} {
		v := uint64(*idx)
		a.Uint64(&v)
		*idx = ObjectIndex(v)
	}
	a.Uint64(&e.PublicExportHash)
	a.Uint32(&e.ObjectFlags)
	a.Uint8(&e.FilterFlags)
	a.ConstBytes([]byte{0, 0, 0}, "export padding")
}

func (e *ZenExport) resolve(a *archive.Archive, names []Name, exports []Export) {
	ref := func(i ObjectIndex) string {
		switch {
		case i.IsInvalid():
			return "None"
		case i.Type() == IndexExport && i.ID() < uint64(len(exports)):
			return nameAt(a, names, int32(exports[i.ID()].(*ZenExport).Name), "export reference")
		case i.Type() == IndexScriptImport:
			if o, ok := scriptObjects[i.ID()]; ok {
				return o.Name
			}
		}
		return "???"
	}
	e.objectName = nameAt(a, names, int32(e.Name), "export name")
	e.className = ref(e.Class)
	e.superName = ref(e.Super)
	e.templateName = ref(e.Template)
}
