package unreal

import "github.com/goopsie/uetextools/pkg/version"

// rule attaches a value to an inclusive version range. Tables of rules are
// ordered and the first matching entry wins.
type rule[T any] struct {
	r version.Range
	v T
}

func pick[T any](v version.Info, rules []rule[T], def T) T {
	for _, r := range rules {
		if v.In(r.r) {
			return r.v
		}
	}
	return def
}

func upTo(max string) version.Range { return version.Range{Max: max} }

func span(min, max string) version.Range { return version.Range{Min: min, Max: max} }

// fileVersionRules is the negative legacy file version written after the tag.
var fileVersionRules = []rule[int32]{
	{upTo("4.6"), -3},
	{upTo("4.9"), -5},
	{upTo("4.13"), -6},
	{upTo("4.27"), -7},
}

// exportTailRules is the size of the FObjectExport fields after the serial
// offset: GUIDs, package flags and the dependency counts.
var exportTailRules = []rule[int]{
	{upTo("4.2"), 32},
	{upTo("4.10"), 36},
	{upTo("4.13"), 40},
	{upTo("4.15"), 60},
	{upTo("4.27"), 64},
	{upTo("5.0"), 68},
}

type summaryPlan struct {
	fileVersion        int32
	versionInfoSize    int
	softObjectPaths    bool
	gatherableText     bool
	stringAssetRefs    bool
	softPackageRefs    bool
	engineVersionSize  int
	textureAllocations bool
	preload            bool
	payloadTOC         bool
	dataResources      bool
}

func newSummaryPlan(v version.Info) summaryPlan {
	p := summaryPlan{
		fileVersion:        pick(v, fileVersionRules, -8),
		versionInfoSize:    16,
		softObjectPaths:    v.AtLeast("5.1"),
		gatherableText:     v.AtLeast("4.9"),
		stringAssetRefs:    v.In(span("4.4", "4.14")),
		softPackageRefs:    v.AtLeast("4.15"),
		engineVersionSize:  14,
		textureAllocations: v.AtMost("4.13"),
		preload:            v.Greater("4.13"),
		payloadTOC:         v.Greater("4.27"),
		dataResources:      v.Greater("5.1"),
	}
	if v.AtLeast("5.0") {
		p.versionInfoSize += 4
	}
	if v.AtLeast("4.8") {
		p.engineVersionSize *= 2
	}
	return p
}

type exportLayout struct {
	template bool
	size64   bool
	tail     int
}

func newExportLayout(v version.Info) exportLayout {
	return exportLayout{
		template: v.AtLeast("4.14"),
		size64:   v.AtLeast("4.16"),
		tail:     pick(v, exportTailRules, 56),
	}
}

// size is the serialized size of one export entry.
func (l exportLayout) size() int {
	n := 32 + l.tail
	if l.template {
		n += 4
	}
	if l.size64 {
		n += 4
	}
	return n
}

type mipPlan struct {
	cooked     bool
	table      bool
	shortSizes bool
	depth      bool
}

func newMipPlan(v version.Info) mipPlan {
	return mipPlan{
		cooked:     v.AtMost("4.27"),
		table:      v.AtLeast("5.2"),
		shortSizes: v.Is(version.Borderlands3),
		depth:      v.AtLeast("4.20"),
	}
}

type texturePlan struct {
	serializeMipData bool // 2D textures only
	reserved         bool
	placeholder      bool
	packedFlags      bool
	tailMip          bool
	virtual          bool
	relativeSkip     bool
	fixOffsets       bool
}

func newTexturePlan(v version.Info) texturePlan {
	ff7r := v.Is(version.FF7R)
	return texturePlan{
		serializeMipData: v.AtLeast("5.3"),
		reserved:         v.AtLeast("4.20"),
		placeholder:      v.AtLeast("5.0"),
		packedFlags:      ff7r || v.AtLeast("4.24"),
		tailMip:          ff7r,
		virtual:          v.AtLeast("4.23"),
		relativeSkip:     v.AtLeast("5.0"),
		fixOffsets:       v.Greater("4.15"),
	}
}

type resourceShape int

const (
	shapeLegacy resourceShape = iota
	shapeTable
	shapeMap
)

func newResourceShape(v version.Info, ucas bool) resourceShape {
	switch {
	case v.Less("5.2"):
		return shapeLegacy
	case ucas:
		return shapeMap
	default:
		return shapeTable
	}
}

type bulkPlan struct {
	noFixUpFlag     bool // NoOffsetFixUp is meaningful
	dispatcherError bool // NoOffsetFixUp cannot appear
	forceNotInline  bool
	separateFile    bool
	singleUse       bool
}

func newBulkPlan(v version.Info) bulkPlan {
	ff7r := v.Is(version.FF7R)
	return bulkPlan{
		noFixUpFlag:     ff7r || v.AtLeast("4.26"),
		dispatcherError: !ff7r && v.AtMost("4.23"),
		forceNotInline:  v.AtLeast("4.14"),
		separateFile:    v.AtLeast("4.16"),
		singleUse:       !ff7r,
	}
}

// splitUexp reports whether export data lives in a separate .uexp file.
func splitUexp(v version.Info) bool { return v.AtLeast("4.16") }
