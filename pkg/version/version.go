// Package version describes Unreal Engine versions and the studio forks
// whose cooked layouts differ from the stock engine.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Fork aliases and the engine version they are based on.
const (
	FF7R         = "ff7r"
	Borderlands3 = "borderlands3"
)

var forks = map[string]string{
	FF7R:         "4.18",
	Borderlands3: "4.22",
}

var supported = []string{
	"4.0", "4.1", "4.2", "4.3", "4.4", "4.5", "4.6", "4.7", "4.8", "4.9",
	"4.10", "4.11", "4.12", "4.13", "4.14", "4.15", "4.16", "4.17", "4.18", "4.19",
	"4.20", "4.21", "4.22", "4.23", "4.24", "4.25", "4.26", "4.27",
	"5.0", "5.1", "5.2", "5.3", "5.4",
	FF7R, Borderlands3,
}

// Info is an engine version. The zero value is not valid; use Parse.
type Info struct {
	base  string
	alias string
	num   int
}

// Parse parses "4.27", "5.0.2" or a fork alias such as "ff7r".
func Parse(s string) (Info, error) {
	base, alias := s, ""
	if b, ok := forks[s]; ok {
		base, alias = b, s
	}
	n, err := toInt(base)
	if err != nil {
		return Info{}, err
	}
	return Info{base: base, alias: alias, num: n}, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Info {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Supported returns every version the codecs know how to handle.
func Supported() []string {
	out := make([]string, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether s names a supported version.
func IsSupported(s string) bool {
	for _, v := range supported {
		if v == s {
			return true
		}
	}
	return false
}

// toInt packs up to three dot separated parts as major*10000+minor*100+patch.
func toInt(s string) (int, error) {
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return 0, fmt.Errorf("unsupported version info: %q", s)
	}
	n := 0
	scale := 10000
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("unsupported version info: %q", s)
		}
		n += v * scale
		scale /= 100
	}
	return n, nil
}

func mustInt(s string) int {
	n, err := toInt(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the fork alias when there is one, otherwise the base version.
func (v Info) String() string {
	if v.alias != "" {
		return v.alias
	}
	return v.base
}

// Base returns the numeric version the info compares as.
func (v Info) Base() string { return v.base }

// Alias returns the fork name or "".
func (v Info) Alias() string { return v.alias }

// Int returns the packed numeric form, e.g. 42700 for 4.27.
func (v Info) Int() int { return v.num }

// IsValid reports whether v came from Parse.
func (v Info) IsValid() bool { return v.base != "" }

// Is reports whether v equals s, matching either the base version or the alias.
func (v Info) Is(s string) bool {
	return s == v.base || (v.alias != "" && s == v.alias)
}

// IsAny is Is over a list.
func (v Info) IsAny(list ...string) bool {
	for _, s := range list {
		if v.Is(s) {
			return true
		}
	}
	return false
}

// Less reports v < s.
func (v Info) Less(s string) bool { return v.num < mustInt(s) }

// AtMost reports v <= s.
func (v Info) AtMost(s string) bool { return v.num <= mustInt(s) }

// Greater reports v > s.
func (v Info) Greater(s string) bool { return v.num > mustInt(s) }

// AtLeast reports v >= s.
func (v Info) AtLeast(s string) bool { return v.num >= mustInt(s) }

// Range is an inclusive version interval. Empty bounds are open.
type Range struct {
	Min string
	Max string
}

// In reports whether v falls inside r.
func (v Info) In(r Range) bool {
	if r.Min != "" && v.Less(r.Min) {
		return false
	}
	if r.Max != "" && v.Greater(r.Max) {
		return false
	}
	return true
}
