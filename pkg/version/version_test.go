package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		base  string
		str   string
		num   int
		alias string
	}{
		{"4.27", "4.27", "4.27", 42700, ""},
		{"5.0.2", "5.0.2", "5.0.2", 50002, ""},
		{"4", "4", "4", 40000, ""},
		{"ff7r", "4.18", "ff7r", 41800, "ff7r"},
		{"borderlands3", "4.22", "borderlands3", 42200, "borderlands3"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.base, v.Base())
			assert.Equal(t, tt.str, v.String())
			assert.Equal(t, tt.num, v.Int())
			assert.Equal(t, tt.alias, v.Alias())
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"1.2.3.4", "a.b", "", "4.-1"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}

func TestCompare(t *testing.T) {
	v := MustParse("ff7r")

	assert.True(t, v.Is("ff7r"))
	assert.True(t, v.Is("4.18"))
	assert.False(t, v.Is("4.19"))
	assert.True(t, v.IsAny("4.20", "ff7r"))

	assert.True(t, v.AtLeast("4.18"))
	assert.True(t, v.AtMost("4.18"))
	assert.True(t, v.Less("4.19"))
	assert.True(t, v.Greater("4.17"))
	assert.False(t, v.Less("4.18"))

	assert.True(t, MustParse("4.27").Less("5.0"))
	assert.True(t, MustParse("5.0.2").Greater("5.0"))
}

func TestRange(t *testing.T) {
	r := Range{Min: "4.4", Max: "4.14"}
	assert.False(t, MustParse("4.3").In(r))
	assert.True(t, MustParse("4.4").In(r))
	assert.True(t, MustParse("4.14").In(r))
	assert.False(t, MustParse("4.15").In(r))
	assert.True(t, MustParse("5.4").In(Range{Min: "5.0"}))
	assert.True(t, MustParse("4.0").In(Range{}))
}

func TestSupported(t *testing.T) {
	list := Supported()
	assert.Contains(t, list, "4.27")
	assert.Contains(t, list, "ff7r")
	for _, s := range list {
		_, err := Parse(s)
		require.NoError(t, err, s)
	}
	assert.True(t, IsSupported("5.4"))
	assert.False(t, IsSupported("3.9"))
}
