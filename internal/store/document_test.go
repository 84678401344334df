package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime_SortsChronologically(t *testing.T) {
	a := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := a.Add(500 * time.Millisecond)
	c := a.Add(10 * time.Second)

	fa, fb, fc := FormatTime(a), FormatTime(b), FormatTime(c)
	assert.Less(t, fa, fb)
	assert.Less(t, fb, fc)
	assert.Len(t, fa, len(fc))

	parsed, err := ParseTime(fb)
	require.NoError(t, err)
	assert.True(t, b.Equal(parsed))

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}

func TestEncodeDecode_PreservesLargeIntegers(t *testing.T) {
	data, err := encodeDocument(Document{"n": int64(1<<62 + 1), "f": 1.5})
	require.NoError(t, err)

	doc, err := decodeDocument(data)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<62+1), doc.Int("n"))
	assert.Equal(t, json.Number("1.5"), doc["f"])
}

func TestDocument_Accessors(t *testing.T) {
	doc := Document{"s": "x", "b": true, "n": json.Number("4"), "bad": "not-a-time"}

	assert.Equal(t, "x", doc.String("s"))
	assert.Equal(t, "", doc.String("missing"))
	assert.True(t, doc.Bool("b"))
	assert.Equal(t, int64(4), doc.Int("n"))
	assert.Equal(t, int64(0), doc.Int("s"))
	assert.True(t, doc.Time("bad").IsZero())
	assert.Nil(t, doc.Strings("missing"))

	clone := doc.Clone()
	clone["s"] = "y"
	assert.Equal(t, "x", doc.String("s"))
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"null before bool", nil, false, -1},
		{"bool before number", true, 0, -1},
		{"number before string", int64(99), "a", -1},
		{"int vs json number", int64(3), json.Number("3"), 0},
		{"int vs float", 2, 2.5, -1},
		{"large ints exact", json.Number("9007199254740993"), json.Number("9007199254740992"), 1},
		{"strings", "abc", "abd", -1},
		{"arrays", []any{"a", "b"}, []string{"a"}, 1},
		{"false before true", false, true, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareValues(tt.a, tt.b))
		})
	}
}

func TestKeys(t *testing.T) {
	key := docKey("posts", "a:b")
	prefix := collectionPrefix("posts")
	assert.Equal(t, "doc:posts:a:b", string(key))
	assert.Equal(t, "a:b", idFromKey(key, prefix))
}
