package jsontree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Kinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		kind  Kind
	}{
		{name: "null", input: `null`, kind: KindNull},
		{name: "true", input: `true`, kind: KindBool},
		{name: "false", input: `false`, kind: KindBool},
		{name: "integer", input: `42`, kind: KindNumber},
		{name: "float", input: `-1.5e3`, kind: KindNumber},
		{name: "string", input: `"hello"`, kind: KindString},
		{name: "array", input: `[1,2]`, kind: KindArray},
		{name: "object", input: `{"a":1}`, kind: KindObject},
		{name: "surrounding whitespace", input: "  {\"a\": 1}\n", kind: KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, err := ParseString(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, n.Kind())
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	inputs := []string{
		``,
		`{`,
		`{"a":}`,
		`[1,2`,
		`{"a":1}}`,
		`not json`,
		`{"a":1} {"b":2}`,
	}

	for _, in := range inputs {
		_, err := Parse([]byte(in))
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrMalformedJSON), "input %q", in)
	}
}

func TestParse_PreservesMemberOrder(t *testing.T) {
	t.Parallel()

	n, err := ParseString(`{"z":1,"a":2,"m":{"y":true,"b":null}}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m"}, n.Keys())
	m, ok := n.Get("m")
	require.True(t, ok)
	assert.Equal(t, []string{"y", "b"}, m.Keys())
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		`{"value":[{"tags":[{"value":"automotive"},{"value":"finance"}]}]}`,
		`{"z":1,"a":[true,false,null],"n":12345678901234567890,"f":0.1}`,
		`[]`,
		`{}`,
		`"esc\"aped\\text\n"`,
		`{"unicode":"Grüße","emoji":"😀"}`,
	}

	for _, in := range inputs {
		n, err := ParseString(in)
		require.NoError(t, err)
		assert.Equal(t, in, n.String())
	}
}

func TestParse_StringsAreUnescaped(t *testing.T) {
	t.Parallel()

	n, err := ParseString(`{"k\"ey":"aA\tb"}`)
	require.NoError(t, err)

	v, ok := n.Get(`k"ey`)
	require.True(t, ok)
	assert.Equal(t, "aA\tb", v.Str())
}

func TestParse_DuplicateKeysLastWins(t *testing.T) {
	t.Parallel()

	n, err := ParseString(`{"a":1,"b":true,"a":2}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, n.Keys())
	v, ok := n.Get("a")
	require.True(t, ok)
	assert.Equal(t, "2", v.Literal())
	assert.Equal(t, `{"a":2,"b":true}`, string(n.Marshal()))
}

func TestParse_DuplicateKeysThenSet(t *testing.T) {
	t.Parallel()

	n, err := ParseString(`{"tags":[{"value":"a"}],"tags":[{"value":"b"}]}`)
	require.NoError(t, err)

	n.Set("tags", NewArray(String("b")))
	assert.Equal(t, `{"tags":["b"]}`, string(n.Marshal()))

	nested, err := ParseString(`[{"x":{"y":1,"y":2}}]`)
	require.NoError(t, err)
	x, ok := nested.Elements()[0].Get("x")
	require.True(t, ok)
	assert.Equal(t, 1, x.Len())
}
