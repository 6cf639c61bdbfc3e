package dynjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAndFieldAccess(t *testing.T) {
	v, err := Decode([]byte(`{"title":"Claro amplía red 5G","score":0.87,"tags":["5g","red"],"nested":{"country":"co"}}`))
	require.NoError(t, err)

	s, err := v.Field("title").AsString()
	require.NoError(t, err)
	assert.Equal(t, "Claro amplía red 5G", s)

	f, err := v.Field("score").AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 0.87, f)

	assert.Equal(t, "co", v.Field("nested").Field("country").AsOptionalString())
	assert.True(t, v.Field("missing").IsNull())
	assert.True(t, v.Field("missing").Field("deeper").IsNull())
}

func TestCoercionFailsClosed(t *testing.T) {
	v, err := Decode([]byte(`{"n":"12.5","b":"yes","arr":[{"a":1},"oops"]}`))
	require.NoError(t, err)

	f, err := v.Field("n").AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 12.5, f)

	_, err = v.Field("b").AsBool()
	assert.Error(t, err)

	_, err = v.Field("arr").AsArrayOfObjects()
	assert.Error(t, err)

	_, err = v.Field("n").AsArray()
	assert.Error(t, err)
}

func TestAsOptionalInt(t *testing.T) {
	assert.True(t, func() bool { n, ok := FromAny(3.0).AsOptionalInt(); return ok && n == 3 }())

	_, ok := FromAny(3.5).AsOptionalInt()
	assert.False(t, ok)
	_, ok = FromAny(nil).AsOptionalInt()
	assert.False(t, ok)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte(`{broken`))
	assert.Error(t, err)
}
