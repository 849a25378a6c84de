package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuffer(t *testing.T) {
	data := []int64{0, 0, 1, 1, 0, 0, 1, 1, 0}
	b, err := NewBuffer(Tensor(S32, 3, 3), data)
	require.NoError(t, err)
	assert.Equal(t, 9, b.Len())

	// The buffer owns its storage.
	data[0] = 7
	assert.Equal(t, int64(0), b.Data[0])
}

func TestNewBufferErrors(t *testing.T) {
	_, err := NewBuffer(Tensor(S32, 3, 3), []int64{1, 0})
	assert.True(t, IsShapeMismatch(err), "got %v", err)

	_, err = NewBuffer(Tensor(S8, 2), []int64{1, 300})
	assert.True(t, IsTypeMismatch(err), "got %v", err)

	_, err = NewBuffer(Tensor(U8, 1), []int64{-1})
	assert.True(t, IsTypeMismatch(err), "got %v", err)

	_, err = NewBuffer(Tensor(InvalidType, 1), []int64{0})
	assert.True(t, IsTypeMismatch(err), "got %v", err)
}

func TestBufferEqualAndClone(t *testing.T) {
	a := MustBuffer(Tensor(S32, 2), 1, 0)
	c := a.Clone()
	assert.True(t, a.Equal(c))

	c.Data[0] = 0
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(MustBuffer(Tensor(S64, 2), 1, 0)))
}

func TestDecodeBuffers(t *testing.T) {
	bufs := []Buffer{
		MustBuffer(Tensor(S32, 3), 1, 0, 1),
		MustBuffer(Tensor(U8), 1),
	}
	data, err := MarshalCanonical(BuffersIRValue(bufs))
	require.NoError(t, err)
	assert.Equal(t, `[{"data":[1,0,1],"type":{"dims":[3],"type":"s32"}},{"data":[1],"type":{"dims":[],"type":"u8"}}]`, string(data))

	decoded, err := DecodeBuffers(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.True(t, bufs[0].Equal(decoded[0]))
	assert.True(t, bufs[1].Equal(decoded[1]))
}

func TestDecodeBuffersRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not array":   `{"data":[]}`,
		"float":       `[{"data":[1.5],"type":{"dims":[1],"type":"s32"}}]`,
		"bad type":    `[{"data":[1],"type":{"dims":[1],"type":"f32"}}]`,
		"wrong count": `[{"data":[1,2],"type":{"dims":[1],"type":"s32"}}]`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBuffers([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestBuffersHash(t *testing.T) {
	a := []Buffer{MustBuffer(Tensor(S32, 2), 1, 0)}
	b := []Buffer{MustBuffer(Tensor(S32, 2), 1, 0)}
	c := []Buffer{MustBuffer(Tensor(S32, 2), 0, 1)}

	ha, err := BuffersHash(a)
	require.NoError(t, err)
	hb, err := BuffersHash(b)
	require.NoError(t, err)
	hc, err := BuffersHash(c)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
}
