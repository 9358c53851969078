package rdr

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUleb128Minimal(t *testing.T) {
	ctx := Init([]byte{0xe5, 0x8e, 0x26}, binary.LittleEndian)
	v, status, err := ctx.Uleb128()
	require.NoError(t, err)
	assert.Equal(t, uint64(624485), v)
	assert.Equal(t, LebOK, status)
}

func TestUleb128Bloated(t *testing.T) {
	// 0x00 encoded with an extra continuation byte that adds no bits.
	ctx := Init([]byte{0x80, 0x00}, binary.LittleEndian)
	v, status, err := ctx.Uleb128()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
	assert.Equal(t, LebBloated, status)
}

func TestUleb128Truncated(t *testing.T) {
	ctx := Init([]byte{0x80}, binary.LittleEndian)
	_, status, err := ctx.Uleb128()
	assert.Error(t, err)
	assert.Equal(t, LebError, status)
}

func TestSleb128Negative(t *testing.T) {
	ctx := Init([]byte{0x7f}, binary.LittleEndian)
	v, status, err := ctx.Sleb128()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
	assert.Equal(t, LebOK, status)
}

func TestInitSubBounds(t *testing.T) {
	parent := Init(make([]byte, 16), binary.LittleEndian)
	sub, err := InitSub(parent, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, 4, sub.Len())

	_, err = InitSub(parent, 4, 32)
	assert.Error(t, err)
}

func TestOffsetWidth(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x1122334455667788)
	ctx := Init(buf, binary.LittleEndian)
	v, err := ctx.Offset(true)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), v)

	ctx2 := Init(buf, binary.LittleEndian)
	v2, err := ctx2.Offset(false)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x44332211), v2)
}

func TestStrUnterminated(t *testing.T) {
	ctx := Init([]byte("abc"), binary.LittleEndian)
	_, err := ctx.Str()
	assert.Error(t, err)
}

func TestStrTerminated(t *testing.T) {
	ctx := Init([]byte("abc\x00def"), binary.LittleEndian)
	s, err := ctx.Str()
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
	rest, err := ctx.Bytes(3)
	require.NoError(t, err)
	assert.Equal(t, "def", string(rest))
}

func TestSkipPastEnd(t *testing.T) {
	ctx := Init(make([]byte, 4), binary.LittleEndian)
	assert.Error(t, ctx.Skip(8))
	assert.NoError(t, ctx.Skip(4))
	assert.True(t, ctx.Eof())
}
