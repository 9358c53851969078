package formval

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarflint/dwarflint/pkg/lint/dwconst"
	"github.com/dwarflint/dwarflint/pkg/lint/rdr"
)

func TestReadFormAddr32(t *testing.T) {
	buf := []byte{0x78, 0x56, 0x34, 0x12}
	ctx := rdr.Init(buf, binary.LittleEndian)
	v, err := ReadForm(ctx, false, false, dwconst.FormAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x12345678), v.Uint)
}

func TestReadFormAddr64(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x1122334455667788)
	ctx := rdr.Init(buf, binary.LittleEndian)
	v, err := ReadForm(ctx, true, false, dwconst.FormAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), v.Uint)
}

func TestReadFormString(t *testing.T) {
	ctx := rdr.Init([]byte("hi\x00"), binary.LittleEndian)
	v, err := ReadForm(ctx, false, false, dwconst.FormString)
	require.NoError(t, err)
	assert.Equal(t, "hi", v.Str)
}

func TestReadFormUdataReportsBloat(t *testing.T) {
	ctx := rdr.Init([]byte{0x80, 0x00}, binary.LittleEndian)
	v, err := ReadForm(ctx, false, false, dwconst.FormUdata)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v.Uint)
	assert.True(t, v.LebBloat)
}

func TestReadFormSdata(t *testing.T) {
	ctx := rdr.Init([]byte{0x7f}, binary.LittleEndian)
	v, err := ReadForm(ctx, false, false, dwconst.FormSdata)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v.Int)
}

func TestReadFormBlock1(t *testing.T) {
	ctx := rdr.Init([]byte{3, 'a', 'b', 'c'}, binary.LittleEndian)
	v, err := ReadForm(ctx, false, false, dwconst.FormBlock1)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v.Block)
}

func TestReadFormStrpWidth(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 0x1122334455667788)
	ctx := rdr.Init(buf, binary.LittleEndian)
	v, err := ReadForm(ctx, false, true, dwconst.FormStrp)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), v.Uint)
}

func TestReadFormUnsupported(t *testing.T) {
	ctx := rdr.Init(nil, binary.LittleEndian)
	_, err := ReadForm(ctx, false, false, dwconst.Form(0xff))
	assert.Error(t, err)
}

func TestReadOperandNone(t *testing.T) {
	ctx := rdr.Init(nil, binary.LittleEndian)
	v, err := ReadOperand(ctx, false, dwconst.OperandNone)
	require.NoError(t, err)
	assert.Equal(t, Value{}, v)
}

func TestReadOperandAddr(t *testing.T) {
	buf := []byte{0x01, 0x00, 0x00, 0x00}
	ctx := rdr.Init(buf, binary.LittleEndian)
	v, err := ReadOperand(ctx, false, dwconst.OperandAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Uint)
}

func TestReadOperandULEBBloat(t *testing.T) {
	ctx := rdr.Init([]byte{0x80, 0x00}, binary.LittleEndian)
	v, err := ReadOperand(ctx, false, dwconst.OperandULEB)
	require.NoError(t, err)
	assert.True(t, v.LebBloat)
}

func TestReadOperandBlockULEB(t *testing.T) {
	ctx := rdr.Init([]byte{2, 0xaa, 0xbb}, binary.LittleEndian)
	v, err := ReadOperand(ctx, false, dwconst.OperandBlockULEB)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xbb}, v.Block)
}
