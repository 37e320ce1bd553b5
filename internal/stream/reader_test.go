package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderSequential(t *testing.T) {
	r := NewReader([]byte{0x34, 0x12, 0x78, 0x56, 0x34, 0x12, 0xff})

	v16, err := r.ReadU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v16)

	v32, err := r.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v32)

	assert.Equal(t, 6, r.Offset())
	assert.Equal(t, 1, r.Remaining())

	_, err = r.ReadU16()
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
	assert.Equal(t, 6, r.Offset(), "failed read must not move the position")
}

func TestReaderSeek(t *testing.T) {
	r := NewReader(make([]byte, 8))
	assert.Equal(t, 8, r.Len())

	require.NoError(t, r.SetOffset(4))
	require.NoError(t, r.Skip(4))
	assert.Zero(t, r.Remaining())
	assert.ErrorIs(t, r.Skip(1), ErrUnexpectedEOF)

	assert.ErrorIs(t, r.SetOffset(-1), ErrNegativeOffset)

	require.NoError(t, r.SetOffset(100))
	assert.Zero(t, r.Remaining())
	_, err := r.ReadU32()
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestCStringAt(t *testing.T) {
	r := NewReader([]byte("foo\x00bar\x00baz"))

	s, err := r.CStringAt(0)
	require.NoError(t, err)
	assert.Equal(t, "foo", s)

	s, err = r.CStringAt(4)
	require.NoError(t, err)
	assert.Equal(t, "bar", s)

	s, err = r.CStringAt(3)
	require.NoError(t, err)
	assert.Equal(t, "", s)

	_, err = r.CStringAt(8)
	assert.ErrorIs(t, err, ErrUnexpectedEOF, "unterminated")
	_, err = r.CStringAt(64)
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
	assert.Zero(t, r.Offset())
}
