package shm

import (
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	"testing"
)

func TestNewSegment(t *testing.T) {
	s, err := New(4096)
	require.NoError(t, err)

	require.True(t, s.IsReady())
	require.Equal(t, 4096, s.Size())
	require.Len(t, s.Bytes(), 4096)
	require.GreaterOrEqual(t, s.Handle(), 0)

	copy(s.Bytes(), "shared")
	require.Equal(t, "shared", string(s.Bytes()[:6]))

	require.NoError(t, s.Close())
	require.False(t, s.IsReady())
	require.Equal(t, -1, s.Handle())
	require.NoError(t, s.Close(), "closing twice must be a no-op")
}

func TestNewRejectsInvalidSize(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
}

func TestMapSharesMemory(t *testing.T) {
	s, err := New(128)
	require.NoError(t, err)
	defer s.Close()

	dup, err := unix.Dup(s.Handle())
	require.NoError(t, err)

	other, err := Map(dup, 128)
	require.NoError(t, err)
	defer other.Close()

	copy(s.Bytes(), "written through the first mapping")
	require.Equal(t, s.Bytes(), other.Bytes())

	other.Bytes()[0] = 'W'
	require.Equal(t, byte('W'), s.Bytes()[0])
}
