package bcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bowmanjd/busser/internal/storage"
)

func rows(recs ...[]string) [][][]byte {
	out := make([][][]byte, len(recs))
	for i, r := range recs {
		for _, f := range r {
			out[i] = append(out[i], []byte(f))
		}
	}
	return out
}

func TestWriter_DefaultSeparators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.txt")
	s, err := storage.New(storage.Config{Kind: Kind, Path: path})
	require.NoError(t, err)

	for _, r := range rows([]string{"1", "a,b", ""}, []string{"2", "\"q\"", "x"}) {
		require.NoError(t, s.WriteRow(r))
	}
	require.NoError(t, s.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\x1fa,b\x1f\x1e2\x1f\"q\"\x1fx\x1e", string(got))
	assert.Equal(t, []string{path}, s.Files())
}

func TestWriter_CustomSeparatorsAndPaging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "t.csv")
	s, err := New(storage.Config{
		Path:           path,
		PageSize:       2,
		FieldSeparator: []byte("|"),
		RowSeparator:   []byte("\r\n"),
	})
	require.NoError(t, err)

	for _, r := range rows([]string{"a", "b"}, []string{"c", "d"}, []string{"e", "f"}) {
		require.NoError(t, s.WriteRow(r))
	}
	require.NoError(t, s.Close())

	files := s.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "t_1.csv", filepath.Base(files[0]))

	first, _ := os.ReadFile(files[0])
	second, _ := os.ReadFile(files[1])
	assert.Equal(t, "a|b\r\nc|d\r\n", string(first))
	assert.Equal(t, "e|f\r\n", string(second))
}

func TestWriter_RawBytesPassThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.txt")
	s, err := New(storage.Config{Path: path})
	require.NoError(t, err)

	require.NoError(t, s.WriteRow([][]byte{{0xff, 0xfe}, []byte("ok")}))
	require.NoError(t, s.Close())

	got, _ := os.ReadFile(path)
	assert.Equal(t, []byte{0xff, 0xfe, 0x1f, 'o', 'k', 0x1e}, got)
}
