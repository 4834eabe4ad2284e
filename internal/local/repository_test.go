package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Write(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, WithContainer("archive"))

	key := "overdue/2024/03/01/overdue_093000.csv"
	require.NoError(t, r.Write(context.Background(), key, strings.NewReader("id\r\n")))

	bs, err := os.ReadFile(filepath.Join(dir, "archive", "overdue", "2024", "03", "01", "overdue_093000.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id\r\n", string(bs))

	entries, err := os.ReadDir(filepath.Join(dir, "archive", "overdue", "2024", "03", "01"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRepository_Write_Overwrites(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)

	require.NoError(t, r.Write(context.Background(), "a.csv", strings.NewReader("first")))
	require.NoError(t, r.Write(context.Background(), "a.csv", strings.NewReader("second")))

	bs, err := os.ReadFile(filepath.Join(dir, "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(bs))
}

func TestRepository_Path_Escape(t *testing.T) {
	r := New(t.TempDir(), WithContainer("archive"))

	_, err := r.Path("../outside.csv")
	assert.Error(t, err)

	_, err = r.Path("")
	assert.Error(t, err)
}
