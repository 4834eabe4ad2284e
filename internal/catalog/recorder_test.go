package catalog

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepository map[string][]byte

func (m memoryRepository) Write(_ context.Context, key string, r io.Reader) error {
	bs, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m[key] = bs
	return nil
}

func TestRecorder_Record(t *testing.T) {
	repo := memoryRepository{}
	rec := NewRecorder(repo, "overdue")

	s := Summary{
		RunID:     "6d1f3c1e-8c0a-4a52-9a55-9b4a8a1f0e11",
		State:     "completed",
		Fetched:   5,
		StartedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Duration:  time.Second,
	}
	require.NoError(t, rec.Record(context.Background(), s))

	key := "overdue/runs/2024/03/01/6d1f3c1e-8c0a-4a52-9a55-9b4a8a1f0e11.json"
	require.Contains(t, repo, key)

	var got Summary
	require.NoError(t, json.Unmarshal(repo[key], &got))
	assert.Equal(t, s, got)
}
