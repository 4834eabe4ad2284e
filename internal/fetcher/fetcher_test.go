package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbolytics/duesync/internal"
	"github.com/turbolytics/duesync/internal/source"
)

// pagedQuerier serves pages in order; cursors are page indexes.
type pagedQuerier struct {
	pages   [][]internal.Record
	failAt  int
	status  int
	cursors []string
}

func (p *pagedQuerier) Query(_ context.Context, cursor string) (source.Page, error) {
	p.cursors = append(p.cursors, cursor)
	i := len(p.cursors) - 1
	if p.failAt == i+1 {
		return source.Page{}, &source.StatusError{Status: p.status, URL: "http://source"}
	}
	page := source.Page{Records: p.pages[i]}
	if i+1 < len(p.pages) {
		page.Next = fmt.Sprintf("cursor-%d", i+1)
	}
	return page, nil
}

func records(prefix string, n int) []internal.Record {
	out := make([]internal.Record, n)
	for i := range out {
		out[i] = internal.Record{ID: fmt.Sprintf("%s-%d", prefix, i)}
	}
	return out
}

func TestFetcher_Fetch(t *testing.T) {
	t.Run("concatenates pages in arrival order", func(t *testing.T) {
		for _, sizes := range [][]int{{0}, {3}, {2, 2, 1}, {0, 4, 0, 1}, {5, 5, 5, 5}} {
			q := &pagedQuerier{}
			want := []string{}
			total := 0
			for i, n := range sizes {
				page := records(fmt.Sprintf("p%d", i), n)
				q.pages = append(q.pages, page)
				want = append(want, internal.IDs(page)...)
				total += n
			}

			got, err := New().Fetch(context.Background(), q)
			require.NoError(t, err)
			assert.Len(t, got, total)
			assert.Equal(t, want, internal.IDs(got))
			assert.Len(t, q.cursors, len(sizes))
			assert.Equal(t, "", q.cursors[0])
		}
	})

	t.Run("failure on page 2 of 3 aborts with no records", func(t *testing.T) {
		q := &pagedQuerier{
			pages:  [][]internal.Record{records("a", 2), records("b", 2), records("c", 2)},
			failAt: 2,
			status: 503,
		}

		got, err := New().Fetch(context.Background(), q)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, source.ErrSourceUnavailable))

		var ue *source.UnavailableError
		require.True(t, errors.As(err, &ue))
		assert.Equal(t, 2, ue.Page)
		assert.Equal(t, 503, ue.Status)
		assert.Len(t, q.cursors, 2)
	})

	t.Run("page limit", func(t *testing.T) {
		q := &pagedQuerier{
			pages: [][]internal.Record{records("a", 1), records("b", 1), records("c", 1)},
		}
		_, err := New(WithMaxPages(2)).Fetch(context.Background(), q)
		require.Error(t, err)
		assert.True(t, errors.Is(err, source.ErrSourceUnavailable))
	})
}

type loopingQuerier struct{}

func (loopingQuerier) Query(context.Context, string) (source.Page, error) {
	return source.Page{Next: "same"}, nil
}

func TestFetcher_CursorLoop(t *testing.T) {
	_, err := New().Fetch(context.Background(), loopingQuerier{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errCursorLoop))
}
