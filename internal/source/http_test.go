package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbolytics/duesync/internal/source"
	"github.com/turbolytics/duesync/internal/source/sourcetest"
)

func newConnector(t *testing.T, srv *httptest.Server, secret string) *source.OAuthConnector {
	t.Helper()
	return source.NewOAuthConnector(
		srv.URL,
		source.Credentials{
			ClientID:     sourcetest.DefaultClientID,
			ClientSecret: secret,
			TokenURL:     sourcetest.TokenURL(srv.URL),
			Scopes:       []string{source.DefaultScope(srv.URL)},
		},
		source.ConnectorWithHTTPClient(srv.Client()),
		source.ConnectorWithClientOptions(
			source.WithEntitySet(sourcetest.DefaultEntitySet),
			source.WithPageSize(2),
		),
	)
}

func TestOAuthConnector_Connect(t *testing.T) {
	srv := httptest.NewServer(sourcetest.New())
	defer srv.Close()

	t.Run("valid credentials", func(t *testing.T) {
		client, err := newConnector(t, srv, sourcetest.DefaultClientSecret).Connect(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		_, err := newConnector(t, srv, "wrong").Connect(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, source.ErrAuthFailure))
	})
}

func TestHTTPClient_Query(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	records := sourcetest.GenerateRecords(5, now, source.DefaultFieldMap(), 7)

	t.Run("follows next links", func(t *testing.T) {
		fake := sourcetest.New(sourcetest.WithRecords(records))
		srv := httptest.NewServer(fake)
		defer srv.Close()

		client, err := newConnector(t, srv, sourcetest.DefaultClientSecret).Connect(context.Background())
		require.NoError(t, err)

		var ids []string
		cursor := ""
		for {
			page, err := client.Query(context.Background(), cursor)
			require.NoError(t, err)
			for _, r := range page.Records {
				ids = append(ids, r.ID)
			}
			if page.Next == "" {
				break
			}
			cursor = page.Next
		}

		require.Len(t, ids, 5)
		assert.Equal(t, "00000000-0000-0000-0000-000000000001", ids[0])
		assert.Equal(t, "00000000-0000-0000-0000-000000000005", ids[4])
		assert.Equal(t, 3, fake.PageRequests())
	})

	t.Run("non success status", func(t *testing.T) {
		fake := sourcetest.New(
			sourcetest.WithRecords(records),
			sourcetest.WithPageFailure(1, http.StatusTooManyRequests),
		)
		srv := httptest.NewServer(fake)
		defer srv.Close()

		client, err := newConnector(t, srv, sourcetest.DefaultClientSecret).Connect(context.Background())
		require.NoError(t, err)

		_, err = client.Query(context.Background(), "")
		require.Error(t, err)
		assert.Equal(t, http.StatusTooManyRequests, source.StatusOf(err))
	})
}

func TestHTTPClient_Update(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	records := sourcetest.GenerateRecords(2, now, source.DefaultFieldMap(), 7)
	id := "00000000-0000-0000-0000-000000000002"

	fake := sourcetest.New(
		sourcetest.WithRecords(records),
		sourcetest.WithUpdateFailures(id, 1, http.StatusServiceUnavailable),
	)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := newConnector(t, srv, sourcetest.DefaultClientSecret).Connect(context.Background())
	require.NoError(t, err)

	err = client.Update(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, source.StatusOf(err))

	require.NoError(t, client.Update(context.Background(), id))
	assert.Equal(t, []string{id}, fake.Updated())

	rec, ok := fake.Record(id)
	require.True(t, ok)
	assert.Equal(t, source.DefaultCompletedValue, rec["new_processed"])

	err = client.Update(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, source.StatusOf(err))
}

func TestHTTPClient_Update_LiteralFlagName(t *testing.T) {
	m := source.DefaultFieldMap()
	m.ProcessedFlag = "new_processed.flag"

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	fake := sourcetest.New(
		sourcetest.WithFields(m),
		sourcetest.WithRecords(sourcetest.GenerateRecords(1, now, m, 7)),
	)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	connector := source.NewOAuthConnector(
		srv.URL,
		source.Credentials{
			ClientID:     sourcetest.DefaultClientID,
			ClientSecret: sourcetest.DefaultClientSecret,
			TokenURL:     sourcetest.TokenURL(srv.URL),
		},
		source.ConnectorWithHTTPClient(srv.Client()),
		source.ConnectorWithClientOptions(
			source.WithEntitySet(sourcetest.DefaultEntitySet),
			source.WithFields(m),
		),
	)
	client, err := connector.Connect(context.Background())
	require.NoError(t, err)

	id := "00000000-0000-0000-0000-000000000001"
	require.NoError(t, client.Update(context.Background(), id))

	rec, ok := fake.Record(id)
	require.True(t, ok)
	assert.Equal(t, source.DefaultCompletedValue, rec["new_processed.flag"])
	_, nested := rec["new_processed"]
	assert.False(t, nested)
}
