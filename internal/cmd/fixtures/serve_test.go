package fixtures

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbolytics/duesync/internal/source/sourcetest"
)

func TestServeOptions_Server(t *testing.T) {
	o := serveOptions{records: 3, seed: 1, failPage: 1, failStatus: http.StatusTooManyRequests}
	srv := httptest.NewServer(o.server(time.Now()))
	defer srv.Close()

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {sourcetest.DefaultClientID},
		"client_secret": {sourcetest.DefaultClientSecret},
	}
	resp, err := http.Post(sourcetest.TokenURL(srv.URL), "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, ":8081", serve.Flag("address").DefValue)
	assert.Equal(t, "25", serve.Flag("records").DefValue)
}
