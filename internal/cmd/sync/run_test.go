package sync

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"text/template"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal/config"
	"github.com/turbolytics/duesync/internal/source"
	"github.com/turbolytics/duesync/internal/source/sourcetest"
)

const configTemplate = `
logger:
  level: error

auth:
  client_id: {{.ClientID}}
  client_secret: {{.ClientSecret}}
  token_url: "{{.TokenURL}}"

source:
  base_url: "{{.BaseURL}}"
  page_size: 3

update:
  max_attempts: 2
  backoff: 1ms

archive:
  connection_string: "file://{{.ArchiveDir}}"
  container: archive
  prefix: overdue
  label: contacts
`

func writeConfig(t *testing.T, baseURL, secret, archiveDir string) string {
	t.Helper()
	tmpl, err := template.New("config").Parse(configTemplate)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yml")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, tmpl.Execute(f, map[string]string{
		"ClientID":     sourcetest.DefaultClientID,
		"ClientSecret": secret,
		"TokenURL":     sourcetest.TokenURL(baseURL),
		"BaseURL":      baseURL,
		"ArchiveDir":   archiveDir,
	}))
	return path
}

func TestRunCommand(t *testing.T) {
	now := time.Now().UTC()
	records := sourcetest.GenerateRecords(10, now, source.DefaultFieldMap(), 42)
	fake := sourcetest.New(sourcetest.WithRecords(records))
	srv := httptest.NewServer(fake)
	defer srv.Close()

	t.Run("completed", func(t *testing.T) {
		archiveDir := t.TempDir()
		cmd := newRunCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--config", writeConfig(t, srv.URL, sourcetest.DefaultClientSecret, archiveDir)})
		require.NoError(t, cmd.Execute())

		assert.True(t, strings.HasPrefix(out.String(), "Successfully processed 10 records. Time Taken: "))
		assert.Equal(t, 4, fake.PageRequests())

		var files []string
		err := filepath.WalkDir(filepath.Join(archiveDir, "archive"), func(path string, d os.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				files = append(files, path)
			}
			return err
		})
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Contains(t, files[0], filepath.Join("archive", "overdue", now.Format("2006")))
		assert.Equal(t, ".csv", filepath.Ext(files[0]))

		bs, err := os.ReadFile(files[0])
		require.NoError(t, err)
		assert.Equal(t, 11, strings.Count(string(bs), "\r\n"))
	})

	t.Run("auth failure", func(t *testing.T) {
		cmd := newRunCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--config", writeConfig(t, srv.URL, "wrong", t.TempDir())})
		err := cmd.Execute()
		require.Error(t, err)
		assert.True(t, errors.Is(err, source.ErrAuthFailure))
	})
}

func TestRouter(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)
	c.Auth.TenantID = "tenant"
	c.Auth.ClientID = "client"
	c.Auth.ClientSecret = "secret"
	c.Source.BaseURL = "https://example.crm.dynamics.com"
	c.Archive.ConnectionString = "file://" + t.TempDir()

	comps, err := config.InitializeCoordinator(t.Context(), c, zap.NewNop())
	require.NoError(t, err)
	defer comps.Close()

	r := newRouter(comps, zap.NewNop())
	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
