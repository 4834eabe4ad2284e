package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single request to the source.
	DefaultTimeout = 60 * time.Second

	DefaultAPIPath        = "/api/data/v9.2/"
	DefaultPageSize       = 5000
	DefaultCompletedValue = "Yes"

	maxErrorBody = 4 << 10
)

type HTTPOption func(*HTTPClient)

func WithLogger(l *zap.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

func WithAPIPath(p string) HTTPOption {
	return func(c *HTTPClient) {
		c.apiPath = p
	}
}

func WithEntitySet(name string) HTTPOption {
	return func(c *HTTPClient) {
		c.entitySet = name
	}
}

// WithFilter adds an OData $filter expression to the first page request.
func WithFilter(filter string) HTTPOption {
	return func(c *HTTPClient) {
		c.filter = filter
	}
}

// WithPageSize sets the page size hint sent in the Prefer header.
func WithPageSize(n int) HTTPOption {
	return func(c *HTTPClient) {
		c.pageSize = n
	}
}

func WithFields(m FieldMap) HTTPOption {
	return func(c *HTTPClient) {
		c.fields = m
	}
}

// WithCompletedValue sets the processed flag value written by Update.
func WithCompletedValue(v string) HTTPOption {
	return func(c *HTTPClient) {
		c.completedValue = v
	}
}

func WithToken(token string) HTTPOption {
	return func(c *HTTPClient) {
		c.token = token
	}
}

// HTTPClient is a Client speaking OData over HTTP.
type HTTPClient struct {
	logger     *zap.Logger
	httpClient *http.Client

	baseURL        string
	apiPath        string
	entitySet      string
	filter         string
	pageSize       int
	token          string
	fields         FieldMap
	completedValue string
}

func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		logger:         zap.NewNop(),
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiPath:        DefaultAPIPath,
		pageSize:       DefaultPageSize,
		fields:         DefaultFieldMap(),
		completedValue: DefaultCompletedValue,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) collectionPath() string {
	return path.Join("/", c.apiPath, c.entitySet)
}

func (c *HTTPClient) recordPath(id string) string {
	return fmt.Sprintf("%s(%s)", c.collectionPath(), url.PathEscape(id))
}

// apiBuilder returns a new requests.Builder for the source. A non-empty
// cursor is the absolute next link returned by the previous page.
func (c *HTTPClient) apiBuilder(cursor string) *requests.Builder {
	var rb *requests.Builder
	if cursor == "" {
		rb = requests.
			URL(c.baseURL).
			Path(c.collectionPath()).
			Param("$select", strings.Join(c.fields.Select(), ","))
		if c.filter != "" {
			rb = rb.Param("$filter", c.filter)
		}
	} else {
		rb = requests.URL(cursor)
	}
	return rb.
		Client(c.httpClient).
		Bearer(c.token).
		Header("OData-MaxVersion", "4.0").
		Header("OData-Version", "4.0").
		AddValidator(checkStatus)
}

func (c *HTTPClient) Query(ctx context.Context, cursor string) (Page, error) {
	var body string
	err := c.apiBuilder(cursor).
		Accept("application/json").
		Header("Prefer", fmt.Sprintf("odata.maxpagesize=%d", c.pageSize)).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return Page{}, err
	}

	page, err := c.fields.DecodePage(body)
	if err != nil {
		return Page{}, err
	}

	c.logger.Debug("page received",
		zap.Int("records", len(page.Records)),
		zap.Bool("has_next", page.Next != ""),
	)
	return page, nil
}

func (c *HTTPClient) Update(ctx context.Context, id string) error {
	body, err := sjson.SetBytes([]byte(`{}`), gjson.Escape(c.fields.ProcessedFlag), c.completedValue)
	if err != nil {
		return err
	}

	return requests.
		URL(c.baseURL).
		Client(c.httpClient).
		Path(c.recordPath(id)).
		Patch().
		Bearer(c.token).
		Header("OData-MaxVersion", "4.0").
		Header("OData-Version", "4.0").
		// never create the record if it has gone away
		Header("If-Match", "*").
		BodyBytes(body).
		ContentType("application/json").
		AddValidator(checkStatus).
		Fetch(ctx)
}

func checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	se := &StatusError{
		Status: res.StatusCode,
		Body:   strings.TrimSpace(string(b)),
	}
	if res.Request != nil && res.Request.URL != nil {
		se.URL = res.Request.URL.Redacted()
	}
	return se
}
