package source

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AzureTokenURL is the client credentials token endpoint for an Entra ID tenant.
func AzureTokenURL(tenantID string) string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
}

// DefaultScope is the application scope of the source at baseURL.
func DefaultScope(baseURL string) string {
	return baseURL + "/.default"
}

type Credentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

type ConnectorOption func(*OAuthConnector)

func ConnectorWithLogger(l *zap.Logger) ConnectorOption {
	return func(c *OAuthConnector) {
		c.logger = l
	}
}

func ConnectorWithHTTPClient(hc *http.Client) ConnectorOption {
	return func(c *OAuthConnector) {
		c.httpClient = hc
	}
}

// ConnectorWithClientOptions sets the options applied to every HTTPClient
// the connector creates.
func ConnectorWithClientOptions(opts ...HTTPOption) ConnectorOption {
	return func(c *OAuthConnector) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

// OAuthConnector acquires a client credentials token on every Connect.
// Tokens are not cached across runs.
type OAuthConnector struct {
	logger     *zap.Logger
	httpClient *http.Client
	config     clientcredentials.Config
	baseURL    string
	clientOpts []HTTPOption
}

func NewOAuthConnector(baseURL string, creds Credentials, opts ...ConnectorOption) *OAuthConnector {
	c := &OAuthConnector{
		logger:     zap.NewNop(),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    baseURL,
		config: clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     creds.TokenURL,
			Scopes:       creds.Scopes,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OAuthConnector) Connect(ctx context.Context) (Client, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.config.Token(ctx)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if tok.AccessToken == "" {
		return nil, &AuthError{Err: fmt.Errorf("empty access token")}
	}

	c.logger.Info("token acquired",
		zap.String("token_url", c.config.TokenURL),
		zap.Time("expiry", tok.Expiry),
	)

	opts := append([]HTTPOption{
		WithHTTPClient(c.httpClient),
		WithLogger(c.logger),
	}, c.clientOpts...)
	opts = append(opts, WithToken(tok.AccessToken))

	return NewHTTPClient(c.baseURL, opts...), nil
}
