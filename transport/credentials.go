package transport

import (
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Credentials authenticate a request.
type Credentials interface {
	Apply(req *http.Request) error
}

// BasicCredentials use HTTP basic authentication.
type BasicCredentials struct {
	Username string
	Password string
}

// Apply implements Credentials.
func (c BasicCredentials) Apply(req *http.Request) error {
	req.SetBasicAuth(c.Username, c.Password)
	return nil
}

// BearerCredentials send a fixed bearer token.
type BearerCredentials struct {
	Token string
}

// Apply implements Credentials.
func (c BearerCredentials) Apply(req *http.Request) error {
	if c.Token == "" {
		return errors.New("empty bearer token")
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	return nil
}

// OAuth2Credentials send a token obtained from an OAuth2 token source,
// refreshed by the source as needed.
type OAuth2Credentials struct {
	Source oauth2.TokenSource
}

// NewOAuth2Credentials wraps src so tokens are cached until they expire.
func NewOAuth2Credentials(src oauth2.TokenSource) *OAuth2Credentials {
	return &OAuth2Credentials{Source: oauth2.ReuseTokenSource(nil, src)}
}

// Apply implements Credentials.
func (c *OAuth2Credentials) Apply(req *http.Request) error {
	tok, err := c.Source.Token()
	if err != nil {
		return errors.Wrap(err, "oauth2 token")
	}
	tok.SetAuthHeader(req)
	return nil
}
