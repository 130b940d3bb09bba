package client

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/meszmate/ews-go/transport"
)

// WithBasicAuth authenticates with a user name and password.
func WithBasicAuth(username, password string) Option {
	return WithCredentials(transport.BasicCredentials{Username: username, Password: password})
}

// WithBearerToken authenticates with a fixed OAuth access token.
func WithBearerToken(token string) Option {
	return WithCredentials(transport.BearerCredentials{Token: token})
}

// WithTokenSource authenticates with tokens from src, cached until they
// expire.
func WithTokenSource(src oauth2.TokenSource) Option {
	return WithCredentials(transport.NewOAuth2Credentials(src))
}

// WithClientCredentials authenticates as an application using the OAuth2
// client credentials grant. ctx is used for token requests.
func WithClientCredentials(ctx context.Context, cfg *clientcredentials.Config) Option {
	return WithTokenSource(cfg.TokenSource(ctx))
}
