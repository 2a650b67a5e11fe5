package onenote

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// Session holds the credential for one run. The token is never refreshed;
// it is used until the process exits.
type Session struct {
	token  *oauth2.Token
	client *http.Client
}

// NewSession builds an HTTP client that attaches token as a bearer header.
// A client stored in ctx under oauth2.HTTPClient is used as the transport base.
func NewSession(ctx context.Context, token *oauth2.Token) *Session {
	return &Session{
		token:  token,
		client: oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)),
	}
}

func (s *Session) Token() *oauth2.Token {
	return s.token
}

func (s *Session) HTTPClient() *http.Client {
	return s.client
}
