package reference

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/httpclient"
)

// NewTokenSource returns a caching client-credentials token source that
// fetches through client. It returns nil when no token URL is configured;
// lookups are then sent without an Authorization header.
func NewTokenSource(ctx context.Context, auth conf.AuthSettings, client *httpclient.Client) oauth2.TokenSource {
	if auth.TokenURL == "" {
		return nil
	}
	cfg := clientcredentials.Config{
		ClientID:     auth.ClientID,
		ClientSecret: auth.ClientSecret,
		TokenURL:     auth.TokenURL,
		Scopes:       auth.Scopes,
	}
	if auth.Audience != "" {
		cfg.EndpointParams = map[string][]string{"audience": {auth.Audience}}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client.HTTPClient())
	return cfg.TokenSource(ctx)
}

// authHeader returns the bearer header for authenticated lookups.
func (r *Resolver) authHeader() (http.Header, error) {
	if r.tokens == nil {
		return nil, nil
	}
	tok, err := r.tokens.Token()
	if err != nil {
		return nil, errors.New(err).
			Component("reference").
			Category(errors.CategoryReference).
			Context("operation", "fetch-token").
			Build()
	}
	h := http.Header{}
	h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return h, nil
}
