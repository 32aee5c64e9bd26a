package handler

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/api/idtoken"
)

type pushAuthenticator func(*http.Request) error

func allowAll(*http.Request) error { return nil }

//nolint:gochecknoglobals
var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// verifyGoogleOIDC checks the OIDC token an authenticated push subscription attaches.
// The audience is the URL the subscription pushes to.
// See https://cloud.google.com/pubsub/docs/authenticate-push-subscriptions
func verifyGoogleOIDC(req *http.Request) error {
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return errors.New("missing bearer token")
	}

	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	audience := scheme + "://" + req.Host + req.URL.Path

	payload, err := idtoken.Validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "push token")
	}
	if !googleIssuers[payload.Issuer] {
		return errors.Errorf("unexpected token issuer %q", payload.Issuer)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return errors.New("push service account email is not verified")
	}

	return nil
}
