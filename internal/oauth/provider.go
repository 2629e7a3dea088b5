// Package oauth implements the provider side of federated login: building
// the consent URL, exchanging the authorization code and validating the
// returned profile. A provider that does not give back an email fails here
// with ErrNoEmail, before the session service is ever involved.
package oauth

import (
	"context"
	"errors"

	"github.com/kvasnecov/institute_platform/internal/models"
)

var ErrNoEmail = errors.New("email not available from provider")

type Provider interface {
	Name() string
	// LoginURL builds the provider consent URL carrying the given state.
	LoginURL(state string) string
	// Exchange trades the authorization code for a validated profile.
	Exchange(ctx context.Context, code string) (*models.OAuthProfile, error)
}
