package credential

import (
	"errors"
	"fmt"

	"github.com/SeakMengs/AutoSign/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/google"
)

var ErrUnknownProvider = errors.New("credential: unknown storage provider")

// Provider is the closed set of external storage destinations.
type Provider int

const (
	ProviderGoogleDrive Provider = iota + 1
	ProviderDropbox
	ProviderS3
)

func AllProviders() []Provider {
	return []Provider{ProviderGoogleDrive, ProviderDropbox, ProviderS3}
}

func (p Provider) String() string {
	switch p {
	case ProviderGoogleDrive:
		return "google_drive"
	case ProviderDropbox:
		return "dropbox"
	case ProviderS3:
		return "s3"
	default:
		return fmt.Sprintf("provider(%d)", int(p))
	}
}

func ParseProvider(raw string) (Provider, error) {
	for _, p := range AllProviders() {
		if p.String() == raw {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, raw)
}

type AuthKind int

const (
	// Access and refresh tokens obtained through an authorization code exchange.
	AuthKindOAuth AuthKind = iota + 1
	// Static key material supplied by the user, stored encrypted as JSON.
	AuthKindStaticKey
)

type ProviderSpec struct {
	Provider    Provider
	DisplayName string
	AuthKind    AuthKind
	// Nil for static key providers.
	OAuth *oauth2.Config
}

func (ps ProviderSpec) UsesOAuth() bool {
	return ps.AuthKind == AuthKindOAuth
}

// Spec returns the per-provider settings. Every Provider value must have a case here.
func Spec(p Provider, cfg config.StorageConfig) (ProviderSpec, error) {
	switch p {
	case ProviderGoogleDrive:
		return ProviderSpec{
			Provider:    p,
			DisplayName: "Google Drive",
			AuthKind:    AuthKindOAuth,
			OAuth: &oauth2.Config{
				ClientID:     cfg.GoogleDrive.ClientID,
				ClientSecret: cfg.GoogleDrive.ClientSecret,
				RedirectURL:  cfg.GoogleDrive.RedirectURL,
				Scopes:       []string{"https://www.googleapis.com/auth/drive.file"},
				Endpoint:     google.Endpoint,
			},
		}, nil
	case ProviderDropbox:
		return ProviderSpec{
			Provider:    p,
			DisplayName: "Dropbox",
			AuthKind:    AuthKindOAuth,
			OAuth: &oauth2.Config{
				ClientID:     cfg.Dropbox.ClientID,
				ClientSecret: cfg.Dropbox.ClientSecret,
				RedirectURL:  cfg.Dropbox.RedirectURL,
				Scopes:       []string{"files.content.write"},
				Endpoint:     endpoints.Dropbox,
			},
		}, nil
	case ProviderS3:
		return ProviderSpec{
			Provider:    p,
			DisplayName: "Amazon S3",
			AuthKind:    AuthKindStaticKey,
		}, nil
	default:
		return ProviderSpec{}, fmt.Errorf("%w: %v", ErrUnknownProvider, p)
	}
}
