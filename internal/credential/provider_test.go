package credential

import (
	"errors"
	"testing"

	"github.com/SeakMengs/AutoSign/internal/config"
)

func TestEveryProviderHasSpec(t *testing.T) {
	cfg := config.StorageConfig{
		GoogleDrive: config.OAuthClientConfig{ClientID: "g-id", ClientSecret: "g-secret", RedirectURL: "http://localhost/g"},
		Dropbox:     config.OAuthClientConfig{ClientID: "d-id", ClientSecret: "d-secret", RedirectURL: "http://localhost/d"},
	}

	for _, p := range AllProviders() {
		t.Run(p.String(), func(t *testing.T) {
			spec, err := Spec(p, cfg)
			if err != nil {
				t.Fatalf("Spec() error = %v", err)
			}
			if spec.Provider != p {
				t.Errorf("Spec().Provider = %v, want %v", spec.Provider, p)
			}
			if spec.DisplayName == "" {
				t.Errorf("Spec().DisplayName is empty")
			}
			if spec.UsesOAuth() && spec.OAuth == nil {
				t.Errorf("Spec() oauth provider without oauth config")
			}
			if !spec.UsesOAuth() && spec.OAuth != nil {
				t.Errorf("Spec() static key provider carries oauth config")
			}

			parsed, err := ParseProvider(p.String())
			if err != nil || parsed != p {
				t.Errorf("ParseProvider(%q) = %v, %v", p.String(), parsed, err)
			}
		})
	}
}

func TestSpecUsesConfiguredClient(t *testing.T) {
	cfg := config.StorageConfig{
		Dropbox: config.OAuthClientConfig{ClientID: "d-id", ClientSecret: "d-secret", RedirectURL: "http://localhost/d"},
	}

	spec, err := Spec(ProviderDropbox, cfg)
	if err != nil {
		t.Fatalf("Spec() error = %v", err)
	}
	if spec.OAuth.ClientID != "d-id" || spec.OAuth.RedirectURL != "http://localhost/d" {
		t.Errorf("Spec() oauth config = %+v", spec.OAuth)
	}
}

func TestUnknownProvider(t *testing.T) {
	if _, err := ParseProvider("onedrive"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("ParseProvider() error = %v, want ErrUnknownProvider", err)
	}
	if _, err := Spec(Provider(99), config.StorageConfig{}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Spec() error = %v, want ErrUnknownProvider", err)
	}
}
