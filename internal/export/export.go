// Package export uploads finished documents to a user's own storage provider.
// Stored credentials are opened with the owning user's key scope only.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/credential"
	"github.com/SeakMengs/AutoSign/internal/metrics"
	"go.uber.org/zap"
)

var (
	// ErrStorageCredentialInvalid means the stored credential could not be opened
	// under the requesting user's scope, or its content is unusable.
	ErrStorageCredentialInvalid = errors.New("export: storage credential is invalid")
	ErrUnsupportedProvider      = errors.New("export: provider has no uploader")
)

// Credential is the decrypted form of a storage connection.
type Credential struct {
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
}

type Uploader interface {
	// Upload stores body under fileName and returns the provider's id for it.
	Upload(ctx context.Context, cred Credential, fileName string, body []byte) (string, error)
}

type ExportRequest struct {
	UserID     string
	Provider   credential.Provider
	Credential credential.EncryptedCredential
	// Optional, only OAuth providers carry one.
	RefreshCredential *credential.EncryptedCredential
	TokenExpiry       *time.Time
	FileName          string
	Body              []byte
}

type Exporter struct {
	cipher    *credential.Cipher
	logger    *zap.SugaredLogger
	uploaders map[credential.Provider]Uploader
}

func NewExporter(cipher *credential.Cipher, logger *zap.SugaredLogger, uploaders map[credential.Provider]Uploader) *Exporter {
	return &Exporter{
		cipher:    cipher,
		logger:    logger,
		uploaders: uploaders,
	}
}

// NewDefaultExporter wires an uploader for every provider in credential.AllProviders.
func NewDefaultExporter(cipher *credential.Cipher, cfg config.StorageConfig, logger *zap.SugaredLogger) (*Exporter, error) {
	uploaders := make(map[credential.Provider]Uploader, len(credential.AllProviders()))
	for _, p := range credential.AllProviders() {
		spec, err := credential.Spec(p, cfg)
		if err != nil {
			return nil, err
		}

		switch p {
		case credential.ProviderGoogleDrive:
			uploaders[p] = NewDriveUploader(spec.OAuth)
		case credential.ProviderDropbox:
			uploaders[p] = NewDropboxUploader(spec.OAuth)
		case credential.ProviderS3:
			uploaders[p] = NewS3Uploader(cfg.S3Region)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p)
		}
	}

	return NewExporter(cipher, logger, uploaders), nil
}

// open decrypts with the scope derived from userID. The scope recorded next to
// the blob is ignored so one user's ciphertext never opens for another.
func (e *Exporter) open(userID string, ec credential.EncryptedCredential) (string, error) {
	scope := credential.UserScope(userID)
	if !scope.IsValid() {
		return "", ErrStorageCredentialInvalid
	}

	plaintext, err := e.cipher.Decrypt(ec.Blob, scope)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageCredentialInvalid, err)
	}
	return plaintext, nil
}

func (e *Exporter) Export(ctx context.Context, req ExportRequest) (string, error) {
	remoteID, err := e.export(ctx, req)

	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, ErrStorageCredentialInvalid) {
			result = "invalid_credential"
		}
	}
	metrics.ExportsTotal.WithLabelValues(req.Provider.String(), result).Inc()

	return remoteID, err
}

func (e *Exporter) export(ctx context.Context, req ExportRequest) (string, error) {
	uploader, ok := e.uploaders[req.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, req.Provider)
	}

	access, err := e.open(req.UserID, req.Credential)
	if err != nil {
		return "", err
	}

	cred := Credential{AccessToken: access, Expiry: req.TokenExpiry}
	if req.RefreshCredential != nil && req.RefreshCredential.Blob != "" {
		cred.RefreshToken, err = e.open(req.UserID, *req.RefreshCredential)
		if err != nil {
			return "", err
		}
	}

	e.logger.Infof("Uploading %s (%d bytes) to %s for user %s", req.FileName, len(req.Body), req.Provider, req.UserID)

	remoteID, err := uploader.Upload(ctx, cred, req.FileName, req.Body)
	if err != nil {
		return "", fmt.Errorf("export to %s: %w", req.Provider, err)
	}

	return remoteID, nil
}
