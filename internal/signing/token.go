package signing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 43 symbols of the 64 symbol url-safe nanoid alphabet give 258 bits.
const TokenLength = 43

const maxTokenAttempts = 3

type TokenIssuer struct {
	repo       *repository.Repository
	logger     *zap.SugaredLogger
	sessionTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(repo *repository.Repository, logger *zap.SugaredLogger, sessionTTL time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{repo: repo, logger: logger, sessionTTL: sessionTTL, now: now}
}

// wellFormed lets malformed tokens fail before any database lookup.
func wellFormed(token string) bool {
	return util.IsNChar(token, TokenLength)
}

func (ti *TokenIssuer) NewToken() (string, error) {
	return util.GenerateNChar(TokenLength)
}

// NewDocumentToken returns a signing token no document has ever carried, soft deleted ones included.
func (ti *TokenIssuer) NewDocumentToken(ctx context.Context, tx *gorm.DB) (string, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		token, err := ti.NewToken()
		if err != nil {
			return "", err
		}
		exists, err := ti.repo.Document.SigningTokenExists(ctx, tx, token)
		if err != nil {
			return "", err
		}
		if !exists {
			return token, nil
		}
	}
	return "", errors.New("failed to generate a unique signing token")
}

// ResolveDocument looks a document up by its signing token. Deleted and draft
// documents do not resolve. Terminal documents do, so callers can answer with
// ErrWorkflowTerminated instead of pretending the link never existed.
func (ti *TokenIssuer) ResolveDocument(ctx context.Context, tx *gorm.DB, token string) (*model.Document, error) {
	if !wellFormed(token) {
		return nil, ErrInvalidOrExpiredToken
	}

	document, err := ti.repo.Document.GetBySigningToken(ctx, tx, token)
	if err != nil {
		return nil, ti.lookupError(err)
	}
	if document.Status == constant.DocumentStatusDraft {
		return nil, ErrInvalidOrExpiredToken
	}

	return document, nil
}

// ResolveSigner looks a signer up by access token together with its live document.
func (ti *TokenIssuer) ResolveSigner(ctx context.Context, tx *gorm.DB, token string) (*model.Signer, *model.Document, error) {
	if !wellFormed(token) {
		return nil, nil, ErrInvalidOrExpiredToken
	}

	signer, err := ti.repo.Signer.GetByAccessToken(ctx, tx, token)
	if err != nil {
		return nil, nil, ti.lookupError(err)
	}

	// soft deleted documents are filtered by the default scope
	document, err := ti.repo.Document.GetByID(ctx, tx, signer.DocumentID)
	if err != nil {
		return nil, nil, ti.lookupError(err)
	}
	if document.Status == constant.DocumentStatusDraft {
		return nil, nil, ErrInvalidOrExpiredToken
	}

	return signer, document, nil
}

func (ti *TokenIssuer) CreateSession(ctx context.Context, tx *gorm.DB, signer model.Signer) (*model.SignerSession, error) {
	token, err := ti.NewToken()
	if err != nil {
		return nil, err
	}

	return ti.repo.SignerSession.Create(ctx, tx, &model.SignerSession{
		SignerID: signer.ID,
		Token:    token,
		Status:   constant.SignerSessionStatusPending,
		IssuedAt: ti.now().UTC(),
	})
}

func (ti *TokenIssuer) sessionLive(session model.SignerSession) bool {
	return ti.now().Before(session.IssuedAt.Add(ti.sessionTTL))
}

// ValidateSession accepts only pending sessions still inside their window. A
// pending session found past its window is marked expired on the spot; the
// sweeper is not relied on. Pass a nil tx so the expiry survives the caller's rollback.
func (ti *TokenIssuer) ValidateSession(ctx context.Context, tx *gorm.DB, token string) (*model.SignerSession, error) {
	if !wellFormed(token) {
		return nil, ErrInvalidOrExpiredToken
	}

	session, err := ti.repo.SignerSession.GetByToken(ctx, tx, token)
	if err != nil {
		return nil, ti.lookupError(err)
	}

	if session.Status != constant.SignerSessionStatusPending {
		return nil, ErrInvalidOrExpiredToken
	}

	if !ti.sessionLive(*session) {
		if err := ti.repo.SignerSession.MarkExpired(ctx, tx, session.ID); err != nil {
			ti.logger.Errorf("Failed to mark signer session %s expired: %v", session.ID, err)
		}
		return nil, ErrInvalidOrExpiredToken
	}

	return session, nil
}

// ClaimSession moves a validated session to claimed.
func (ti *TokenIssuer) ClaimSession(ctx context.Context, tx *gorm.DB, session *model.SignerSession) error {
	if err := ti.repo.SignerSession.Claim(ctx, tx, session, ti.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}
	return nil
}

// SweepExpiredSessions is best-effort housekeeping, validation stays authoritative.
func (ti *TokenIssuer) SweepExpiredSessions(ctx context.Context) (int64, error) {
	cutoff := ti.now().UTC().Add(-ti.sessionTTL)
	n, err := ti.repo.SignerSession.ExpireIssuedBefore(ctx, nil, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep signer sessions: %w", err)
	}
	return n, nil
}

// lookupError folds "not found" into the uniform token error and keeps real failures.
func (ti *TokenIssuer) lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidOrExpiredToken
	}
	return err
}
