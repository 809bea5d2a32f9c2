package repository

import (
	"context"
	"time"

	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
)

type SignerSessionRepository struct {
	*baseRepository
}

func (ssr SignerSessionRepository) Create(ctx context.Context, tx *gorm.DB, session *model.SignerSession) (*model.SignerSession, error) {
	ssr.logger.Debugf("Create signer session for signerID: %s \n", session.SignerID)

	db := ssr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.SignerSession{}).Omit("Signer").Create(session).Error; err != nil {
		return session, err
	}

	return session, nil
}

// GetByToken does not filter on status or age, callers must validate the window.
func (ssr SignerSessionRepository) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*model.SignerSession, error) {
	ssr.logger.Debugf("Get signer session by token \n")

	db := ssr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var session model.SignerSession
	if err := db.WithContext(ctx).Model(&model.SignerSession{}).Where("token = ?", token).First(&session).Error; err != nil {
		return nil, err
	}

	return &session, nil
}

func (ssr SignerSessionRepository) MarkExpired(ctx context.Context, tx *gorm.DB, sessionID string) error {
	ssr.logger.Debugf("Mark signer session %s expired \n", sessionID)

	db := ssr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.SignerSession{}).
		Where("id = ? AND status = ?", sessionID, constant.SignerSessionStatusPending).
		Update("status", constant.SignerSessionStatusExpired).Error
}

// Claim moves a pending session to claimed. A session claimed or expired by a
// concurrent request yields ErrStaleRecord.
func (ssr SignerSessionRepository) Claim(ctx context.Context, tx *gorm.DB, session *model.SignerSession, claimedAt time.Time) error {
	ssr.logger.Debugf("Claim signer session %s \n", session.ID)

	db := ssr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := checkAffected(db.WithContext(ctx).Model(&model.SignerSession{}).
		Where("id = ? AND status = ?", session.ID, constant.SignerSessionStatusPending).
		Updates(map[string]any{
			"status":     constant.SignerSessionStatusClaimed,
			"claimed_at": claimedAt,
		})); err != nil {
		return err
	}

	session.Status = constant.SignerSessionStatusClaimed
	session.ClaimedAt = &claimedAt
	return nil
}

// ExpireIssuedBefore is housekeeping only. Validation never depends on it having run.
func (ssr SignerSessionRepository) ExpireIssuedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	ssr.logger.Debugf("Expire pending signer sessions issued before %s \n", cutoff)

	db := ssr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	result := db.WithContext(ctx).Model(&model.SignerSession{}).
		Where("status = ? AND issued_at < ?", constant.SignerSessionStatusPending, cutoff).
		Update("status", constant.SignerSessionStatusExpired)

	return result.RowsAffected, result.Error
}
