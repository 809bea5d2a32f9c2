package repository

import (
	"context"

	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
)

type SignerRepository struct {
	*baseRepository
}

func (sr SignerRepository) Create(ctx context.Context, tx *gorm.DB, signer *model.Signer) (*model.Signer, error) {
	sr.logger.Debugf("Create signer %s for documentID: %s \n", signer.Email, signer.DocumentID)

	db := sr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.Signer{}).Omit("Document").Create(signer).Error; err != nil {
		return signer, err
	}

	return signer, nil
}

func (sr SignerRepository) GetByID(ctx context.Context, tx *gorm.DB, signerID string) (*model.Signer, error) {
	sr.logger.Debugf("Get signer with signerID: %s \n", signerID)

	db := sr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var signer model.Signer
	if err := db.WithContext(ctx).Model(&model.Signer{}).Where("id = ?", signerID).First(&signer).Error; err != nil {
		return nil, err
	}

	return &signer, nil
}

func (sr SignerRepository) GetByAccessToken(ctx context.Context, tx *gorm.DB, token string) (*model.Signer, error) {
	sr.logger.Debugf("Get signer by access token \n")

	db := sr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var signer model.Signer
	if err := db.WithContext(ctx).Model(&model.Signer{}).Where("access_token = ?", token).First(&signer).Error; err != nil {
		return nil, err
	}

	return &signer, nil
}

func (sr SignerRepository) GetByDocumentAndEmail(ctx context.Context, tx *gorm.DB, documentID, email string) (*model.Signer, error) {
	sr.logger.Debugf("Get signer with documentID: %s and email: %s \n", documentID, email)

	db := sr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var signer model.Signer
	if err := db.WithContext(ctx).Model(&model.Signer{}).
		Where("document_id = ? AND LOWER(email) = LOWER(?)", documentID, email).
		First(&signer).Error; err != nil {
		return nil, err
	}

	return &signer, nil
}

// RoleTaken matches role by exact string equality, like spot lookups do.
func (sr SignerRepository) RoleTaken(ctx context.Context, tx *gorm.DB, documentID, role string) (bool, error) {
	sr.logger.Debugf("Check role %q on documentID: %s \n", role, documentID)

	db := sr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var count int64
	if err := db.WithContext(ctx).Model(&model.Signer{}).
		Where("document_id = ? AND role = ?", documentID, role).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

// ListByDocument returns signers in signing order.
func (sr SignerRepository) ListByDocument(ctx context.Context, tx *gorm.DB, documentID string) ([]model.Signer, error) {
	sr.logger.Debugf("List signers with documentID: %s \n", documentID)

	db := sr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var signers []model.Signer
	if err := preloadOrderedSigners(db.WithContext(ctx).Model(&model.Signer{})).
		Where("document_id = ?", documentID).
		Find(&signers).Error; err != nil {
		return nil, err
	}

	return signers, nil
}

// UpdateStatus is a conditional write on (status, version), see DocumentRepository.UpdateStatus.
func (sr SignerRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, signer *model.Signer, to constant.SignerStatus, columns map[string]any) error {
	sr.logger.Debugf("Update signer %s status from %s to %s at version %d \n", signer.ID, signer.Status, to, signer.Version)

	db := sr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	updates := map[string]any{
		"status":  to,
		"version": signer.Version + 1,
	}
	for k, v := range columns {
		updates[k] = v
	}

	if err := checkAffected(db.WithContext(ctx).Model(&model.Signer{}).
		Where("id = ? AND status = ? AND version = ?", signer.ID, signer.Status, signer.Version).
		Updates(updates)); err != nil {
		return err
	}

	signer.Status = to
	signer.Version++
	return nil
}
