package repository

import (
	"context"

	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
)

type DocumentRepository struct {
	*baseRepository
}

func preloadOrderedSigners(db *gorm.DB) *gorm.DB {
	return db.Order("signers.order_index ASC, signers.created_at ASC, signers.id ASC")
}

func (dr DocumentRepository) Create(ctx context.Context, tx *gorm.DB, document *model.Document) (*model.Document, error) {
	dr.logger.Debugf("Create document with title: %s \n", document.Title)

	db := dr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.Document{}).Omit("Signers", "Template", "FinishedFile").Create(document).Error; err != nil {
		return document, err
	}

	return document, nil
}

func (dr DocumentRepository) GetByID(ctx context.Context, tx *gorm.DB, documentID string) (*model.Document, error) {
	dr.logger.Debugf("Get document with documentID: %s \n", documentID)

	db := dr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var document model.Document
	if err := db.WithContext(ctx).Model(&model.Document{}).
		Preload("Signers", preloadOrderedSigners).
		Where("id = ?", documentID).
		First(&document).Error; err != nil {
		return nil, err
	}

	return &document, nil
}

// GetBySigningToken never returns soft deleted documents.
func (dr DocumentRepository) GetBySigningToken(ctx context.Context, tx *gorm.DB, token string) (*model.Document, error) {
	dr.logger.Debugf("Get document by signing token \n")

	db := dr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var document model.Document
	if err := db.WithContext(ctx).Model(&model.Document{}).
		Where("signing_token = ?", token).
		First(&document).Error; err != nil {
		return nil, err
	}

	return &document, nil
}

func (dr DocumentRepository) GetRoleOfDocument(ctx context.Context, tx *gorm.DB, documentID, userID string) (constant.DocumentRole, *model.Document, error) {
	dr.logger.Debugf("Get role of document with documentID: %s and userID: %s \n", documentID, userID)

	document, err := dr.GetByID(ctx, tx, documentID)
	if err != nil {
		return constant.DocumentRoleNone, nil, err
	}

	if document.OwnerID == nil || *document.OwnerID != userID {
		return constant.DocumentRoleNone, document, nil
	}

	return constant.DocumentRoleOwner, document, nil
}

func (dr DocumentRepository) ListForOwner(ctx context.Context, tx *gorm.DB, ownerID string, status []constant.DocumentStatus, page, pageSize uint) ([]model.Document, int64, error) {
	dr.logger.Debugf("List documents for owner with userID: %s \n", ownerID)

	db := dr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if page < 1 {
		page = constant.DefaultPage
	}
	if pageSize < 1 || pageSize > constant.MaxPageSize {
		pageSize = constant.DefaultPageSize
	}

	query := db.WithContext(ctx).Model(&model.Document{}).Where("owner_id = ?", ownerID)
	if len(status) > 0 {
		query = query.Where("status IN ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var documents []model.Document
	if err := query.
		Preload("Signers", preloadOrderedSigners).
		Order("created_at DESC").
		Offset(int((page - 1) * pageSize)).
		Limit(int(pageSize)).
		Find(&documents).Error; err != nil {
		return nil, 0, err
	}

	return documents, total, nil
}

// CountInFlightByTemplate counts documents past draft that use the template, soft deleted ones excluded.
func (dr DocumentRepository) CountInFlightByTemplate(ctx context.Context, tx *gorm.DB, templateID string) (int64, error) {
	dr.logger.Debugf("Count sent documents with templateID: %s \n", templateID)

	db := dr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var count int64
	if err := db.WithContext(ctx).Model(&model.Document{}).
		Where("template_id = ? AND status <> ?", templateID, constant.DocumentStatusDraft).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

// UpdateStatus moves the document to a new status only if it still has the status
// and version the caller read. Extra columns are written in the same statement.
// The passed document is updated in place on success.
func (dr DocumentRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, document *model.Document, to constant.DocumentStatus, columns map[string]any) error {
	dr.logger.Debugf("Update document %s status from %s to %s at version %d \n", document.ID, document.Status, to, document.Version)

	db := dr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	updates := map[string]any{
		"status":  to,
		"version": document.Version + 1,
	}
	for k, v := range columns {
		updates[k] = v
	}

	if err := checkAffected(db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status = ? AND version = ?", document.ID, document.Status, document.Version).
		Updates(updates)); err != nil {
		return err
	}

	document.Status = to
	document.Version++
	return nil
}

// Touch bumps the version without changing status, used to serialize concurrent
// writers that do not move the document (e.g. two signers of a partially signed document).
func (dr DocumentRepository) Touch(ctx context.Context, tx *gorm.DB, document *model.Document) error {
	dr.logger.Debugf("Touch document %s at version %d \n", document.ID, document.Version)

	return dr.UpdateStatus(ctx, tx, document, document.Status, nil)
}

func (dr DocumentRepository) SetFinishedFile(ctx context.Context, tx *gorm.DB, documentID, fileID string) error {
	dr.logger.Debugf("Set finished file %s on document %s \n", fileID, documentID)

	db := dr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status = ?", documentID, constant.DocumentStatusCompleted).
		Update("finished_file_id", fileID).Error
}

// SoftDelete keeps the row, including its signing token, so the token is never issued again.
func (dr DocumentRepository) SoftDelete(ctx context.Context, tx *gorm.DB, documentID string) error {
	dr.logger.Debugf("Soft delete document with documentID: %s \n", documentID)

	db := dr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return checkAffected(db.WithContext(ctx).Where("id = ?", documentID).Delete(&model.Document{}))
}

// SigningTokenExists also sees soft deleted rows.
func (dr DocumentRepository) SigningTokenExists(ctx context.Context, tx *gorm.DB, token string) (bool, error) {
	db := dr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var count int64
	if err := db.WithContext(ctx).Unscoped().Model(&model.Document{}).Where("signing_token = ?", token).Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}
