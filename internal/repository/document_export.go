package repository

import (
	"context"

	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
)

type DocumentExportRepository struct {
	*baseRepository
}

func (der DocumentExportRepository) Create(ctx context.Context, tx *gorm.DB, export *model.DocumentExport) (*model.DocumentExport, error) {
	der.logger.Debugf("Create document export with documentID: %s and provider: %s \n", export.DocumentID, export.Provider)

	db := der.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.DocumentExport{}).Create(export).Error; err != nil {
		return export, err
	}

	return export, nil
}

func (der DocumentExportRepository) GetByID(ctx context.Context, tx *gorm.DB, exportID string) (*model.DocumentExport, error) {
	der.logger.Debugf("Get document export with exportID: %s \n", exportID)

	db := der.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var export model.DocumentExport
	if err := db.WithContext(ctx).Model(&model.DocumentExport{}).Where("id = ?", exportID).First(&export).Error; err != nil {
		return nil, err
	}

	return &export, nil
}

func (der DocumentExportRepository) ListByDocument(ctx context.Context, tx *gorm.DB, documentID string) ([]model.DocumentExport, error) {
	der.logger.Debugf("List document exports with documentID: %s \n", documentID)

	db := der.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var exports []model.DocumentExport
	if err := db.WithContext(ctx).Model(&model.DocumentExport{}).
		Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&exports).Error; err != nil {
		return nil, err
	}

	return exports, nil
}

// MarkResult finalizes a pending export. Finished exports are not overwritten.
func (der DocumentExportRepository) MarkResult(ctx context.Context, tx *gorm.DB, exportID string, status model.ExportStatus, remoteID, errMsg string) error {
	der.logger.Debugf("Mark document export %s as %s \n", exportID, status)

	db := der.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return checkAffected(db.WithContext(ctx).Model(&model.DocumentExport{}).
		Where("id = ? AND status = ?", exportID, model.ExportStatusPending).
		Updates(map[string]any{
			"status":    status,
			"remote_id": remoteID,
			"error":     errMsg,
		}))
}
