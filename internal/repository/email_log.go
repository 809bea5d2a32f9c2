package repository

import (
	"context"

	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
)

type EmailLogRepository struct {
	*baseRepository
}

func (elr EmailLogRepository) Create(ctx context.Context, tx *gorm.DB, log *model.EmailLog) (*model.EmailLog, error) {
	elr.logger.Debugf("Create email log %s for documentID: %s with status: %s \n", log.Template, log.DocumentID, log.Status)

	db := elr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.EmailLog{}).Create(log).Error; err != nil {
		return log, err
	}

	return log, nil
}

func (elr EmailLogRepository) ListByDocument(ctx context.Context, tx *gorm.DB, documentID string) ([]model.EmailLog, error) {
	elr.logger.Debugf("List email logs with documentID: %s \n", documentID)

	db := elr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var logs []model.EmailLog
	if err := db.WithContext(ctx).Model(&model.EmailLog{}).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}

	return logs, nil
}
