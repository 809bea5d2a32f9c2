package repository

import (
	"context"
	"errors"

	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
)

// AuditEventRepository only appends and reads. There is deliberately no update or delete.
type AuditEventRepository struct {
	*baseRepository
}

func (ar AuditEventRepository) Append(ctx context.Context, tx *gorm.DB, event *model.AuditEvent) (*model.AuditEvent, error) {
	ar.logger.Debugf("Append audit event %s with documentID: %s and sequence: %d \n", event.Kind, event.DocumentID, event.Sequence)

	db := ar.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.AuditEvent{}).Create(event).Error; err != nil {
		return event, err
	}

	return event, nil
}

// GetLast returns nil without error when the document has no events yet.
func (ar AuditEventRepository) GetLast(ctx context.Context, tx *gorm.DB, documentID string) (*model.AuditEvent, error) {
	ar.logger.Debugf("Get last audit event with documentID: %s \n", documentID)

	db := ar.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var event model.AuditEvent
	if err := db.WithContext(ctx).Model(&model.AuditEvent{}).
		Where("document_id = ?", documentID).
		Order("sequence DESC").
		First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &event, nil
}

// ListByDocument returns events in the order they were recorded.
func (ar AuditEventRepository) ListByDocument(ctx context.Context, tx *gorm.DB, documentID string) ([]model.AuditEvent, error) {
	ar.logger.Debugf("List audit events with documentID: %s \n", documentID)

	db := ar.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var events []model.AuditEvent
	if err := db.WithContext(ctx).Model(&model.AuditEvent{}).
		Where("document_id = ?", documentID).
		Order("sequence ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

func (ar AuditEventRepository) CountByKind(ctx context.Context, tx *gorm.DB, documentID string, kind constant.AuditEventKind) (int64, error) {
	ar.logger.Debugf("Count audit events %s with documentID: %s \n", kind, documentID)

	db := ar.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var count int64
	if err := db.WithContext(ctx).Model(&model.AuditEvent{}).
		Where("document_id = ? AND kind = ?", documentID, kind).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
