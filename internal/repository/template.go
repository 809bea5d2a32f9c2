package repository

import (
	"context"

	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
)

type TemplateRepository struct {
	*baseRepository
}

func (tr TemplateRepository) Create(ctx context.Context, tx *gorm.DB, template *model.Template) (*model.Template, error) {
	tr.logger.Debugf("Create template with data: %v \n", template)

	db := tr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.Template{}).Omit("TemplateFile").Create(template).Error; err != nil {
		return template, err
	}

	return template, nil
}

func (tr TemplateRepository) GetByID(ctx context.Context, tx *gorm.DB, templateID string) (*model.Template, error) {
	tr.logger.Debugf("Get template with templateID: %s \n", templateID)

	db := tr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var template model.Template
	if err := db.WithContext(ctx).Model(&model.Template{}).
		Preload("TemplateFile").
		Preload("Spots", func(db *gorm.DB) *gorm.DB {
			return db.Order("signature_spots.page ASC, signature_spots.spot_key ASC")
		}).
		Where("id = ?", templateID).
		First(&template).Error; err != nil {
		return nil, err
	}

	return &template, nil
}

func (tr TemplateRepository) GetRoleOfTemplate(ctx context.Context, tx *gorm.DB, templateID, userID string) (constant.DocumentRole, *model.Template, error) {
	tr.logger.Debugf("Get role of template with templateID: %s and userID: %s \n", templateID, userID)

	template, err := tr.GetByID(ctx, tx, templateID)
	if err != nil {
		return constant.DocumentRoleNone, nil, err
	}

	if template.UserID != userID {
		return constant.DocumentRoleNone, template, nil
	}

	return constant.DocumentRoleOwner, template, nil
}

func (tr TemplateRepository) AddSpot(ctx context.Context, tx *gorm.DB, spot *model.SignatureSpot) (*model.SignatureSpot, error) {
	tr.logger.Debugf("Add spot to template with data: %v \n", spot)

	db := tr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.SignatureSpot{}).Create(spot).Error; err != nil {
		return spot, err
	}

	return spot, nil
}

func (tr TemplateRepository) GetSpotByKey(ctx context.Context, tx *gorm.DB, templateID, spotKey string) (*model.SignatureSpot, error) {
	tr.logger.Debugf("Get spot with templateID: %s and spotKey: %s \n", templateID, spotKey)

	db := tr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var spot model.SignatureSpot
	if err := db.WithContext(ctx).Model(&model.SignatureSpot{}).
		Where("template_id = ? AND spot_key = ?", templateID, spotKey).
		First(&spot).Error; err != nil {
		return nil, err
	}

	return &spot, nil
}

// ListSpotsByRole matches role by exact string equality, no case folding or trimming.
func (tr TemplateRepository) ListSpotsByRole(ctx context.Context, tx *gorm.DB, templateID, role string) ([]model.SignatureSpot, error) {
	tr.logger.Debugf("List spots with templateID: %s and role: %q \n", templateID, role)

	db := tr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var spots []model.SignatureSpot
	if err := db.WithContext(ctx).Model(&model.SignatureSpot{}).
		Where("template_id = ? AND role = ?", templateID, role).
		Order("spot_key ASC").
		Find(&spots).Error; err != nil {
		return nil, err
	}

	return spots, nil
}

func (tr TemplateRepository) CountSpots(ctx context.Context, tx *gorm.DB, templateID string) (int64, error) {
	tr.logger.Debugf("Count spots with templateID: %s \n", templateID)

	db := tr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var count int64
	if err := db.WithContext(ctx).Model(&model.SignatureSpot{}).Where("template_id = ?", templateID).Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

// ListSpotRoles returns the distinct roles the template's spots are assigned to.
func (tr TemplateRepository) ListSpotRoles(ctx context.Context, tx *gorm.DB, templateID string) ([]string, error) {
	tr.logger.Debugf("List spot roles with templateID: %s \n", templateID)

	db := tr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var roles []string
	if err := db.WithContext(ctx).Model(&model.SignatureSpot{}).
		Where("template_id = ?", templateID).
		Distinct().
		Order("role ASC").
		Pluck("role", &roles).Error; err != nil {
		return nil, err
	}

	return roles, nil
}
