package repository

import (
	"context"

	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SignatureAssetRepository struct {
	*baseRepository
}

// Upsert writes the asset for (document, spot key). A second write for the same pair
// replaces the content instead of creating a duplicate.
func (sar SignatureAssetRepository) Upsert(ctx context.Context, tx *gorm.DB, asset *model.SignatureAsset) (*model.SignatureAsset, error) {
	sar.logger.Debugf("Upsert signature asset with documentID: %s and spotKey: %s \n", asset.DocumentID, asset.SpotKey)

	db := sar.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.SignatureAsset{}).Omit("File").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}, {Name: "spot_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"signer_id", "content", "file_id", "content_hash", "updated_at"}),
	}).Create(asset).Error; err != nil {
		return asset, err
	}

	// On conflict the generated id is not the stored one
	stored, err := sar.GetByDocumentAndSpot(ctx, db, asset.DocumentID, asset.SpotKey)
	if err != nil {
		return asset, err
	}

	return stored, nil
}

func (sar SignatureAssetRepository) GetByDocumentAndSpot(ctx context.Context, tx *gorm.DB, documentID, spotKey string) (*model.SignatureAsset, error) {
	sar.logger.Debugf("Get signature asset with documentID: %s and spotKey: %s \n", documentID, spotKey)

	db := sar.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var asset model.SignatureAsset
	if err := db.WithContext(ctx).Model(&model.SignatureAsset{}).
		Where("document_id = ? AND spot_key = ?", documentID, spotKey).
		First(&asset).Error; err != nil {
		return nil, err
	}

	return &asset, nil
}

func (sar SignatureAssetRepository) ListByDocument(ctx context.Context, tx *gorm.DB, documentID string) ([]model.SignatureAsset, error) {
	sar.logger.Debugf("List signature assets with documentID: %s \n", documentID)

	db := sar.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var assets []model.SignatureAsset
	if err := db.WithContext(ctx).Model(&model.SignatureAsset{}).
		Preload("File").
		Where("document_id = ?", documentID).
		Order("spot_key ASC").
		Find(&assets).Error; err != nil {
		return nil, err
	}

	return assets, nil
}

func (sar SignatureAssetRepository) ListByDocumentAndSpots(ctx context.Context, tx *gorm.DB, documentID string, spotKeys []string) ([]model.SignatureAsset, error) {
	sar.logger.Debugf("List signature assets with documentID: %s and spotKeys: %v \n", documentID, spotKeys)

	if len(spotKeys) == 0 {
		return nil, nil
	}

	db := sar.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var assets []model.SignatureAsset
	if err := db.WithContext(ctx).Model(&model.SignatureAsset{}).
		Where("document_id = ? AND spot_key IN ?", documentID, spotKeys).
		Find(&assets).Error; err != nil {
		return nil, err
	}

	return assets, nil
}
