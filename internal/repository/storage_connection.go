package repository

import (
	"context"

	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
)

type StorageConnectionRepository struct {
	*baseRepository
}

// Create a new connection or replace the encrypted tokens of an existing one for the same user and provider
func (scr StorageConnectionRepository) CreateOrUpdateByUserAndProvider(ctx context.Context, tx *gorm.DB, conn model.StorageConnection) (*model.StorageConnection, error) {
	// Never log the connection itself, even ciphertext stays out of logs
	scr.logger.Debugf("Create or update storage connection with userID: %s and provider: %s \n", conn.UserID, conn.Provider)

	db := scr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var stored model.StorageConnection
	// Assign mean it will create or update regardless of whether record is found or not
	// It check based on where condition
	if err := db.WithContext(ctx).Model(&model.StorageConnection{}).
		Where("user_id = ? AND provider = ?", conn.UserID, conn.Provider).
		Assign(map[string]any{
			"encrypted_access_token":  conn.EncryptedAccessToken,
			"encrypted_refresh_token": conn.EncryptedRefreshToken,
			"key_scope":               conn.KeyScope,
			"token_expiry":            conn.TokenExpiry,
			"account_label":           conn.AccountLabel,
		}).
		Attrs(model.StorageConnection{UserID: conn.UserID, Provider: conn.Provider}).
		FirstOrCreate(&stored).Error; err != nil {
		return nil, err
	}

	return &stored, nil
}

func (scr StorageConnectionRepository) GetByUserAndProvider(ctx context.Context, tx *gorm.DB, userID, provider string) (*model.StorageConnection, error) {
	scr.logger.Debugf("Get storage connection with userID: %s and provider: %s \n", userID, provider)

	db := scr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var conn model.StorageConnection
	if err := db.WithContext(ctx).Model(&model.StorageConnection{}).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&conn).Error; err != nil {
		return nil, err
	}

	return &conn, nil
}

func (scr StorageConnectionRepository) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]model.StorageConnection, error) {
	scr.logger.Debugf("List storage connections with userID: %s \n", userID)

	db := scr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var conns []model.StorageConnection
	if err := db.WithContext(ctx).Model(&model.StorageConnection{}).
		Where("user_id = ?", userID).
		Order("provider ASC").
		Find(&conns).Error; err != nil {
		return nil, err
	}

	return conns, nil
}

func (scr StorageConnectionRepository) Delete(ctx context.Context, tx *gorm.DB, userID, provider string) error {
	scr.logger.Debugf("Delete storage connection with userID: %s and provider: %s \n", userID, provider)

	db := scr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	return checkAffected(db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&model.StorageConnection{}))
}
