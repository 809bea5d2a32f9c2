package repository

import (
	"context"

	constant "github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"gorm.io/gorm"
)

type FileRepository struct {
	*baseRepository
}

func (fr FileRepository) Create(ctx context.Context, tx *gorm.DB, file *model.File) (*model.File, error) {
	fr.logger.Debugf("Create file with data: %v \n", file)

	db := fr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.File{}).Create(file).Error; err != nil {
		return file, err
	}

	return file, nil
}

func (fr FileRepository) GetByID(ctx context.Context, tx *gorm.DB, fileID string) (*model.File, error) {
	fr.logger.Debugf("Get file with fileID: %s \n", fileID)

	db := fr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	var file model.File
	if err := db.WithContext(ctx).Model(&model.File{}).Where("id = ?", fileID).First(&file).Error; err != nil {
		return nil, err
	}

	return &file, nil
}

// Delete removes the row and, when an s3 client is configured, the object behind it.
func (fr FileRepository) Delete(ctx context.Context, tx *gorm.DB, file model.File) error {
	fr.logger.Debugf("Delete file with fileID: %s \n", file.ID)

	db := fr.getDB(tx)
	ctx, cancel := context.WithTimeout(ctx, constant.QUERY_TIMEOUT_DURATION)
	defer cancel()

	if err := db.WithContext(ctx).Model(&model.File{}).Where("id = ?", file.ID).Delete(&model.File{}).Error; err != nil {
		return err
	}

	if fr.s3 != nil {
		if err := file.Delete(ctx, fr.s3); err != nil {
			fr.logger.Errorf("Failed to delete object %s from bucket %s: %v", file.UniqueFileName, file.BucketName, err)
		}
	}

	return nil
}
