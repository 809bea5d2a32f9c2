package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
)

type File struct {
	BaseModel
	FileName       string `gorm:"type:text;not null" json:"fileName"`
	UniqueFileName string `gorm:"type:text;not null;uniqueIndex" json:"-"`
	BucketName     string `gorm:"type:text;not null" json:"-"`
	Size           int64  `gorm:"type:bigint;not null" json:"size"`
	ContentType    string `gorm:"type:varchar(100)" json:"contentType"`
}

func (f File) TableName() string {
	return "files"
}

func (f File) validate() error {
	if f.BucketName == "" || f.UniqueFileName == "" {
		return errors.New("bucket name and unique file name cannot be empty")
	}
	return nil
}

func (f File) ToPresignedUrl(ctx context.Context, s3 *minio.Client, expiry time.Duration) (string, error) {
	if err := f.validate(); err != nil {
		return "", err
	}

	presignedURL, err := s3.PresignedGetObject(ctx, f.BucketName, f.UniqueFileName, expiry, nil)
	if err != nil {
		return "", err
	}
	return presignedURL.String(), nil
}

func (f File) DownloadToLocal(ctx context.Context, s3 *minio.Client, localPath string) error {
	if err := f.validate(); err != nil || localPath == "" {
		return fmt.Errorf("bucket name, unique file name, and local path cannot be empty: bucket=%s, uniqueFileName=%s, localPath=%s", f.BucketName, f.UniqueFileName, localPath)
	}

	return s3.FGetObject(ctx, f.BucketName, f.UniqueFileName, localPath, minio.GetObjectOptions{})
}

// ReadAll loads the whole object in memory, only use it for small files like signature images.
func (f File) ReadAll(ctx context.Context, s3 *minio.Client) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	obj, err := s3.GetObject(ctx, f.BucketName, f.UniqueFileName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

func (f File) Delete(ctx context.Context, s3 *minio.Client) error {
	if err := f.validate(); err != nil {
		return err
	}

	return s3.RemoveObject(ctx, f.BucketName, f.UniqueFileName, minio.RemoveObjectOptions{})
}

func (f File) ToBaseFilename() string {
	return filepath.Base(f.FileName)
}

func (f File) Ext() string {
	return filepath.Ext(f.UniqueFileName)
}
