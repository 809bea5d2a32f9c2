package repository

import (
	"errors"

	"github.com/SeakMengs/AutoSign/internal/auth"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrStaleRecord is returned by conditional writes when the row no longer matches
// the status and version the caller read.
var ErrStaleRecord = errors.New("record was modified by another request")

type baseRepository struct {
	db         *gorm.DB
	logger     *zap.SugaredLogger
	jwtService auth.JWTInterface
	s3         *minio.Client
}

type Repository struct {
	// DB can be used for transaction. Example usage:
	// err := r.DB.Transaction(func(tx *gorm.DB) error { ... })
	// Then pass tx to the repository functions, returning an error rolls everything back
	DB                *gorm.DB
	User              *UserRepository
	JWT               *JWTRepository
	File              *FileRepository
	Template          *TemplateRepository
	Document          *DocumentRepository
	Signer            *SignerRepository
	SignatureAsset    *SignatureAssetRepository
	AuditEvent        *AuditEventRepository
	SignerSession     *SignerSessionRepository
	StorageConnection *StorageConnectionRepository
	EmailLog          *EmailLogRepository
	DocumentExport    *DocumentExportRepository
}

func newBaseRepository(db *gorm.DB, logger *zap.SugaredLogger, jwtService auth.JWTInterface, s3 *minio.Client) *baseRepository {
	return &baseRepository{db: db, logger: logger, jwtService: jwtService, s3: s3}
}

func NewRepository(db *gorm.DB, logger *zap.SugaredLogger, jwtService auth.JWTInterface, s3 *minio.Client) *Repository {
	br := newBaseRepository(db, logger, jwtService, s3)
	_userRepo := &UserRepository{baseRepository: br}

	return &Repository{
		DB:                db,
		User:              _userRepo,
		JWT:               &JWTRepository{baseRepository: br, user: _userRepo},
		File:              &FileRepository{baseRepository: br},
		Template:          &TemplateRepository{baseRepository: br},
		Document:          &DocumentRepository{baseRepository: br},
		Signer:            &SignerRepository{baseRepository: br},
		SignatureAsset:    &SignatureAssetRepository{baseRepository: br},
		AuditEvent:        &AuditEventRepository{baseRepository: br},
		SignerSession:     &SignerSessionRepository{baseRepository: br},
		StorageConnection: &StorageConnectionRepository{baseRepository: br},
		EmailLog:          &EmailLogRepository{baseRepository: br},
		DocumentExport:    &DocumentExportRepository{baseRepository: br},
	}
}

// Example usage can be found in user repository: CheckDupAndCreate
// Note: SkipDefaultTransaction is on, so multi step writes must go through here or Repository.DB.Transaction
// Docs: https://gorm.io/docs/transactions.html#Disable-Default-Transaction
func (b baseRepository) withTx(db *gorm.DB, fn func(*gorm.DB) error) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})

	if err != nil {
		b.logger.Debugf("withTx Transaction error: %v", err)
	}

	return err
}

func (b baseRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}

	return b.db
}

// A conditional update that touched nothing means somebody else won the race.
func checkAffected(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleRecord
	}
	return nil
}
