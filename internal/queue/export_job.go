package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/credential"
	"github.com/SeakMengs/AutoSign/internal/export"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/SeakMengs/AutoSign/pkg/autosign"
	"gorm.io/gorm"
)

var errDocumentNotCompleted = errors.New("document is not completed")

func VerificationURL(frontendURL, documentID string) string {
	return strings.TrimSuffix(frontendURL, "/") + "/verify/" + documentID
}

// FieldValuesFor pairs every spot with its captured asset. imagePaths maps an
// asset id to the local copy of its image; assets without one are stamped as text.
func FieldValuesFor(spots []model.SignatureSpot, assets []model.SignatureAsset, imagePaths map[string]string) ([]autosign.FieldValue, error) {
	byKey := make(map[string]model.SignatureAsset, len(assets))
	for _, a := range assets {
		byKey[a.SpotKey] = a
	}

	fields := make([]autosign.FieldValue, 0, len(spots))
	for _, spot := range spots {
		asset, ok := byKey[spot.SpotKey]
		if !ok {
			return nil, fmt.Errorf("spot %s has no signature asset", spot.SpotKey)
		}

		f := autosign.FieldValue{
			Key:    spot.SpotKey,
			Page:   spot.Page,
			X:      spot.X,
			Y:      spot.Y,
			Width:  spot.Width,
			Height: spot.Height,
		}
		if path, ok := imagePaths[asset.ID]; ok {
			f.Kind = autosign.FieldKindImage
			f.ImagePath = path
		} else {
			f.Kind = autosign.FieldKindText
			f.Text = asset.Content
		}
		fields = append(fields, f)
	}

	return fields, nil
}

func cleanupTempFiles(files []string) {
	for _, file := range files {
		os.Remove(file)
	}
}

func downloadAssetImages(ctx context.Context, assets []model.SignatureAsset, app *ExportConsumerContext) (map[string]string, []string, error) {
	imagePaths := make(map[string]string)
	var tempFiles []string

	for _, a := range assets {
		if a.File == nil {
			continue
		}

		tmp, err := util.CreateTemp("autosign-asset-*" + a.File.Ext())
		if err != nil {
			return nil, tempFiles, err
		}
		tmp.Close()
		tempFiles = append(tempFiles, tmp.Name())

		if err := a.File.DownloadToLocal(ctx, app.S3, tmp.Name()); err != nil {
			return nil, tempFiles, fmt.Errorf("failed to download asset of spot %s: %w", a.SpotKey, err)
		}
		imagePaths[a.ID] = tmp.Name()
	}

	return imagePaths, tempFiles, nil
}

// renderFinishedFile stamps every asset on the template, adds the verification
// QR code and stores the result as the document's finished file.
func renderFinishedFile(ctx context.Context, document *model.Document, app *ExportConsumerContext) (*model.File, error) {
	template, err := app.Repository.Template.GetByID(ctx, nil, document.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	assets, err := app.Repository.SignatureAsset.ListByDocument(ctx, nil, document.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load signature assets: %w", err)
	}

	imagePaths, tempFiles, err := downloadAssetImages(ctx, assets, app)
	defer cleanupTempFiles(tempFiles)
	if err != nil {
		return nil, err
	}

	fields, err := FieldValuesFor(template.Spots, assets, imagePaths)
	if err != nil {
		return nil, err
	}

	templatePath, err := util.CreateTemp("autosign-template-*.pdf")
	if err != nil {
		return nil, err
	}
	templatePath.Close()
	defer os.Remove(templatePath.Name())

	if err := template.TemplateFile.DownloadToLocal(ctx, app.S3, templatePath.Name()); err != nil {
		return nil, fmt.Errorf("failed to download template file: %w", err)
	}

	workDir, err := os.MkdirTemp(util.GetTempDir(), "finish_*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	stamped := filepath.Join(workDir, "stamped.pdf")
	if err := app.Renderer.Render(templatePath.Name(), stamped, fields); err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}

	finished := filepath.Join(workDir, fmt.Sprintf("%s_signed.pdf", document.ID))
	link := VerificationURL(app.Config.Signing.FRONTEND_URL, document.ID)
	if err := app.Renderer.EmbedVerificationQRCode(stamped, finished, link); err != nil {
		return nil, err
	}

	info, err := util.UploadFileToS3ByPath(ctx, finished, &util.FileUploadOptions{
		DirectoryPath: util.GetFinishedDocumentDirectoryPath(document.ID),
		UniquePrefix:  true,
		Bucket:        app.Config.Minio.BUCKET,
		S3:            app.S3,
	})
	if err != nil {
		return nil, err
	}

	file := &model.File{
		FileName:       document.Title + ".pdf",
		UniqueFileName: info.Key,
		BucketName:     info.Bucket,
		Size:           info.Size,
		ContentType:    "application/pdf",
	}
	err = app.Repository.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := app.Repository.File.Create(ctx, tx, file); err != nil {
			return err
		}
		return app.Repository.Document.SetFinishedFile(ctx, tx, document.ID, file.ID)
	})
	if err != nil {
		if rmErr := file.Delete(ctx, app.S3); rmErr != nil {
			app.Logger.Errorf("Failed to remove orphaned finished file %s: %v", info.Key, rmErr)
		}
		return nil, fmt.Errorf("failed to save finished file: %w", err)
	}

	return file, nil
}

func finishedFileOf(ctx context.Context, document *model.Document, app *ExportConsumerContext) (*model.File, error) {
	if document.FinishedFileID != nil {
		return app.Repository.File.GetByID(ctx, nil, *document.FinishedFileID)
	}
	return renderFinishedFile(ctx, document, app)
}

func uploadToProvider(ctx context.Context, exp *model.DocumentExport, file *model.File, app *ExportConsumerContext) (bool, error) {
	provider, err := credential.ParseProvider(exp.Provider)
	if err != nil {
		return false, err
	}

	conn, err := app.Repository.StorageConnection.GetByUserAndProvider(ctx, nil, exp.UserID, exp.Provider)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("storage %s is no longer connected", exp.Provider)
		}
		return true, err
	}

	body, err := file.ReadAll(ctx, app.S3)
	if err != nil {
		return true, fmt.Errorf("failed to read finished file: %w", err)
	}

	req := export.ExportRequest{
		UserID:      exp.UserID,
		Provider:    provider,
		Credential:  credential.EncryptedCredential{Blob: conn.EncryptedAccessToken},
		TokenExpiry: conn.TokenExpiry,
		FileName:    file.ToBaseFilename(),
		Body:        body,
	}
	if conn.EncryptedRefreshToken != "" {
		req.RefreshCredential = &credential.EncryptedCredential{Blob: conn.EncryptedRefreshToken}
	}

	remoteID, err := app.Exporter.Export(ctx, req)
	if err != nil {
		// a credential that does not open today will not open on retry
		return !errors.Is(err, export.ErrStorageCredentialInvalid), err
	}

	if err := app.Repository.DocumentExport.MarkResult(ctx, nil, exp.ID, model.ExportStatusUploaded, remoteID, ""); err != nil {
		app.Logger.Errorf("Failed to mark export %s uploaded: %v", exp.ID, err)
	}
	return false, nil
}

// FinalizeDocumentJob renders the finished file of a completed document and,
// for export jobs, uploads it to the requesting user's storage.
// Return shouldRequeue, err
func FinalizeDocumentJob(ctx context.Context, jobPayload ExportJobPayload, app *ExportConsumerContext) (bool, error) {
	start := time.Now()

	document, err := app.Repository.Document.GetByID(ctx, nil, jobPayload.DocumentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("document not found: %s", jobPayload.DocumentID)
		}
		return true, err
	}
	if document.Status != constant.DocumentStatusCompleted {
		return false, fmt.Errorf("%w: %s is %s", errDocumentNotCompleted, document.ID, document.Status)
	}

	var exp *model.DocumentExport
	if jobPayload.ExportID != "" {
		exp, err = app.Repository.DocumentExport.GetByID(ctx, nil, jobPayload.ExportID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, fmt.Errorf("export not found: %s", jobPayload.ExportID)
			}
			return true, err
		}
		if exp.DocumentID != document.ID {
			return false, fmt.Errorf("export %s does not belong to document %s", exp.ID, document.ID)
		}
		if exp.Status != model.ExportStatusPending {
			app.Logger.Infof("Export %s already %s, skipping", exp.ID, exp.Status)
			return false, nil
		}
	}

	file, err := finishedFileOf(ctx, document, app)
	if err != nil {
		return true, err
	}

	if exp != nil {
		shouldRequeue, err := uploadToProvider(ctx, exp, file, app)
		if err != nil {
			return shouldRequeue, err
		}
	}

	app.Logger.Infof("Finalized document %s in %s", document.ID, time.Since(start))
	return false, nil
}

// MarkExportFailed records the last error on a pending export once its job is dropped.
func MarkExportFailed(ctx context.Context, jobPayload ExportJobPayload, app *ExportConsumerContext, cause error) {
	if jobPayload.ExportID == "" {
		app.Logger.Errorf("Failed to finalize document %s: %v", jobPayload.DocumentID, cause)
		return
	}

	msg := "export failed"
	if cause != nil {
		msg = cause.Error()
	}
	if err := app.Repository.DocumentExport.MarkResult(ctx, nil, jobPayload.ExportID, model.ExportStatusFailed, "", msg); err != nil {
		app.Logger.Errorf("Failed to mark export %s failed: %v", jobPayload.ExportID, err)
	}
}
