package controller

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/signing"
	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/gin-gonic/gin"
)

const maxSignatureImageSize = 2 << 20

var signatureImageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

type SigningController struct {
	*baseController
}

type assetRequest struct {
	Content string `json:"content" binding:"required,strNotEmpty,max=2000"`
}

type signRequest struct {
	Assets map[string]assetRequest `json:"assets" binding:"omitempty,dive"`
}

type declineRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=1000"`
}

func (sc SigningController) ViewDocument(ctx *gin.Context) {
	view, err := sc.app.Engine.View(ctx, ctx.Param("token"), requestMeta(ctx, ""))
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to open document", err)
		return
	}

	template, err := sc.app.Repository.Template.GetByID(ctx, nil, view.Document.TemplateID)
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to open document", err)
		return
	}

	templateURL, err := template.TemplateFile.ToPresignedUrl(ctx, sc.app.S3, presignedURLExpiry)
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to open document", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"document":    view.Document,
		"signer":      view.Signer,
		"spots":       view.Spots,
		"assets":      view.Assets,
		"templateUrl": templateURL,
	})
}

// SaveAsset accepts either a JSON text value or a multipart image under "file".
func (sc SigningController) SaveAsset(ctx *gin.Context) {
	token := ctx.Param("token")
	spotKey := ctx.Param("spotKey")

	var in signing.AssetInput
	if strings.HasPrefix(ctx.ContentType(), "multipart/") {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			util.ResponseFailed(ctx, http.StatusBadRequest, "Signature image is required", util.GenerateErrorMessages(err, "file"), nil)
			return
		}

		file, ok := sc.storeSignatureImage(ctx, token, fileHeader)
		if !ok {
			return
		}
		in.FileID = &file.ID
		in.ContentHash = file.contentHash

		asset, err := sc.app.Engine.SaveAsset(ctx, token, spotKey, in)
		if err != nil {
			sc.discardFile(ctx, file.File)
			sc.respondWorkflowError(ctx, "Failed to save field", err)
			return
		}

		util.ResponseSuccess(ctx, gin.H{
			"asset": asset,
		})
		return
	}

	var body assetRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "", util.GenerateErrorMessages(err), nil)
		return
	}
	in.Content = body.Content

	asset, err := sc.app.Engine.SaveAsset(ctx, token, spotKey, in)
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to save field", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"asset": asset,
	})
}

type storedImage struct {
	*model.File
	contentHash string
}

func hashMultipartFile(fileHeader *multipart.FileHeader) (string, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// storeSignatureImage uploads a signer's image next to the document and records it.
func (sc SigningController) storeSignatureImage(ctx *gin.Context, token string, fileHeader *multipart.FileHeader) (*storedImage, bool) {
	contentType, ok := signatureImageExts[strings.ToLower(filepath.Ext(fileHeader.Filename))]
	if !ok {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Signature image must be a PNG or JPEG file", util.GenerateErrorMessages(errors.New("signature image must be a png or jpeg file"), "file"), nil)
		return nil, false
	}
	if fileHeader.Size > maxSignatureImageSize {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Signature image is too large", util.GenerateErrorMessages(errors.New("signature image must be at most 2MB"), "file"), nil)
		return nil, false
	}

	// resolve before uploading so invalid links never reach storage
	_, document, err := sc.app.Engine.Tokens().ResolveSigner(ctx, nil, token)
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to save field", err)
		return nil, false
	}
	if document.Status.IsTerminal() {
		sc.respondWorkflowError(ctx, "Failed to save field", signing.ErrWorkflowTerminated)
		return nil, false
	}

	hash, err := hashMultipartFile(fileHeader)
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to read signature image", err)
		return nil, false
	}

	info, err := util.UploadFileToS3ByFileHeader(ctx, fileHeader, &util.FileUploadOptions{
		DirectoryPath: util.GetSignatureAssetDirectoryPath(document.ID),
		UniquePrefix:  true,
		Bucket:        sc.app.Config.Minio.BUCKET,
		S3:            sc.app.S3,
	})
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to upload signature image", err)
		return nil, false
	}

	file := &model.File{
		FileName:       fileHeader.Filename,
		UniqueFileName: info.Key,
		BucketName:     info.Bucket,
		Size:           info.Size,
		ContentType:    contentType,
	}
	if _, err := sc.app.Repository.File.Create(ctx, nil, file); err != nil {
		if rmErr := file.Delete(ctx, sc.app.S3); rmErr != nil {
			sc.app.Logger.Errorf("Failed to remove orphaned signature image %s: %v", info.Key, rmErr)
		}
		sc.respondWorkflowError(ctx, "Failed to save signature image", err)
		return nil, false
	}

	return &storedImage{File: file, contentHash: hash}, true
}

func (sc SigningController) discardFile(ctx *gin.Context, file *model.File) {
	if err := sc.app.Repository.File.Delete(ctx, nil, *file); err != nil {
		sc.app.Logger.Errorf("Failed to delete file record %s: %v", file.ID, err)
	}
	if err := file.Delete(ctx, sc.app.S3); err != nil {
		sc.app.Logger.Errorf("Failed to remove object %s: %v", file.UniqueFileName, err)
	}
}

func (sc SigningController) Sign(ctx *gin.Context) {
	var body signRequest
	// an empty body signs with the fields saved beforehand
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&body); err != nil {
			util.ResponseFailed(ctx, http.StatusBadRequest, "", util.GenerateErrorMessages(err), nil)
			return
		}
	}

	assets := make(map[string]signing.AssetInput, len(body.Assets))
	for spotKey, a := range body.Assets {
		assets[spotKey] = signing.AssetInput{Content: a.Content}
	}

	result, err := sc.app.Engine.Sign(ctx, ctx.Param("token"), signing.SignInput{
		Assets: assets,
		Meta:   requestMeta(ctx, ""),
	})
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to sign document", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"document":  result.Document,
		"signer":    result.Signer,
		"completed": result.Completed,
		"replayed":  result.Replayed,
	})
}

func (sc SigningController) Decline(ctx *gin.Context) {
	var body declineRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&body); err != nil {
			util.ResponseFailed(ctx, http.StatusBadRequest, "", util.GenerateErrorMessages(err), nil)
			return
		}
	}

	document, err := sc.app.Engine.Decline(ctx, ctx.Param("token"), strings.TrimSpace(body.Reason), requestMeta(ctx, ""))
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to decline document", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"document": document,
	})
}

func (sc SigningController) CreateSession(ctx *gin.Context) {
	session, err := sc.app.Engine.CreateSession(ctx, ctx.Param("token"), requestMeta(ctx, ""))
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to create session", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"session":      session,
		"sessionToken": session.Token,
		"expiresAt":    session.IssuedAt.Add(sc.app.Config.Signing.SessionTTL),
	})
}

// ClaimSession trades a session token for the signer's own access token.
func (sc SigningController) ClaimSession(ctx *gin.Context) {
	signer, err := sc.app.Engine.ClaimSession(ctx, ctx.Param("sessionToken"), requestMeta(ctx, ""))
	if err != nil {
		sc.respondWorkflowError(ctx, "Failed to claim session", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"signer":      signer,
		"accessToken": signer.AccessToken,
	})
}
