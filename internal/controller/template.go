package controller

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/signing"
	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxTemplateFileSize = 20 << 20

var errTemplateInUse = errors.New("fields cannot be added once a document using the template has been sent")

type TemplateController struct {
	*baseController
}

type createTemplateRequest struct {
	Title string `form:"title" binding:"required,strNotEmpty,max=100"`
}

type addSpotRequest struct {
	model.Placement
	SpotKey   string             `json:"spotKey" binding:"required,strNotEmpty,max=100"`
	FieldType constant.FieldType `json:"fieldType" binding:"required,oneof=signature initials date text"`
	Role      string             `json:"role" binding:"required,strNotEmpty,max=100"`
}

func (tc TemplateController) CreateTemplate(ctx *gin.Context) {
	user, err := tc.getAuthUser(ctx)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusUnauthorized, "", util.GenerateErrorMessages(err), nil)
		return
	}

	var body createTemplateRequest
	if err := ctx.ShouldBind(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "", util.GenerateErrorMessages(err), nil)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Template file is required", util.GenerateErrorMessages(err, "file"), nil)
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Template must be a PDF file", util.GenerateErrorMessages(errors.New("template must be a pdf file"), "file"), nil)
		return
	}
	if fileHeader.Size > maxTemplateFileSize {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Template file is too large", util.GenerateErrorMessages(errors.New("template file must be at most 20MB"), "file"), nil)
		return
	}

	info, err := util.UploadFileToS3ByFileHeader(ctx, fileHeader, &util.FileUploadOptions{
		DirectoryPath: util.GetTemplateDirectoryPath(user.ID),
		UniquePrefix:  true,
		Bucket:        tc.app.Config.Minio.BUCKET,
		S3:            tc.app.S3,
	})
	if err != nil {
		tc.app.Logger.Errorf("Failed to upload template file: %v", err)
		util.ResponseFailed(ctx, http.StatusInternalServerError, "Failed to upload template file", util.GenerateErrorMessages(err), nil)
		return
	}

	file := &model.File{
		FileName:       fileHeader.Filename,
		UniqueFileName: info.Key,
		BucketName:     info.Bucket,
		Size:           info.Size,
		ContentType:    "application/pdf",
	}
	template := &model.Template{
		Title:  strings.TrimSpace(body.Title),
		UserID: user.ID,
	}

	err = tc.app.Repository.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := tc.app.Repository.File.Create(ctx, tx, file); err != nil {
			return err
		}
		template.TemplateFileID = file.ID
		_, err := tc.app.Repository.Template.Create(ctx, tx, template)
		return err
	})
	if err != nil {
		if rmErr := file.Delete(ctx, tc.app.S3); rmErr != nil {
			tc.app.Logger.Errorf("Failed to remove orphaned template file %s: %v", info.Key, rmErr)
		}
		tc.app.Logger.Errorf("Failed to create template: %v", err)
		util.ResponseFailed(ctx, http.StatusInternalServerError, "Failed to create template", util.GenerateErrorMessages(err), nil)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"template": template,
	})
}

// ownTemplate loads a template of the authenticated user, answering 404 otherwise.
func (tc TemplateController) ownTemplate(ctx *gin.Context) (*model.Template, bool) {
	user, err := tc.getAuthUser(ctx)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusUnauthorized, "", util.GenerateErrorMessages(err), nil)
		return nil, false
	}

	role, template, err := tc.app.Repository.Template.GetRoleOfTemplate(ctx, nil, ctx.Param("templateId"), user.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		tc.app.Logger.Errorf("Failed to get template: %v", err)
		util.ResponseFailed(ctx, http.StatusInternalServerError, "", util.GenerateErrorMessages(err), nil)
		return nil, false
	}
	if err != nil || role != constant.DocumentRoleOwner {
		util.ResponseFailed(ctx, http.StatusNotFound, "Template not found", util.GenerateErrorMessages(signing.ErrTemplateNotFound, "templateId"), nil)
		return nil, false
	}

	return template, true
}

func (tc TemplateController) GetTemplate(ctx *gin.Context) {
	template, ok := tc.ownTemplate(ctx)
	if !ok {
		return
	}

	templateURL, err := template.TemplateFile.ToPresignedUrl(ctx, tc.app.S3, presignedURLExpiry)
	if err != nil {
		tc.app.Logger.Errorf("Failed to presign template file %s: %v", template.TemplateFileID, err)
	}

	util.ResponseSuccess(ctx, gin.H{
		"template":    template,
		"templateUrl": templateURL,
	})
}

func (tc TemplateController) AddSpot(ctx *gin.Context) {
	template, ok := tc.ownTemplate(ctx)
	if !ok {
		return
	}

	var body addSpotRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "", util.GenerateErrorMessages(err), nil)
		return
	}

	var spot *model.SignatureSpot
	err := tc.app.Repository.DB.Transaction(func(tx *gorm.DB) error {
		// spots are frozen once a document using the template has been sent
		inFlight, err := tc.app.Repository.Document.CountInFlightByTemplate(ctx, tx, template.ID)
		if err != nil {
			return err
		}
		if inFlight > 0 {
			return errTemplateInUse
		}

		// Role is stored as given, signers are matched against it literally
		spot, err = tc.app.Repository.Template.AddSpot(ctx, tx, &model.SignatureSpot{
			Placement:  body.Placement,
			TemplateID: template.ID,
			SpotKey:    body.SpotKey,
			FieldType:  body.FieldType,
			Role:       body.Role,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, errTemplateInUse) {
			util.ResponseFailed(ctx, http.StatusConflict, "Template is used by sent documents", util.GenerateErrorMessages(err), nil)
			return
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			util.ResponseFailed(ctx, http.StatusConflict, "Spot key already used on this template", util.GenerateErrorMessages(err, "spotKey"), nil)
			return
		}
		tc.app.Logger.Errorf("Failed to add spot to template %s: %v", template.ID, err)
		util.ResponseFailed(ctx, http.StatusInternalServerError, "Failed to add spot", util.GenerateErrorMessages(err), nil)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"spot": spot,
	})
}
