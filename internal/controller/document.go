package controller

import (
	"net/http"
	"strings"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/credential"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/signing"
	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/gin-gonic/gin"
)

type DocumentController struct {
	*baseController
}

type signerRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Name       string `json:"name" binding:"omitempty,max=100"`
	Role       string `json:"role" binding:"required,strNotEmpty,max=100"`
	OrderIndex int    `json:"orderIndex" binding:"gte=0"`
}

func (sr signerRequest) toInput() signing.SignerInput {
	return signing.SignerInput{
		Email:      sr.Email,
		Name:       sr.Name,
		Role:       sr.Role,
		OrderIndex: sr.OrderIndex,
	}
}

type createDocumentRequest struct {
	TemplateID           string          `json:"templateId" binding:"required,strNotEmpty"`
	Title                string          `json:"title" binding:"required,strNotEmpty,max=100"`
	SigningOrderEnforced bool            `json:"signingOrderEnforced"`
	Signers              []signerRequest `json:"signers" binding:"omitempty,dive"`
}

type getDocumentsRequest struct {
	Page     uint                      `json:"page" form:"page" binding:"omitempty"`
	PageSize uint                      `json:"pageSize" form:"pageSize" binding:"omitempty"`
	Status   []constant.DocumentStatus `json:"status" form:"status" binding:"omitempty"`
}

type requestExportRequest struct {
	Provider string `json:"provider" binding:"required,oneof=google_drive dropbox s3"`
}

func (dc DocumentController) CreateDocument(ctx *gin.Context) {
	user, err := dc.getAuthUser(ctx)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusUnauthorized, "", util.GenerateErrorMessages(err), nil)
		return
	}

	var body createDocumentRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "", util.GenerateErrorMessages(err), nil)
		return
	}

	// Only templates of the caller may back a document
	role, _, err := dc.app.Repository.Template.GetRoleOfTemplate(ctx, nil, body.TemplateID, user.ID)
	if err != nil || role != constant.DocumentRoleOwner {
		util.ResponseFailed(ctx, http.StatusNotFound, "Template not found", util.GenerateErrorMessages(signing.ErrTemplateNotFound, "templateId"), nil)
		return
	}

	signers := make([]signing.SignerInput, 0, len(body.Signers))
	for _, s := range body.Signers {
		signers = append(signers, s.toInput())
	}

	document, err := dc.app.Engine.CreateDocument(ctx, signing.CreateDocumentInput{
		OwnerID:              &user.ID,
		TemplateID:           body.TemplateID,
		Title:                strings.TrimSpace(body.Title),
		SigningOrderEnforced: body.SigningOrderEnforced,
		Signers:              signers,
		Meta:                 requestMeta(ctx, user.ID),
	})
	if err != nil {
		dc.respondWorkflowError(ctx, "Failed to create document", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"document": document,
	})
}

func (dc DocumentController) GetOwnDocumentList(ctx *gin.Context) {
	var params getDocumentsRequest

	user, err := dc.getAuthUser(ctx)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusUnauthorized, "Unauthorized", util.GenerateErrorMessages(err), nil)
		return
	}

	if err := ctx.ShouldBindQuery(&params); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "Invalid request", util.GenerateErrorMessages(err), nil)
		return
	}

	if params.Page == 0 {
		params.Page = constant.DefaultPage
	}
	if params.PageSize == 0 {
		params.PageSize = constant.DefaultPageSize
	}
	if params.PageSize > constant.MaxPageSize {
		params.PageSize = constant.MaxPageSize
	}

	documents, totalCount, err := dc.app.Repository.Document.ListForOwner(ctx, nil, user.ID, params.Status, params.Page, params.PageSize)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusInternalServerError, "Failed to get document list", util.GenerateErrorMessages(err), nil)
		return
	}

	if len(documents) == 0 {
		documents = []model.Document{}
	}

	util.ResponseSuccess(ctx, gin.H{
		"total":     totalCount,
		"documents": documents,
		"page":      params.Page,
		"pageSize":  params.PageSize,
		"totalPage": util.CalculateTotalPage(totalCount, params.PageSize),
		"status":    params.Status,
	})
}

func (dc DocumentController) GetDocument(ctx *gin.Context) {
	documentID := ctx.Param("documentId")
	if _, ok := dc.requireDocumentOwner(ctx, documentID); !ok {
		return
	}

	document, err := dc.app.Engine.GetDocument(ctx, documentID)
	if err != nil {
		dc.respondWorkflowError(ctx, "Failed to get document", err)
		return
	}

	exports, err := dc.app.Repository.DocumentExport.ListByDocument(ctx, nil, documentID)
	if err != nil {
		dc.respondWorkflowError(ctx, "Failed to get document exports", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"document": document,
		"exports":  exports,
	})
}

// GetFinishedFile hands out a short lived download link of the stamped PDF.
func (dc DocumentController) GetFinishedFile(ctx *gin.Context) {
	documentID := ctx.Param("documentId")
	if _, ok := dc.requireDocumentOwner(ctx, documentID); !ok {
		return
	}

	document, err := dc.app.Engine.GetDocument(ctx, documentID)
	if err != nil {
		dc.respondWorkflowError(ctx, "Failed to get document", err)
		return
	}
	if document.FinishedFileID == nil {
		util.ResponseFailed(ctx, http.StatusNotFound, "Finished file is not ready yet", util.GenerateErrorMessages(signing.ErrDocumentNotFound, "documentId"), nil)
		return
	}

	file, err := dc.app.Repository.File.GetByID(ctx, nil, *document.FinishedFileID)
	if err != nil {
		dc.respondWorkflowError(ctx, "Failed to get finished file", err)
		return
	}

	url, err := file.ToPresignedUrl(ctx, dc.app.S3, presignedURLExpiry)
	if err != nil {
		dc.respondWorkflowError(ctx, "Failed to get finished file", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"file": file,
		"url":  url,
	})
}

func (dc DocumentController) AddSigner(ctx *gin.Context) {
	documentID := ctx.Param("documentId")
	user, ok := dc.requireDocumentOwner(ctx, documentID)
	if !ok {
		return
	}

	var body signerRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "", util.GenerateErrorMessages(err), nil)
		return
	}

	signer, err := dc.app.Engine.AddSigner(ctx, documentID, body.toInput(), requestMeta(ctx, user.ID))
	if err != nil {
		dc.respondWorkflowError(ctx, "Failed to add signer", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"signer": signer,
	})
}

func (dc DocumentController) SendDocument(ctx *gin.Context) {
	documentID := ctx.Param("documentId")
	user, ok := dc.requireDocumentOwner(ctx, documentID)
	if !ok {
		return
	}

	document, err := dc.app.Engine.Send(ctx, documentID, requestMeta(ctx, user.ID))
	if err != nil {
		dc.respondWorkflowError(ctx, "Failed to send document", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"document": document,
	})
}

func (dc DocumentController) GetAuditEvents(ctx *gin.Context) {
	documentID := ctx.Param("documentId")
	if _, ok := dc.requireDocumentOwner(ctx, documentID); !ok {
		return
	}

	events, err := dc.app.Engine.GetAuditEvents(ctx, documentID)
	if err != nil {
		dc.respondWorkflowError(ctx, "Failed to get audit trail", err)
		return
	}

	if len(events) == 0 {
		events = []model.AuditEvent{}
	}

	util.ResponseSuccess(ctx, gin.H{
		"events": events,
	})
}

func (dc DocumentController) VerifyAuditChain(ctx *gin.Context) {
	documentID := ctx.Param("documentId")
	if _, ok := dc.requireDocumentOwner(ctx, documentID); !ok {
		return
	}

	report, err := dc.app.Engine.VerifyAuditChain(ctx, documentID)
	if err != nil {
		dc.respondWorkflowError(ctx, "Audit trail verification failed", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"report": report,
	})
}

func (dc DocumentController) DeleteDocument(ctx *gin.Context) {
	documentID := ctx.Param("documentId")
	user, ok := dc.requireDocumentOwner(ctx, documentID)
	if !ok {
		return
	}

	if err := dc.app.Engine.SoftDeleteDocument(ctx, documentID, requestMeta(ctx, user.ID)); err != nil {
		dc.respondWorkflowError(ctx, "Failed to delete document", err)
		return
	}

	util.ResponseSuccess(ctx, nil)
}

func (dc DocumentController) RequestExport(ctx *gin.Context) {
	documentID := ctx.Param("documentId")
	user, ok := dc.requireDocumentOwner(ctx, documentID)
	if !ok {
		return
	}

	var body requestExportRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "", util.GenerateErrorMessages(err), nil)
		return
	}

	provider, err := credential.ParseProvider(body.Provider)
	if err != nil {
		dc.respondWorkflowError(ctx, "Unknown storage provider", err)
		return
	}

	export, err := dc.app.Engine.RequestExport(ctx, documentID, user.ID, provider, requestMeta(ctx, user.ID))
	if err != nil {
		dc.respondWorkflowError(ctx, "Failed to request export", err)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"export": export,
	})
}
