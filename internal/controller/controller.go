package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	appcontext "github.com/SeakMengs/AutoSign/internal/app_context"
	"github.com/SeakMengs/AutoSign/internal/auth"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/credential"
	"github.com/SeakMengs/AutoSign/internal/signing"
	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const presignedURLExpiry = 15 * time.Minute

type baseController struct {
	app *appcontext.Application
}

type Controller struct {
	Index    *IndexController
	Auth     *AuthController
	OAuth    *OAuthController
	Template *TemplateController
	Document *DocumentController
	Signing  *SigningController
	Storage  *StorageController
}

func newBaseController(app *appcontext.Application) *baseController {
	return &baseController{app: app}
}

func NewController(app *appcontext.Application) *Controller {
	bc := newBaseController(app)

	googleOAuthConfig := &oauth2.Config{
		ClientID:     app.Config.Auth.GoogleOAuth.ClientID,
		ClientSecret: app.Config.Auth.GoogleOAuth.ClientSecret,
		RedirectURL:  app.Config.Auth.GoogleOAuth.RedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}

	return &Controller{
		Index:    &IndexController{baseController: bc},
		Auth:     &AuthController{baseController: bc},
		OAuth:    &OAuthController{baseController: bc, googleOAuthConfig: googleOAuthConfig},
		Template: &TemplateController{baseController: bc},
		Document: &DocumentController{baseController: bc},
		Signing:  &SigningController{baseController: bc},
		Storage:  &StorageController{baseController: bc},
	}
}

func (b *baseController) getAuthUser(ctx *gin.Context) (*auth.JWTPayload, error) {
	user, exists := ctx.Get(constant.CTX_AUTH_USER)
	if !exists {
		return nil, errors.New("user not found in context")
	}

	jsonUser, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}

	var authUser *auth.JWTPayload
	err = json.Unmarshal(jsonUser, &authUser)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return authUser, nil
}

func requestMeta(ctx *gin.Context, actorID string) signing.RequestMeta {
	return signing.RequestMeta{
		IP:        ctx.ClientIP(),
		UserAgent: ctx.Request.UserAgent(),
		ActorID:   actorID,
	}
}

// requireDocumentOwner answers 404 for documents the user does not own so their
// existence is not revealed. It reports whether the request may continue.
func (b *baseController) requireDocumentOwner(ctx *gin.Context, documentID string) (*auth.JWTPayload, bool) {
	user, err := b.getAuthUser(ctx)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusUnauthorized, "", util.GenerateErrorMessages(err), nil)
		return nil, false
	}

	role, _, err := b.app.Repository.Document.GetRoleOfDocument(ctx, nil, documentID, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.ResponseFailed(ctx, http.StatusNotFound, "Document not found", util.GenerateErrorMessages(signing.ErrDocumentNotFound, "documentId"), nil)
			return nil, false
		}
		b.app.Logger.Errorf("Failed to get role of document %s: %v", documentID, err)
		util.ResponseFailed(ctx, http.StatusInternalServerError, "", util.GenerateErrorMessages(err), nil)
		return nil, false
	}

	if role != constant.DocumentRoleOwner {
		util.ResponseFailed(ctx, http.StatusNotFound, "Document not found", util.GenerateErrorMessages(signing.ErrDocumentNotFound, "documentId"), nil)
		return nil, false
	}

	return user, true
}

// workflowErrorStatus maps signing errors to HTTP statuses. Unknown errors are 500.
func workflowErrorStatus(err error) int {
	switch {
	case errors.Is(err, signing.ErrInvalidOrExpiredToken),
		errors.Is(err, signing.ErrDocumentNotFound),
		errors.Is(err, signing.ErrTemplateNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, signing.ErrOutOfSequence),
		errors.Is(err, signing.ErrSpotNotAssigned):
		return http.StatusForbidden
	case errors.Is(err, signing.ErrWorkflowTerminated):
		return http.StatusGone
	case errors.Is(err, signing.ErrConcurrentModification),
		errors.Is(err, signing.ErrInvalidTransition),
		errors.Is(err, signing.ErrAlreadySigned),
		errors.Is(err, signing.ErrDocumentHasSignatures),
		errors.Is(err, signing.ErrDuplicateSigner),
		errors.Is(err, signing.ErrDuplicateRole),
		errors.Is(err, signing.ErrStorageNotConnected):
		return http.StatusConflict
	case errors.Is(err, signing.ErrIncompleteFields),
		errors.Is(err, signing.ErrEmptyAsset),
		errors.Is(err, signing.ErrNoSigners),
		errors.Is(err, signing.ErrNoSpots),
		errors.Is(err, signing.ErrUnassignedSpots),
		errors.Is(err, signing.ErrInvalidSigner),
		errors.Is(err, signing.ErrInvalidDocument),
		errors.Is(err, credential.ErrUnknownProvider):
		return http.StatusUnprocessableEntity
	case errors.Is(err, signing.ErrAuditChainBroken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondWorkflowError hides internal failures behind a generic message and logs them.
func (b *baseController) respondWorkflowError(ctx *gin.Context, message string, err error) {
	status := workflowErrorStatus(err)
	if status == http.StatusInternalServerError {
		b.app.Logger.Errorf("%s: %v", message, err)
		util.ResponseFailed(ctx, status, message, util.GenerateErrorMessages(errors.New("internal server error")), nil)
		return
	}

	util.ResponseFailed(ctx, status, message, util.GenerateErrorMessages(err), nil)
}
