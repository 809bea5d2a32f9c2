package controller

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/SeakMengs/AutoSign/internal/credential"
	"github.com/SeakMengs/AutoSign/internal/export"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/util"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const storageStateTTL = 10 * time.Minute

var errInvalidStorageState = errors.New("storage connect state is invalid or has expired")

type StorageController struct {
	*baseController
}

type storageConnectionResponse struct {
	Provider     string     `json:"provider"`
	DisplayName  string     `json:"displayName"`
	Connected    bool       `json:"connected"`
	AccountLabel string     `json:"accountLabel,omitempty"`
	TokenExpiry  *time.Time `json:"tokenExpiry,omitempty"`
	ConnectedAt  *time.Time `json:"connectedAt,omitempty"`
}

// storageState travels through the provider's consent screen. It is encrypted
// under the global key so it cannot be forged or read by the browser.
type storageState struct {
	UserID    string
	Provider  credential.Provider
	ExpiresAt time.Time
}

func (s storageState) encode() string {
	return strings.Join([]string{s.UserID, s.Provider.String(), strconv.FormatInt(s.ExpiresAt.Unix(), 10)}, "|")
}

func decodeStorageState(raw string, now time.Time) (storageState, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 || parts[0] == "" {
		return storageState{}, errInvalidStorageState
	}

	provider, err := credential.ParseProvider(parts[1])
	if err != nil {
		return storageState{}, errInvalidStorageState
	}

	unix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return storageState{}, errInvalidStorageState
	}

	state := storageState{UserID: parts[0], Provider: provider, ExpiresAt: time.Unix(unix, 0)}
	if !now.Before(state.ExpiresAt) {
		return storageState{}, errInvalidStorageState
	}

	return state, nil
}

func (sc StorageController) providerSpec(ctx *gin.Context) (credential.ProviderSpec, bool) {
	provider, err := credential.ParseProvider(ctx.Param("provider"))
	if err != nil {
		util.ResponseFailed(ctx, http.StatusNotFound, "Unknown storage provider", util.GenerateErrorMessages(err, "provider"), nil)
		return credential.ProviderSpec{}, false
	}

	spec, err := credential.Spec(provider, sc.app.Config.Storage)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusNotFound, "Unknown storage provider", util.GenerateErrorMessages(err, "provider"), nil)
		return credential.ProviderSpec{}, false
	}

	return spec, true
}

func (sc StorageController) ListConnections(ctx *gin.Context) {
	user, err := sc.getAuthUser(ctx)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusUnauthorized, "", util.GenerateErrorMessages(err), nil)
		return
	}

	conns, err := sc.app.Repository.StorageConnection.ListByUser(ctx, nil, user.ID)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusInternalServerError, "Failed to get storage connections", util.GenerateErrorMessages(err), nil)
		return
	}

	byProvider := make(map[string]model.StorageConnection, len(conns))
	for _, c := range conns {
		byProvider[c.Provider] = c
	}

	connections := make([]storageConnectionResponse, 0, len(credential.AllProviders()))
	for _, p := range credential.AllProviders() {
		spec, err := credential.Spec(p, sc.app.Config.Storage)
		if err != nil {
			continue
		}

		resp := storageConnectionResponse{Provider: p.String(), DisplayName: spec.DisplayName}
		if c, ok := byProvider[p.String()]; ok {
			resp.Connected = true
			resp.AccountLabel = c.AccountLabel
			resp.TokenExpiry = c.TokenExpiry
			resp.ConnectedAt = c.UpdatedAt
		}
		connections = append(connections, resp)
	}

	util.ResponseSuccess(ctx, gin.H{
		"connections": connections,
	})
}

// Connect returns the consent URL of an OAuth provider.
func (sc StorageController) Connect(ctx *gin.Context) {
	user, err := sc.getAuthUser(ctx)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusUnauthorized, "", util.GenerateErrorMessages(err), nil)
		return
	}

	spec, ok := sc.providerSpec(ctx)
	if !ok {
		return
	}
	if !spec.UsesOAuth() {
		util.ResponseFailed(ctx, http.StatusUnprocessableEntity, fmt.Sprintf("%s is connected with access keys", spec.DisplayName), util.GenerateErrorMessages(errors.New("provider does not use oauth"), "provider"), nil)
		return
	}

	state, err := sc.app.Cipher.Encrypt(storageState{
		UserID:    user.ID,
		Provider:  spec.Provider,
		ExpiresAt: time.Now().Add(storageStateTTL),
	}.encode(), credential.GlobalScope())
	if err != nil {
		sc.app.Logger.Errorf("Failed to encrypt storage state: %v", err)
		util.ResponseFailed(ctx, http.StatusInternalServerError, "", util.GenerateErrorMessages(errors.New("internal server error")), nil)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"url": spec.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce),
	})
}

func (sc StorageController) redirectToSettings(ctx *gin.Context, provider string, failure error) {
	query := url.Values{}
	query.Set("provider", provider)
	if failure != nil {
		query.Set("error", failure.Error())
	} else {
		query.Set("connected", "true")
	}

	target := strings.TrimSuffix(sc.app.Config.Signing.FRONTEND_URL, "/") + "/settings/storage?" + query.Encode()
	ctx.Redirect(http.StatusTemporaryRedirect, target)
	ctx.Abort()
}

// Callback is hit by the provider after consent. The user is identified by the
// encrypted state, there is no session on this request.
func (sc StorageController) Callback(ctx *gin.Context) {
	spec, ok := sc.providerSpec(ctx)
	if !ok {
		return
	}
	if !spec.UsesOAuth() {
		util.ResponseFailed(ctx, http.StatusNotFound, "Unknown storage provider", util.GenerateErrorMessages(credential.ErrUnknownProvider, "provider"), nil)
		return
	}

	if reason := ctx.Query("error"); reason != "" {
		sc.redirectToSettings(ctx, spec.Provider.String(), fmt.Errorf("authorization was not granted: %s", reason))
		return
	}

	rawState, err := sc.app.Cipher.Decrypt(ctx.Query("state"), credential.GlobalScope())
	if err != nil {
		sc.redirectToSettings(ctx, spec.Provider.String(), errInvalidStorageState)
		return
	}
	state, err := decodeStorageState(rawState, time.Now())
	if err != nil || state.Provider != spec.Provider {
		sc.redirectToSettings(ctx, spec.Provider.String(), errInvalidStorageState)
		return
	}

	token, err := spec.OAuth.Exchange(ctx, ctx.Query("code"))
	if err != nil {
		sc.app.Logger.Errorf("Failed to exchange %s code for user %s: %v", spec.Provider, state.UserID, err)
		sc.redirectToSettings(ctx, spec.Provider.String(), errors.New("failed to complete authorization"))
		return
	}

	conn := model.StorageConnection{
		UserID:       state.UserID,
		Provider:     spec.Provider.String(),
		AccountLabel: spec.DisplayName,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		conn.TokenExpiry = &expiry
	}
	if err := sc.sealInto(&conn, token.AccessToken, token.RefreshToken); err != nil {
		sc.app.Logger.Errorf("Failed to encrypt %s tokens for user %s: %v", spec.Provider, state.UserID, err)
		sc.redirectToSettings(ctx, spec.Provider.String(), errors.New("failed to store connection"))
		return
	}

	if _, err := sc.app.Repository.StorageConnection.CreateOrUpdateByUserAndProvider(ctx, nil, conn); err != nil {
		sc.app.Logger.Errorf("Failed to save %s connection for user %s: %v", spec.Provider, state.UserID, err)
		sc.redirectToSettings(ctx, spec.Provider.String(), errors.New("failed to store connection"))
		return
	}

	sc.redirectToSettings(ctx, spec.Provider.String(), nil)
}

// sealInto encrypts tokens under the owner's key. An empty refresh token stays empty.
func (sc StorageController) sealInto(conn *model.StorageConnection, accessToken, refreshToken string) error {
	scope := credential.UserScope(conn.UserID)

	access, err := sc.app.Cipher.Seal(accessToken, scope)
	if err != nil {
		return err
	}
	conn.EncryptedAccessToken = access.Blob
	conn.KeyScope = access.Scope.String()

	if refreshToken != "" {
		refresh, err := sc.app.Cipher.Seal(refreshToken, scope)
		if err != nil {
			return err
		}
		conn.EncryptedRefreshToken = refresh.Blob
	}

	return nil
}

func (sc StorageController) ConnectS3(ctx *gin.Context) {
	user, err := sc.getAuthUser(ctx)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusUnauthorized, "", util.GenerateErrorMessages(err), nil)
		return
	}

	var body export.S3Credential
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "", util.GenerateErrorMessages(err), nil)
		return
	}

	encoded, err := body.Encode()
	if err != nil {
		util.ResponseFailed(ctx, http.StatusBadRequest, "", util.GenerateErrorMessages(err), nil)
		return
	}

	conn := model.StorageConnection{
		UserID:       user.ID,
		Provider:     credential.ProviderS3.String(),
		AccountLabel: body.Bucket,
	}
	if err := sc.sealInto(&conn, encoded, ""); err != nil {
		sc.app.Logger.Errorf("Failed to encrypt s3 credential for user %s: %v", user.ID, err)
		util.ResponseFailed(ctx, http.StatusInternalServerError, "", util.GenerateErrorMessages(errors.New("internal server error")), nil)
		return
	}

	saved, err := sc.app.Repository.StorageConnection.CreateOrUpdateByUserAndProvider(ctx, nil, conn)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusInternalServerError, "Failed to save storage connection", util.GenerateErrorMessages(err), nil)
		return
	}

	util.ResponseSuccess(ctx, gin.H{
		"connection": saved,
	})
}

func (sc StorageController) Disconnect(ctx *gin.Context) {
	user, err := sc.getAuthUser(ctx)
	if err != nil {
		util.ResponseFailed(ctx, http.StatusUnauthorized, "", util.GenerateErrorMessages(err), nil)
		return
	}

	spec, ok := sc.providerSpec(ctx)
	if !ok {
		return
	}

	if err := sc.app.Repository.StorageConnection.Delete(ctx, nil, user.ID, spec.Provider.String()); err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			util.ResponseFailed(ctx, http.StatusNotFound, "Storage is not connected", util.GenerateErrorMessages(err, "provider"), nil)
			return
		}
		util.ResponseFailed(ctx, http.StatusInternalServerError, "Failed to disconnect storage", util.GenerateErrorMessages(err), nil)
		return
	}

	util.ResponseSuccess(ctx, nil)
}
