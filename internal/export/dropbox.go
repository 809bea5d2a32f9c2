package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"

	"golang.org/x/oauth2"
)

const (
	dropboxUploadURL = "https://content.dropboxapi.com/2/files/upload"
	dropboxFolder    = "/AutoSign"
)

type DropboxUploader struct {
	oauth     *oauth2.Config
	uploadURL string
}

func NewDropboxUploader(cfg *oauth2.Config) *DropboxUploader {
	return &DropboxUploader{oauth: cfg, uploadURL: dropboxUploadURL}
}

type dropboxUploadArg struct {
	Path       string `json:"path"`
	Mode       string `json:"mode"`
	Autorename bool   `json:"autorename"`
	Mute       bool   `json:"mute"`
}

func (du *DropboxUploader) Upload(ctx context.Context, cred Credential, fileName string, body []byte) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	arg, err := json.Marshal(dropboxUploadArg{
		Path:       path.Join(dropboxFolder, path.Base("/"+fileName)),
		Mode:       "add",
		Autorename: true,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, du.uploadURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Dropbox-API-Arg", string(arg))

	var out struct {
		ID string `json:"id"`
	}
	if err := doJSON(oauthClient(ctx, du.oauth, cred), req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("dropbox: response has no file id")
	}

	return out.ID, nil
}
