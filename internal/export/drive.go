package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"golang.org/x/oauth2"
)

const driveUploadURL = "https://www.googleapis.com/upload/drive/v3/files?uploadType=multipart&fields=id"

type DriveUploader struct {
	oauth     *oauth2.Config
	uploadURL string
}

func NewDriveUploader(cfg *oauth2.Config) *DriveUploader {
	return &DriveUploader{oauth: cfg, uploadURL: driveUploadURL}
}

// Upload sends a multipart/related request: JSON metadata first, then the PDF.
func (du *DriveUploader) Upload(ctx context.Context, cred Credential, fileName string, body []byte) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return "", err
	}
	if err := json.NewEncoder(metaPart).Encode(map[string]string{
		"name":     fileName,
		"mimeType": "application/pdf",
	}); err != nil {
		return "", err
	}

	filePart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/pdf"}})
	if err != nil {
		return "", err
	}
	if _, err := filePart.Write(body); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, du.uploadURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	var out struct {
		ID string `json:"id"`
	}
	if err := doJSON(oauthClient(ctx, du.oauth, cred), req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("drive: response has no file id")
	}

	return out.ID, nil
}
