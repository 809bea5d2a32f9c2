package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/credential"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type fakeUploader struct {
	cred     Credential
	fileName string
	body     []byte
	err      error
}

func (f *fakeUploader) Upload(_ context.Context, cred Credential, fileName string, body []byte) (string, error) {
	f.cred = cred
	f.fileName = fileName
	f.body = body
	if f.err != nil {
		return "", f.err
	}
	return "remote-" + fileName, nil
}

func newTestCipher(t *testing.T) *credential.Cipher {
	t.Helper()
	c, err := credential.NewCipher(config.CryptoConfig{MASTER_KEY: "test-master-key"})
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}
	return c
}

func seal(t *testing.T, c *credential.Cipher, plaintext string, scope credential.KeyScope) credential.EncryptedCredential {
	t.Helper()
	ec, err := c.Seal(plaintext, scope)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	return ec
}

func TestExporterDecryptsForOwningUser(t *testing.T) {
	c := newTestCipher(t)
	up := &fakeUploader{}
	e := NewExporter(c, zap.NewNop().Sugar(), map[credential.Provider]Uploader{credential.ProviderDropbox: up})

	refresh := seal(t, c, "refresh-1", credential.UserScope("user-1"))
	id, err := e.Export(context.Background(), ExportRequest{
		UserID:            "user-1",
		Provider:          credential.ProviderDropbox,
		Credential:        seal(t, c, "access-1", credential.UserScope("user-1")),
		RefreshCredential: &refresh,
		FileName:          "lease.pdf",
		Body:              []byte("%PDF-1.7"),
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if id != "remote-lease.pdf" {
		t.Errorf("remote id = %q", id)
	}
	if up.cred.AccessToken != "access-1" || up.cred.RefreshToken != "refresh-1" {
		t.Errorf("uploader got %+v", up.cred)
	}
}

func TestExporterRejectsForeignCredentials(t *testing.T) {
	c := newTestCipher(t)
	up := &fakeUploader{}
	e := NewExporter(c, zap.NewNop().Sugar(), map[credential.Provider]Uploader{credential.ProviderS3: up})

	tests := []struct {
		name string
		req  ExportRequest
	}{
		{
			name: "other user's blob",
			req: ExportRequest{
				UserID:     "user-2",
				Provider:   credential.ProviderS3,
				Credential: seal(t, c, "secret", credential.UserScope("user-1")),
			},
		},
		{
			name: "recorded scope is ignored",
			req: ExportRequest{
				UserID:   "user-2",
				Provider: credential.ProviderS3,
				Credential: credential.EncryptedCredential{
					Blob:  seal(t, c, "secret", credential.UserScope("user-1")).Blob,
					Scope: credential.UserScope("user-1"),
				},
			},
		},
		{
			name: "global scope blob",
			req: ExportRequest{
				UserID:     "user-1",
				Provider:   credential.ProviderS3,
				Credential: seal(t, c, "secret", credential.GlobalScope()),
			},
		},
		{
			name: "missing user",
			req: ExportRequest{
				Provider:   credential.ProviderS3,
				Credential: seal(t, c, "secret", credential.UserScope("user-1")),
			},
		},
		{
			name: "garbage",
			req: ExportRequest{
				UserID:     "user-1",
				Provider:   credential.ProviderS3,
				Credential: credential.EncryptedCredential{Blob: "zz:zz"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up.fileName = ""
			if _, err := e.Export(context.Background(), tt.req); !errors.Is(err, ErrStorageCredentialInvalid) {
				t.Errorf("Export() error = %v, want ErrStorageCredentialInvalid", err)
			}
			if up.fileName != "" {
				t.Errorf("uploader was called")
			}
		})
	}
}

func TestExporterUnsupportedProvider(t *testing.T) {
	e := NewExporter(newTestCipher(t), zap.NewNop().Sugar(), nil)
	if _, err := e.Export(context.Background(), ExportRequest{UserID: "u", Provider: credential.ProviderGoogleDrive}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("Export() error = %v, want ErrUnsupportedProvider", err)
	}
}

func TestNewDefaultExporterCoversEveryProvider(t *testing.T) {
	e, err := NewDefaultExporter(newTestCipher(t), config.StorageConfig{S3Region: "eu-west-1"}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewDefaultExporter() error = %v", err)
	}
	for _, p := range credential.AllProviders() {
		if _, ok := e.uploaders[p]; !ok {
			t.Errorf("no uploader for %s", p)
		}
	}
}

func TestDropboxUploader(t *testing.T) {
	var gotArg dropboxUploadArg
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &gotArg); err != nil {
			t.Errorf("Dropbox-API-Arg: %v", err)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"id:abc","name":"lease.pdf"}`))
	}))
	defer srv.Close()

	du := NewDropboxUploader(&oauth2.Config{})
	du.uploadURL = srv.URL

	id, err := du.Upload(context.Background(), Credential{AccessToken: "tok"}, "../../lease.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if id != "id:abc" {
		t.Errorf("id = %q", id)
	}
	if gotArg.Path != "/AutoSign/lease.pdf" || gotArg.Mode != "add" || !gotArg.Autorename {
		t.Errorf("arg = %+v", gotArg)
	}
	if gotBody != "%PDF" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestDropboxUploaderSurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error_summary":"invalid_access_token/"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	du := NewDropboxUploader(nil)
	du.uploadURL = srv.URL

	_, err := du.Upload(context.Background(), Credential{AccessToken: "tok"}, "lease.pdf", nil)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("Upload() error = %v, want status 401", err)
	}
}

func TestDriveUploader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/related" {
			t.Errorf("content type = %q, %v", r.Header.Get("Content-Type"), err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		mr := multipart.NewReader(r.Body, params["boundary"])
		meta, err := mr.NextPart()
		if err != nil {
			t.Errorf("metadata part: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var m map[string]string
		if err := json.NewDecoder(meta).Decode(&m); err != nil || m["name"] != "lease.pdf" {
			t.Errorf("metadata = %v, %v", m, err)
		}
		file, err := mr.NextPart()
		if err != nil {
			t.Errorf("file part: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(file)
		if string(b) != "%PDF" || file.Header.Get("Content-Type") != "application/pdf" {
			t.Errorf("file part = %q %q", b, file.Header.Get("Content-Type"))
		}

		_, _ = w.Write([]byte(`{"id":"drive-1"}`))
	}))
	defer srv.Close()

	du := NewDriveUploader(&oauth2.Config{})
	du.uploadURL = srv.URL

	id, err := du.Upload(context.Background(), Credential{AccessToken: "tok"}, "lease.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if id != "drive-1" {
		t.Errorf("id = %q", id)
	}
}

func TestS3Uploader(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	raw, err := S3Credential{
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		Bucket:          "exports",
		Prefix:          "/signed/",
		Endpoint:        srv.URL,
	}.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	key, err := NewS3Uploader("us-east-1").Upload(context.Background(), Credential{AccessToken: raw}, "lease.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if key != "signed/lease.pdf" {
		t.Errorf("key = %q", key)
	}
	if gotPath != "/exports/signed/lease.pdf" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKID/") {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestParseS3Credential(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"complete", `{"accessKeyId":"a","secretAccessKey":"s","bucket":"b"}`, true},
		{"missing bucket", `{"accessKeyId":"a","secretAccessKey":"s"}`, false},
		{"missing secret", `{"accessKeyId":"a","bucket":"b"}`, false},
		{"not json", `a:s:b`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseS3Credential(tt.raw)
			if tt.ok && err != nil {
				t.Errorf("ParseS3Credential() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrStorageCredentialInvalid) {
				t.Errorf("ParseS3Credential() error = %v, want ErrStorageCredentialInvalid", err)
			}
		})
	}
}
