package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/mailer"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/signing"
	"github.com/SeakMengs/AutoSign/pkg/autosign"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type published struct {
	queue QueueName
	body  []byte
}

type fakeBroker struct {
	messages []published
	err      error
}

func (b *fakeBroker) Publish(routingKey QueueName, body []byte) error {
	if b.err != nil {
		return b.err
	}
	b.messages = append(b.messages, published{queue: routingKey, body: body})
	return nil
}

type fakeMailer struct {
	status int
	err    error
	sent   []mailer.MailTemplateFile
}

func (m *fakeMailer) Send(templateFile mailer.MailTemplateFile, toEmail string, data any) (int, error) {
	m.sent = append(m.sent, templateFile)
	return m.status, m.err
}

func newTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return repository.NewRepository(db, zap.NewNop().Sugar(), nil, nil)
}

func seedDocument(t *testing.T, repo *repository.Repository, status constant.DocumentStatus) *model.Document {
	t.Helper()
	ctx := context.Background()

	template, err := repo.Template.Create(ctx, nil, &model.Template{
		Title:          "Lease",
		UserID:         "user-1",
		TemplateFileID: "file-1",
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	document, err := repo.Document.Create(ctx, nil, &model.Document{
		Title:        "Lease 2024",
		TemplateID:   template.ID,
		Status:       status,
		SigningToken: uuid.NewString(),
		Version:      1,
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return document
}

func TestDecideOutcome(t *testing.T) {
	failure := errors.New("boom")

	tests := []struct {
		name          string
		shouldRequeue bool
		err           error
		try           int
		want          jobOutcome
	}{
		{"success", false, nil, 0, outcomeAck},
		{"success ignores requeue flag", true, nil, 0, outcomeAck},
		{"retryable failure", true, failure, 0, outcomeRequeue},
		{"retryable failure below limit", true, failure, MAX_QUEUE_RETRY - 1, outcomeRequeue},
		{"retry limit reached", true, failure, MAX_QUEUE_RETRY, outcomeDrop},
		{"permanent failure", false, failure, 0, outcomeDrop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decideOutcome(tt.shouldRequeue, tt.err, tt.try); got != tt.want {
				t.Errorf("decideOutcome() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublisherNotify(t *testing.T) {
	broker := &fakeBroker{}
	p := NewPublisher(broker)
	signerID := "signer-1"

	err := p.Notify(context.Background(), signing.Notification{
		Kind:       signing.NotificationInvitation,
		DocumentID: "doc-1",
		SignerID:   &signerID,
		ToEmail:    "alice@example.com",
		ToName:     "Alice",
		Data:       map[string]string{"DocumentTitle": "Lease", "SigningURL": "https://app/sign/abc"},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(broker.messages) != 1 || broker.messages[0].queue != QueueMail {
		t.Fatalf("expected one message on %s, got %+v", QueueMail, broker.messages)
	}

	var payload MailJobPayload
	if err := json.Unmarshal(broker.messages[0].body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Template != "signing_invitation" || payload.ToEmail != "alice@example.com" || payload.Try != 0 {
		t.Errorf("unexpected payload %+v", payload)
	}
	if payload.SignerID == nil || *payload.SignerID != signerID {
		t.Errorf("signer id not carried: %v", payload.SignerID)
	}
	if payload.Data["SigningURL"] != "https://app/sign/abc" {
		t.Errorf("data not carried: %v", payload.Data)
	}
	if _, err := mailer.TemplateFor(payload.Template); err != nil {
		t.Errorf("published template has no mail template: %v", err)
	}
}

func TestPublisherNotifyWithoutRecipient(t *testing.T) {
	broker := &fakeBroker{}
	err := NewPublisher(broker).Notify(context.Background(), signing.Notification{Kind: signing.NotificationCompleted, DocumentID: "doc-1"})
	if err == nil {
		t.Fatal("expected an error for a notification without recipient")
	}
	if len(broker.messages) != 0 {
		t.Errorf("nothing should be published, got %d messages", len(broker.messages))
	}
}

func TestPublisherScheduleExport(t *testing.T) {
	broker := &fakeBroker{}
	if err := NewPublisher(broker).ScheduleExport(context.Background(), signing.ExportJob{DocumentID: "doc-1", ExportID: "exp-1"}); err != nil {
		t.Fatalf("ScheduleExport: %v", err)
	}

	if len(broker.messages) != 1 || broker.messages[0].queue != QueueExport {
		t.Fatalf("expected one message on %s, got %+v", QueueExport, broker.messages)
	}

	var payload ExportJobPayload
	if err := json.Unmarshal(broker.messages[0].body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.DocumentID != "doc-1" || payload.ExportID != "exp-1" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestPublisherBrokerError(t *testing.T) {
	broker := &fakeBroker{err: errors.New("connection closed")}
	if err := NewPublisher(broker).ScheduleExport(context.Background(), signing.ExportJob{DocumentID: "doc-1"}); err == nil {
		t.Fatal("expected the broker error to be returned")
	}
}

func TestSendMailJob(t *testing.T) {
	tests := []struct {
		name        string
		template    string
		mailer      *fakeMailer
		wantErr     bool
		wantRequeue bool
		wantStatus  constant.EmailStatus
		wantLogs    int
	}{
		{"delivered", "your_turn", &fakeMailer{status: http.StatusAccepted}, false, false, constant.EmailStatusSent, 1},
		{"provider error", "your_turn", &fakeMailer{err: errors.New("smtp down")}, true, true, constant.EmailStatusFailed, 1},
		{"rejected status", "document_completed", &fakeMailer{status: http.StatusUnauthorized}, true, true, constant.EmailStatusFailed, 1},
		{"unknown template", "welcome", &fakeMailer{status: http.StatusOK}, true, false, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepository(t)
			app := &MailConsumerContext{
				Config:     &config.Config{},
				Logger:     zap.NewNop().Sugar(),
				Repository: repo,
				Mailer:     tt.mailer,
			}
			signerID := "signer-1"

			requeue, err := SendMailJob(context.Background(), MailJobPayload{
				DocumentID: "doc-1",
				SignerID:   &signerID,
				Template:   tt.template,
				ToEmail:    "bob@example.com",
				Data:       map[string]string{"DocumentTitle": "Lease"},
			}, app)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SendMailJob() error = %v, wantErr %v", err, tt.wantErr)
			}
			if requeue != tt.wantRequeue {
				t.Errorf("shouldRequeue = %v, want %v", requeue, tt.wantRequeue)
			}

			logs, err := repo.EmailLog.ListByDocument(context.Background(), nil, "doc-1")
			if err != nil {
				t.Fatalf("list email logs: %v", err)
			}
			if len(logs) != tt.wantLogs {
				t.Fatalf("expected %d email logs, got %d", tt.wantLogs, len(logs))
			}
			if tt.wantLogs == 0 {
				if len(tt.mailer.sent) != 0 {
					t.Errorf("mailer should not be called for an unknown template")
				}
				return
			}
			if logs[0].Status != tt.wantStatus || logs[0].Template != tt.template {
				t.Errorf("unexpected email log %+v", logs[0])
			}
			if tt.wantStatus == constant.EmailStatusFailed && logs[0].Error == "" {
				t.Errorf("failed email log should carry the error")
			}
			if logs[0].SignerID == nil || *logs[0].SignerID != signerID {
				t.Errorf("email log signer id = %v", logs[0].SignerID)
			}
		})
	}
}

func TestFieldValuesFor(t *testing.T) {
	placement := model.Placement{Page: 2, X: 40, Y: 600, Width: 150, Height: 40}
	spots := []model.SignatureSpot{
		{Placement: placement, SpotKey: "buyer_signature", FieldType: constant.FieldTypeSignature, Role: "buyer"},
		{Placement: placement, SpotKey: "buyer_date", FieldType: constant.FieldTypeDate, Role: "buyer"},
	}
	assets := []model.SignatureAsset{
		{BaseModel: model.BaseModel{ID: "asset-sig"}, SpotKey: "buyer_signature"},
		{BaseModel: model.BaseModel{ID: "asset-date"}, SpotKey: "buyer_date", Content: "2024-03-01"},
	}

	fields, err := FieldValuesFor(spots, assets, map[string]string{"asset-sig": "/tmp/sig.png"})
	if err != nil {
		t.Fatalf("FieldValuesFor: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}

	if fields[0].Kind != autosign.FieldKindImage || fields[0].ImagePath != "/tmp/sig.png" {
		t.Errorf("signature field = %+v", fields[0])
	}
	if fields[1].Kind != autosign.FieldKindText || fields[1].Text != "2024-03-01" {
		t.Errorf("date field = %+v", fields[1])
	}
	for _, f := range fields {
		if f.Page != 2 || f.X != 40 || f.Y != 600 || f.Width != 150 || f.Height != 40 {
			t.Errorf("placement not carried on %s: %+v", f.Key, f)
		}
		if err := f.Validate(); err != nil {
			t.Errorf("field %s should be valid: %v", f.Key, err)
		}
	}

	if _, err := FieldValuesFor(spots, assets[:1], nil); err == nil {
		t.Error("expected an error when a spot has no asset")
	}
}

func TestVerificationURL(t *testing.T) {
	tests := []struct {
		frontend string
		want     string
	}{
		{"https://sign.example.com", "https://sign.example.com/verify/doc-1"},
		{"https://sign.example.com/", "https://sign.example.com/verify/doc-1"},
	}

	for _, tt := range tests {
		if got := VerificationURL(tt.frontend, "doc-1"); got != tt.want {
			t.Errorf("VerificationURL(%q) = %q, want %q", tt.frontend, got, tt.want)
		}
	}
}

func newExportContext(t *testing.T) (*ExportConsumerContext, *repository.Repository) {
	t.Helper()
	repo := newTestRepository(t)
	return &ExportConsumerContext{
		Config:     &config.Config{},
		Logger:     zap.NewNop().Sugar(),
		Repository: repo,
	}, repo
}

func TestFinalizeDocumentJobRejectsUnfinishedDocuments(t *testing.T) {
	app, repo := newExportContext(t)
	document := seedDocument(t, repo, constant.DocumentStatusPartiallySigned)

	requeue, err := FinalizeDocumentJob(context.Background(), ExportJobPayload{DocumentID: document.ID}, app)
	if !errors.Is(err, errDocumentNotCompleted) {
		t.Fatalf("expected errDocumentNotCompleted, got %v", err)
	}
	if requeue {
		t.Error("an unfinished document should not be retried")
	}

	requeue, err = FinalizeDocumentJob(context.Background(), ExportJobPayload{DocumentID: uuid.NewString()}, app)
	if err == nil || requeue {
		t.Errorf("unknown document: requeue=%v err=%v", requeue, err)
	}
}

func TestFinalizeDocumentJobSkipsFinishedExports(t *testing.T) {
	app, repo := newExportContext(t)
	ctx := context.Background()
	document := seedDocument(t, repo, constant.DocumentStatusCompleted)

	exp, err := repo.DocumentExport.Create(ctx, nil, &model.DocumentExport{
		DocumentID: document.ID,
		UserID:     "user-1",
		Provider:   "dropbox",
		Status:     model.ExportStatusUploaded,
	})
	if err != nil {
		t.Fatalf("create export: %v", err)
	}

	requeue, err := FinalizeDocumentJob(ctx, ExportJobPayload{DocumentID: document.ID, ExportID: exp.ID}, app)
	if err != nil || requeue {
		t.Fatalf("a finished export should be acknowledged, got requeue=%v err=%v", requeue, err)
	}

	other := seedDocument(t, repo, constant.DocumentStatusCompleted)
	if _, err := FinalizeDocumentJob(ctx, ExportJobPayload{DocumentID: other.ID, ExportID: exp.ID}, app); err == nil {
		t.Error("expected an error for an export of another document")
	}
}

func TestMarkExportFailed(t *testing.T) {
	app, repo := newExportContext(t)
	ctx := context.Background()
	document := seedDocument(t, repo, constant.DocumentStatusCompleted)

	exp, err := repo.DocumentExport.Create(ctx, nil, &model.DocumentExport{
		DocumentID: document.ID,
		UserID:     "user-1",
		Provider:   "s3",
		Status:     model.ExportStatusPending,
	})
	if err != nil {
		t.Fatalf("create export: %v", err)
	}

	MarkExportFailed(ctx, ExportJobPayload{DocumentID: document.ID, ExportID: exp.ID}, app, errors.New("access denied"))

	got, err := repo.DocumentExport.GetByID(ctx, nil, exp.ID)
	if err != nil {
		t.Fatalf("get export: %v", err)
	}
	if got.Status != model.ExportStatusFailed || got.Error != "access denied" {
		t.Errorf("unexpected export %+v", got)
	}

	// no export row: only logged
	MarkExportFailed(ctx, ExportJobPayload{DocumentID: document.ID}, app, errors.New("render failed"))
}
