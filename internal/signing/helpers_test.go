package signing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSessionTTL = 15 * time.Minute

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	// every reading moves forward so timestamps stay distinct
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *recordingNotifier) sentTo(kind NotificationKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var emails []string
	for _, n := range r.notifications {
		if n.Kind == kind {
			emails = append(emails, n.ToEmail)
		}
	}
	return emails
}

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []ExportJob
}

func (r *recordingScheduler) ScheduleExport(_ context.Context, job ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	repo     *repository.Repository
	engine   *Engine
	clock    *testClock
	notifier *recordingNotifier
	exports  *recordingScheduler
	owner    *model.User
	template *model.Template
}

func newTestDB(t *testing.T) *gorm.DB {
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
	// one connection keeps the in-memory database alive and serializes transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	log := zap.NewNop().Sugar()
	repo := repository.NewRepository(db, log, nil, nil)
	clock := newTestClock()
	notifier := &recordingNotifier{}
	exports := &recordingScheduler{}

	engine := NewEngine(repo, log, config.SigningConfig{
		FRONTEND_URL: "https://sign.example.com/",
		SessionTTL:   testSessionTTL,
	}, WithClock(clock.Now), WithNotifier(notifier), WithExportScheduler(exports))

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       db,
		repo:     repo,
		engine:   engine,
		clock:    clock,
		notifier: notifier,
		exports:  exports,
	}

	owner, err := repo.User.Create(f.ctx, nil, &model.User{Email: "owner@example.com", Name: "Owner"})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	f.owner = owner
	f.template = f.newTemplate(
		spot("buyer_signature", "buyer", constant.FieldTypeSignature),
		spot("buyer_date", "buyer", constant.FieldTypeDate),
		spot("seller_signature", "seller", constant.FieldTypeSignature),
	)

	return f
}

func spot(key, role string, fieldType constant.FieldType) model.SignatureSpot {
	return model.SignatureSpot{
		Placement: model.Placement{Page: 1, X: 10, Y: 10, Width: 120, Height: 40},
		SpotKey:   key,
		Role:      role,
		FieldType: fieldType,
	}
}

func (f *fixture) newTemplate(spots ...model.SignatureSpot) *model.Template {
	f.t.Helper()

	template, err := f.repo.Template.Create(f.ctx, nil, &model.Template{
		Title:          "Purchase agreement",
		UserID:         f.owner.ID,
		TemplateFileID: "file-" + uuid.NewString(),
		Spots:          spots,
	})
	if err != nil {
		f.t.Fatalf("create template: %v", err)
	}
	return template
}

// newDocument creates a draft with buyer a@ at index 0 and seller b@ at index 1.
func (f *fixture) newDocument(ordered bool, signers ...SignerInput) *model.Document {
	f.t.Helper()

	if len(signers) == 0 {
		signers = []SignerInput{
			{Email: "a@example.com", Name: "Alice", Role: "buyer", OrderIndex: 0},
			{Email: "b@example.com", Name: "Bob", Role: "seller", OrderIndex: 1},
		}
	}

	document, err := f.engine.CreateDocument(f.ctx, CreateDocumentInput{
		OwnerID:              &f.owner.ID,
		TemplateID:           f.template.ID,
		Title:                "Purchase of 12 Main St",
		SigningOrderEnforced: ordered,
		Signers:              signers,
		Meta:                 RequestMeta{IP: "198.51.100.1:5000", UserAgent: "owner-browser"},
	})
	if err != nil {
		f.t.Fatalf("CreateDocument() error = %v", err)
	}
	return document
}

func (f *fixture) sentDocument(ordered bool, signers ...SignerInput) *model.Document {
	f.t.Helper()

	document := f.newDocument(ordered, signers...)
	sent, err := f.engine.Send(f.ctx, document.ID, RequestMeta{IP: "198.51.100.1"})
	if err != nil {
		f.t.Fatalf("Send() error = %v", err)
	}
	return sent
}

func (f *fixture) signer(document *model.Document, email string) model.Signer {
	f.t.Helper()

	s, err := f.repo.Signer.GetByDocumentAndEmail(f.ctx, nil, document.ID, email)
	if err != nil {
		f.t.Fatalf("signer %s: %v", email, err)
	}
	return *s
}

func (f *fixture) document(id string) *model.Document {
	f.t.Helper()

	d, err := f.repo.Document.GetByID(f.ctx, nil, id)
	if err != nil {
		f.t.Fatalf("document %s: %v", id, err)
	}
	return d
}

func (f *fixture) countEvents(documentID string, kind constant.AuditEventKind) int64 {
	f.t.Helper()

	n, err := f.repo.AuditEvent.CountByKind(f.ctx, nil, documentID, kind)
	if err != nil {
		f.t.Fatalf("count %s: %v", kind, err)
	}
	return n
}

func signerMeta() RequestMeta {
	return RequestMeta{IP: "203.0.113.7:443", UserAgent: "Mozilla/5.0 (signer)"}
}

func buyerAssets() map[string]AssetInput {
	return map[string]AssetInput{
		"buyer_signature": {Content: "Alice A."},
		"buyer_date":      {Content: "2024-03-01"},
	}
}

func sellerAssets() map[string]AssetInput {
	return map[string]AssetInput{
		"seller_signature": {Content: "Bob B."},
	}
}
