package signing

import (
	"errors"
	"testing"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"gorm.io/gorm"
)

// bumpSignersBeforeUpdate simulates another request committing between our read
// and our conditional write: the first signer update of the document sees a
// version that has already moved on.
func bumpSignersBeforeUpdate(t *testing.T, db *gorm.DB, documentID string) {
	t.Helper()

	armed := true
	err := db.Callback().Update().Before("gorm:update").Register("test:bump_signer_version", func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != "signers" {
			return
		}
		armed = false
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE signers SET version = version + 1 WHERE document_id = ?", documentID)
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Callback().Update().Remove("test:bump_signer_version")
	})
}

func TestConcurrentSignIsRejectedAndRolledBack(t *testing.T) {
	f := newFixture(t)
	doc := f.sentDocument(true)
	a := f.signer(doc, "a@example.com")

	if _, err := f.engine.View(f.ctx, a.AccessToken, signerMeta()); err != nil {
		t.Fatalf("View() error = %v", err)
	}
	viewed := f.signer(doc, "a@example.com")
	eventsBefore, err := f.engine.GetAuditEvents(f.ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetAuditEvents() error = %v", err)
	}

	bumpSignersBeforeUpdate(t, f.db, doc.ID)

	if _, err := f.engine.Sign(f.ctx, a.AccessToken, SignInput{Assets: buyerAssets()}); !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("Sign() error = %v, want ErrConcurrentModification", err)
	}

	stored := f.signer(doc, "a@example.com")
	if stored.Status != constant.SignerStatusViewed || stored.Version != viewed.Version {
		t.Errorf("signer after rollback = %s v%d, want viewed v%d", stored.Status, stored.Version, viewed.Version)
	}
	eventsAfter, err := f.engine.GetAuditEvents(f.ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetAuditEvents() error = %v", err)
	}
	if len(eventsAfter) != len(eventsBefore) {
		t.Errorf("audit events = %d, want %d after rollback", len(eventsAfter), len(eventsBefore))
	}
	assets, err := f.repo.SignatureAsset.ListByDocument(f.ctx, nil, doc.ID)
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(assets) != 0 {
		t.Errorf("assets = %d, want 0 after rollback", len(assets))
	}

	// a retry reads fresh state and succeeds
	res, err := f.engine.Sign(f.ctx, a.AccessToken, SignInput{Assets: buyerAssets()})
	if err != nil {
		t.Fatalf("retried Sign() error = %v", err)
	}
	if res.Signer.Status != constant.SignerStatusSigned {
		t.Errorf("signer status = %s, want signed", res.Signer.Status)
	}
}
