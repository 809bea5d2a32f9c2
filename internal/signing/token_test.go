package signing

import (
	"errors"
	"testing"
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
)

func TestNewTokenShape(t *testing.T) {
	f := newFixture(t)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		token, err := f.engine.Tokens().NewToken()
		if err != nil {
			t.Fatalf("NewToken() error = %v", err)
		}
		if !wellFormed(token) {
			t.Fatalf("token %q is not %d url-safe characters", token, TokenLength)
		}
		if seen[token] {
			t.Fatalf("token %s issued twice", token)
		}
		seen[token] = true
	}
}

func TestMalformedTokensAreRejected(t *testing.T) {
	f := newFixture(t)
	doc := f.sentDocument(true)
	valid := f.signer(doc, "a@example.com").AccessToken

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"truncated", valid[:TokenLength-1]},
		{"extended", valid + "a"},
		{"path traversal", "../" + valid[3:]},
		{"escaped", "%2F" + valid[3:]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := f.engine.Tokens().ResolveSigner(f.ctx, nil, tt.token); !errors.Is(err, ErrInvalidOrExpiredToken) {
				t.Errorf("ResolveSigner(%q) error = %v, want ErrInvalidOrExpiredToken", tt.token, err)
			}
			if _, err := f.engine.Tokens().ValidateSession(f.ctx, nil, tt.token); !errors.Is(err, ErrInvalidOrExpiredToken) {
				t.Errorf("ValidateSession(%q) error = %v, want ErrInvalidOrExpiredToken", tt.token, err)
			}
		})
	}
}

func TestDocumentAndSignerTokensAreDistinct(t *testing.T) {
	f := newFixture(t)
	doc := f.sentDocument(true)

	tokens := map[string]bool{doc.SigningToken: true}
	for _, s := range f.document(doc.ID).Signers {
		if tokens[s.AccessToken] {
			t.Errorf("token %s reused", s.AccessToken)
		}
		tokens[s.AccessToken] = true
	}

	// a signer token is not a document token and the other way round
	if _, err := f.engine.Tokens().ResolveDocument(f.ctx, nil, f.signer(doc, "a@example.com").AccessToken); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("ResolveDocument() with signer token error = %v", err)
	}
	if _, _, err := f.engine.Tokens().ResolveSigner(f.ctx, nil, doc.SigningToken); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Errorf("ResolveSigner() with document token error = %v", err)
	}
}

func TestResolveSignerOnTerminalDocument(t *testing.T) {
	f := newFixture(t)
	doc := f.sentDocument(true)
	a := f.signer(doc, "a@example.com")

	if _, err := f.engine.Decline(f.ctx, a.AccessToken, "", signerMeta()); err != nil {
		t.Fatalf("Decline() error = %v", err)
	}

	s, d, err := f.engine.Tokens().ResolveSigner(f.ctx, nil, a.AccessToken)
	if err != nil {
		t.Fatalf("ResolveSigner() error = %v", err)
	}
	if s.ID != a.ID || d.Status != constant.DocumentStatusDeclined {
		t.Errorf("resolved %s on %s document", s.ID, d.Status)
	}
}

func TestSweepExpiredSessions(t *testing.T) {
	f := newFixture(t)
	doc := f.sentDocument(false)
	a := f.signer(doc, "a@example.com")
	b := f.signer(doc, "b@example.com")

	old, err := f.engine.CreateSession(f.ctx, a.AccessToken, signerMeta())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	f.clock.Advance(testSessionTTL - time.Minute)
	fresh, err := f.engine.CreateSession(f.ctx, b.AccessToken, signerMeta())
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	f.clock.Advance(2 * time.Minute)

	n, err := f.engine.Tokens().SweepExpiredSessions(f.ctx)
	if err != nil {
		t.Fatalf("SweepExpiredSessions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d sessions, want 1", n)
	}

	stored, err := f.repo.SignerSession.GetByToken(f.ctx, nil, old.Token)
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if stored.Status != constant.SignerSessionStatusExpired {
		t.Errorf("old session status = %s, want expired", stored.Status)
	}

	if _, err := f.engine.ClaimSession(f.ctx, fresh.Token, RequestMeta{}); err != nil {
		t.Errorf("ClaimSession() on fresh session error = %v", err)
	}

	// nothing left to sweep
	if n, err := f.engine.Tokens().SweepExpiredSessions(f.ctx); err != nil || n != 0 {
		t.Errorf("second sweep = %d, %v; want 0", n, err)
	}
}
