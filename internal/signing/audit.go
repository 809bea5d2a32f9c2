package signing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/util"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GenesisHash is the PrevHash of the first event of every document.
var GenesisHash = strings.Repeat("0", sha256.Size*2)

// RequestMeta is where a request came from, recorded on every audit event.
type RequestMeta struct {
	IP        string
	UserAgent string
	// Owner user id for owner actions, empty for signer actions.
	ActorID string
}

func (m RequestMeta) normalized() RequestMeta {
	if ip, ok := util.NormalizeIP(m.IP); ok {
		m.IP = ip
	}
	m.UserAgent = util.TruncateUserAgent(strings.TrimSpace(m.UserAgent))
	return m
}

type AuditEntry struct {
	DocumentID string
	Kind       constant.AuditEventKind
	Actor      string
	SignerID   *string
	Meta       RequestMeta
	Metadata   map[string]string
}

type AuditLog struct {
	repo   *repository.Repository
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewAuditLog(repo *repository.Repository, logger *zap.SugaredLogger, now func() time.Time) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{repo: repo, logger: logger, now: now}
}

// chainRecord is the hashed form of an event. Field order is fixed by the struct
// and metadata keys are sorted by encoding/json, so the bytes are canonical.
type chainRecord struct {
	DocumentID string            `json:"documentId"`
	Sequence   int64             `json:"sequence"`
	Kind       string            `json:"kind"`
	Actor      string            `json:"actor"`
	SignerID   string            `json:"signerId"`
	IP         string            `json:"ip"`
	UserAgent  string            `json:"userAgent"`
	Metadata   map[string]string `json:"metadata"`
	PrevHash   string            `json:"prevHash"`
	Timestamp  string            `json:"timestamp"`
}

func decodeMetadata(raw datatypes.JSON) (map[string]string, error) {
	metadata := map[string]string{}
	if len(raw) == 0 || string(raw) == "null" {
		return metadata, nil
	}
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func HashEvent(event model.AuditEvent) (string, error) {
	metadata, err := decodeMetadata(event.Metadata)
	if err != nil {
		return "", fmt.Errorf("decode audit metadata: %w", err)
	}

	signerID := ""
	if event.SignerID != nil {
		signerID = *event.SignerID
	}

	b, err := json.Marshal(chainRecord{
		DocumentID: event.DocumentID,
		Sequence:   event.Sequence,
		Kind:       string(event.Kind),
		Actor:      event.Actor,
		SignerID:   signerID,
		IP:         event.IP,
		UserAgent:  event.UserAgent,
		Metadata:   metadata,
		PrevHash:   event.PrevHash,
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Append must run in the same transaction as the transition it records. Two
// appends racing for the same sequence number collide on the unique index and
// the loser gets ErrConcurrentModification.
func (al *AuditLog) Append(ctx context.Context, tx *gorm.DB, entry AuditEntry) (*model.AuditEvent, error) {
	last, err := al.repo.AuditEvent.GetLast(ctx, tx, entry.DocumentID)
	if err != nil {
		return nil, err
	}

	sequence := int64(1)
	prevHash := GenesisHash
	if last != nil {
		sequence = last.Sequence + 1
		prevHash = last.Hash
	}

	if entry.Metadata == nil {
		entry.Metadata = map[string]string{}
	}
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return nil, err
	}

	meta := entry.Meta.normalized()
	event := model.AuditEvent{
		DocumentID: entry.DocumentID,
		Sequence:   sequence,
		Kind:       entry.Kind,
		Actor:      entry.Actor,
		SignerID:   entry.SignerID,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		Metadata:   datatypes.JSON(metadata),
		PrevHash:   prevHash,
		// postgres keeps microseconds, hash what will be read back
		Timestamp: al.now().UTC().Truncate(time.Microsecond),
	}

	event.Hash, err = HashEvent(event)
	if err != nil {
		return nil, err
	}

	created, err := al.repo.AuditEvent.Append(ctx, tx, &event)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	return created, nil
}

// GetAuditEvents returns the events of a document in recorded order.
func (al *AuditLog) GetAuditEvents(ctx context.Context, tx *gorm.DB, documentID string) ([]model.AuditEvent, error) {
	return al.repo.AuditEvent.ListByDocument(ctx, tx, documentID)
}

type ChainReport struct {
	DocumentID string `json:"documentId"`
	Events     int    `json:"events"`
	HeadHash   string `json:"headHash"`
}

// VerifyChain recomputes every hash and checks sequence continuity.
func (al *AuditLog) VerifyChain(ctx context.Context, documentID string) (*ChainReport, error) {
	events, err := al.GetAuditEvents(ctx, nil, documentID)
	if err != nil {
		return nil, err
	}

	return verifyEvents(documentID, events)
}

func verifyEvents(documentID string, events []model.AuditEvent) (*ChainReport, error) {
	prevHash := GenesisHash
	for i, event := range events {
		if event.Sequence != int64(i+1) {
			return nil, fmt.Errorf("%w: expected sequence %d, found %d", ErrAuditChainBroken, i+1, event.Sequence)
		}
		if event.PrevHash != prevHash {
			return nil, fmt.Errorf("%w: event %d does not link to its predecessor", ErrAuditChainBroken, event.Sequence)
		}
		hash, err := HashEvent(event)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrAuditChainBroken, event.Sequence, err)
		}
		if hash != event.Hash {
			return nil, fmt.Errorf("%w: event %d was altered", ErrAuditChainBroken, event.Sequence)
		}
		prevHash = event.Hash
	}

	return &ChainReport{
		DocumentID: documentID,
		Events:     len(events),
		HeadHash:   prevHash,
	}, nil
}
