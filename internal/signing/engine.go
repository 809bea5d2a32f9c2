package signing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/credential"
	"github.com/SeakMengs/AutoSign/internal/metrics"
	"github.com/SeakMengs/AutoSign/internal/model"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxDeclineReasonLength = 1000

// Engine drives documents and signers through their state machines. Every
// transition is a conditional write on (status, version) and commits together
// with its audit event.
type Engine struct {
	repo        *repository.Repository
	logger      *zap.SugaredLogger
	tokens      *TokenIssuer
	audit       *AuditLog
	notifier    Notifier
	exports     ExportScheduler
	now         func() time.Time
	frontendURL string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

func WithExportScheduler(s ExportScheduler) Option {
	return func(e *Engine) {
		e.exports = s
	}
}

func NewEngine(repo *repository.Repository, logger *zap.SugaredLogger, cfg config.SigningConfig, opts ...Option) *Engine {
	e := &Engine{
		repo:        repo,
		logger:      logger,
		notifier:    noopNotifier{},
		exports:     noopExportScheduler{},
		now:         time.Now,
		frontendURL: strings.TrimRight(cfg.FRONTEND_URL, "/"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.tokens = NewTokenIssuer(repo, logger, cfg.SessionTTL, e.now)
	e.audit = NewAuditLog(repo, logger, e.now)
	return e
}

func (e *Engine) Tokens() *TokenIssuer {
	return e.tokens
}

type SignerInput struct {
	Email string
	Name  string
	// Matched literally against spot roles.
	Role       string
	OrderIndex int
}

type CreateDocumentInput struct {
	OwnerID              *string
	TemplateID           string
	Title                string
	SigningOrderEnforced bool
	Signers              []SignerInput
	Meta                 RequestMeta
}

type AssetInput struct {
	// Typed value, empty when FileID points at an uploaded image.
	Content string
	FileID  *string
	// Hash of the uploaded bytes. Computed from Content when empty.
	ContentHash string
}

func (a AssetInput) hash() string {
	if a.ContentHash != "" {
		return a.ContentHash
	}
	sum := sha256.Sum256([]byte(a.Content))
	return hex.EncodeToString(sum[:])
}

type SignInput struct {
	// Keyed by spot key. May be empty when every asset was saved beforehand.
	Assets map[string]AssetInput
	Meta   RequestMeta
}

type SignResult struct {
	Document  *model.Document
	Signer    *model.Signer
	Completed bool
	// True when the request repeated an earlier identical sign and changed nothing.
	Replayed bool
}

// SignerView is what a signer sees through their token: their own record, their
// fields and what they filled so far. Other signers are not included.
type SignerView struct {
	Document *model.Document
	Signer   *model.Signer
	Spots    []model.SignatureSpot
	Assets   []model.SignatureAsset
}

func (e *Engine) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := e.repo.DB.WithContext(ctx).Transaction(fn)
	if errors.Is(err, repository.ErrStaleRecord) {
		return ErrConcurrentModification
	}
	return err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOutOfSequence):
		return "out_of_sequence"
	case errors.Is(err, ErrIncompleteFields):
		return "incomplete_fields"
	case errors.Is(err, ErrWorkflowTerminated):
		return "terminated"
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return "invalid_token"
	case errors.Is(err, ErrConcurrentModification):
		return "conflict"
	default:
		return "error"
	}
}

func (e *Engine) record(operation string, err error) {
	metrics.WorkflowTransitionsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
	if err != nil {
		e.logger.Debugf("Signing operation %s failed: %v", operation, err)
	}
}

func ownerActor(document *model.Document, meta RequestMeta) string {
	if meta.ActorID != "" {
		return meta.ActorID
	}
	if document.OwnerID != nil {
		return *document.OwnerID
	}
	return constant.AuditActorOwner
}

func (e *Engine) loadDocument(ctx context.Context, tx *gorm.DB, documentID string) (*model.Document, error) {
	document, err := e.repo.Document.GetByID(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return document, nil
}

// loadForSigner rereads the document and its signers inside the transaction. The
// returned signer points into document.Signers.
func (e *Engine) loadForSigner(ctx context.Context, tx *gorm.DB, documentID, signerID string) (*model.Document, *model.Signer, error) {
	document, err := e.repo.Document.GetByID(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidOrExpiredToken
		}
		return nil, nil, err
	}

	for i := range document.Signers {
		if document.Signers[i].ID == signerID {
			return document, &document.Signers[i], nil
		}
	}

	return nil, nil, ErrInvalidOrExpiredToken
}

func (e *Engine) CreateDocument(ctx context.Context, in CreateDocumentInput) (*model.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrInvalidDocument
	}

	var documentID string
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		template, err := e.repo.Template.GetByID(ctx, tx, in.TemplateID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTemplateNotFound
			}
			return err
		}
		if in.OwnerID != nil && template.UserID != *in.OwnerID {
			return ErrTemplateNotFound
		}

		token, err := e.tokens.NewDocumentToken(ctx, tx)
		if err != nil {
			return err
		}

		document := &model.Document{
			Title:                title,
			OwnerID:              in.OwnerID,
			TemplateID:           template.ID,
			Status:               constant.DocumentStatusDraft,
			SigningToken:         token,
			SigningOrderEnforced: in.SigningOrderEnforced,
			Version:              1,
		}
		if _, err := e.repo.Document.Create(ctx, tx, document); err != nil {
			return err
		}

		actor := ownerActor(document, in.Meta)
		if _, err := e.audit.Append(ctx, tx, AuditEntry{
			DocumentID: document.ID,
			Kind:       constant.AuditEventCreated,
			Actor:      actor,
			Meta:       in.Meta,
			Metadata: map[string]string{
				"title":      title,
				"templateId": template.ID,
				"ordered":    strconv.FormatBool(in.SigningOrderEnforced),
			},
		}); err != nil {
			return err
		}

		for _, s := range in.Signers {
			if _, err := e.addSigner(ctx, tx, document, s, actor, in.Meta); err != nil {
				return err
			}
		}

		documentID = document.ID
		return nil
	})
	e.record("create", err)
	if err != nil {
		return nil, err
	}

	return e.repo.Document.GetByID(ctx, nil, documentID)
}

func (e *Engine) addSigner(ctx context.Context, tx *gorm.DB, document *model.Document, in SignerInput, actor string, meta RequestMeta) (*model.Signer, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") || strings.TrimSpace(in.Role) == "" || in.OrderIndex < 0 {
		return nil, ErrInvalidSigner
	}

	if _, err := e.repo.Signer.GetByDocumentAndEmail(ctx, tx, document.ID, email); err == nil {
		return nil, ErrDuplicateSigner
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// a spot holds one asset per document, so a role has at most one signer
	taken, err := e.repo.Signer.RoleTaken(ctx, tx, document.ID, in.Role)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateRole
	}

	token, err := e.tokens.NewToken()
	if err != nil {
		return nil, err
	}

	signer := &model.Signer{
		DocumentID:  document.ID,
		Email:       email,
		Name:        strings.TrimSpace(in.Name),
		Role:        in.Role,
		OrderIndex:  in.OrderIndex,
		AccessToken: token,
		Status:      constant.SignerStatusPending,
		Version:     1,
	}
	if _, err := e.repo.Signer.Create(ctx, tx, signer); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateSigner
		}
		return nil, err
	}

	if _, err := e.audit.Append(ctx, tx, AuditEntry{
		DocumentID: document.ID,
		Kind:       constant.AuditEventSignerAdded,
		Actor:      actor,
		SignerID:   &signer.ID,
		Meta:       meta,
		Metadata: map[string]string{
			"email":      signer.Email,
			"role":       signer.Role,
			"orderIndex": strconv.Itoa(signer.OrderIndex),
		},
	}); err != nil {
		return nil, err
	}

	return signer, nil
}

// AddSigner is only allowed while the document is a draft.
func (e *Engine) AddSigner(ctx context.Context, documentID string, in SignerInput, meta RequestMeta) (*model.Signer, error) {
	var signer *model.Signer
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		document, err := e.loadDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if document.Status.IsTerminal() {
			return ErrWorkflowTerminated
		}
		if document.Status != constant.DocumentStatusDraft {
			return ErrInvalidTransition
		}
		if err := e.repo.Document.Touch(ctx, tx, document); err != nil {
			return err
		}

		signer, err = e.addSigner(ctx, tx, document, in, ownerActor(document, meta), meta)
		return err
	})
	e.record("add_signer", err)
	if err != nil {
		return nil, err
	}

	return signer, nil
}

// Send moves a draft to sent and invites the signers that may act first.
func (e *Engine) Send(ctx context.Context, documentID string, meta RequestMeta) (*model.Document, error) {
	var document *model.Document
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		d, err := e.loadDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if d.Status.IsTerminal() {
			return ErrWorkflowTerminated
		}
		if d.Status != constant.DocumentStatusDraft {
			return ErrInvalidTransition
		}

		hasToken := false
		for _, s := range d.Signers {
			if s.AccessToken != "" {
				hasToken = true
				break
			}
		}
		if !hasToken {
			return ErrNoSigners
		}

		spots, err := e.repo.Template.CountSpots(ctx, tx, d.TemplateID)
		if err != nil {
			return err
		}
		if spots == 0 {
			return ErrNoSpots
		}
		if err := requireCoveredRoles(ctx, e.repo, tx, d); err != nil {
			return err
		}

		now := e.now().UTC()
		if err := e.repo.Document.UpdateStatus(ctx, tx, d, constant.DocumentStatusSent, map[string]any{"sent_at": now}); err != nil {
			return err
		}
		d.SentAt = &now

		actor := ownerActor(d, meta)
		for _, s := range d.Signers {
			signerID := s.ID
			if _, err := e.audit.Append(ctx, tx, AuditEntry{
				DocumentID: d.ID,
				Kind:       constant.AuditEventSent,
				Actor:      actor,
				SignerID:   &signerID,
				Meta:       meta,
				Metadata:   map[string]string{"recipientEmail": s.Email},
			}); err != nil {
				return err
			}
		}

		document = d
		return nil
	})
	e.record("send", err)
	if err != nil {
		return nil, err
	}

	e.notifySigners(ctx, document, EligibleSigners(document.Signers, document.SigningOrderEnforced), NotificationInvitation)
	return document, nil
}

// requireCoveredRoles refuses a document where some spot role has no signer.
func requireCoveredRoles(ctx context.Context, repo *repository.Repository, tx *gorm.DB, document *model.Document) error {
	roles, err := repo.Template.ListSpotRoles(ctx, tx, document.TemplateID)
	if err != nil {
		return err
	}

	held := make(map[string]bool, len(document.Signers))
	for _, s := range document.Signers {
		held[s.Role] = true
	}

	var missing []string
	for _, role := range roles {
		if !held[role] {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnassignedSpots, strings.Join(missing, ", "))
	}

	return nil
}

// View grants a signer access. A signer whose turn has not come is rejected with
// ErrOutOfSequence and the attempt is audited. Viewing again is a no-op.
func (e *Engine) View(ctx context.Context, token string, meta RequestMeta) (*SignerView, error) {
	signer, document, err := e.tokens.ResolveSigner(ctx, nil, token)
	if err != nil {
		e.record("view", err)
		return nil, err
	}

	denied := false
	err = e.inTx(ctx, func(tx *gorm.DB) error {
		d, s, err := e.loadForSigner(ctx, tx, document.ID, signer.ID)
		if err != nil {
			return err
		}
		if d.Status.IsTerminal() {
			return ErrWorkflowTerminated
		}

		switch s.Status {
		case constant.SignerStatusViewed, constant.SignerStatusSigned:
			return nil
		case constant.SignerStatusDeclined:
			return ErrWorkflowTerminated
		}

		if !IsEligible(d.Signers, *s, d.SigningOrderEnforced) {
			// the rejection itself is evidence and must commit
			denied = true
			_, err := e.audit.Append(ctx, tx, AuditEntry{
				DocumentID: d.ID,
				Kind:       constant.AuditEventAccessDeniedSequence,
				Actor:      s.ID,
				SignerID:   &s.ID,
				Meta:       meta,
				Metadata:   map[string]string{"orderIndex": strconv.Itoa(s.OrderIndex)},
			})
			return err
		}

		now := e.now().UTC()
		if err := e.repo.Signer.UpdateStatus(ctx, tx, s, constant.SignerStatusViewed, map[string]any{"viewed_at": now}); err != nil {
			return err
		}
		if err := e.repo.Document.Touch(ctx, tx, d); err != nil {
			return err
		}

		_, err = e.audit.Append(ctx, tx, AuditEntry{
			DocumentID: d.ID,
			Kind:       constant.AuditEventViewed,
			Actor:      s.ID,
			SignerID:   &s.ID,
			Meta:       meta,
		})
		return err
	})
	if err == nil && denied {
		err = ErrOutOfSequence
	}
	e.record("view", err)
	if err != nil {
		return nil, err
	}

	return e.signerView(ctx, document.ID, signer.ID)
}

// GetSignerView reads what a signer sees without changing any state.
func (e *Engine) GetSignerView(ctx context.Context, token string) (*SignerView, error) {
	signer, document, err := e.tokens.ResolveSigner(ctx, nil, token)
	if err != nil {
		return nil, err
	}
	return e.signerView(ctx, document.ID, signer.ID)
}

func (e *Engine) signerView(ctx context.Context, documentID, signerID string) (*SignerView, error) {
	document, signer, err := e.loadForSigner(ctx, nil, documentID, signerID)
	if err != nil {
		return nil, err
	}

	spots, err := e.repo.Template.ListSpotsByRole(ctx, nil, document.TemplateID, signer.Role)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(spots))
	for _, spot := range spots {
		keys = append(keys, spot.SpotKey)
	}
	assets, err := e.repo.SignatureAsset.ListByDocumentAndSpots(ctx, nil, documentID, keys)
	if err != nil {
		return nil, err
	}

	s := *signer
	// signers only see themselves
	document.Signers = nil

	return &SignerView{
		Document: document,
		Signer:   &s,
		Spots:    spots,
		Assets:   assets,
	}, nil
}

func requireViewed(s *model.Signer) error {
	switch s.Status {
	case constant.SignerStatusViewed:
		return nil
	case constant.SignerStatusSigned:
		return ErrAlreadySigned
	case constant.SignerStatusDeclined:
		return ErrWorkflowTerminated
	default:
		return ErrInvalidTransition
	}
}

// putAsset checks the spot belongs to the signer's role, by exact string
// equality, and is not already filled by someone else.
func (e *Engine) putAsset(ctx context.Context, tx *gorm.DB, document *model.Document, signer *model.Signer, spotKey string, in AssetInput) (*model.SignatureAsset, error) {
	spot, err := e.repo.Template.GetSpotByKey(ctx, tx, document.TemplateID, spotKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSpotNotAssigned
		}
		return nil, err
	}
	if spot.Role != signer.Role {
		return nil, ErrSpotNotAssigned
	}

	if in.Content == "" && in.FileID == nil {
		return nil, ErrEmptyAsset
	}

	existing, err := e.repo.SignatureAsset.GetByDocumentAndSpot(ctx, tx, document.ID, spotKey)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil && existing.SignerID != signer.ID {
		return nil, ErrSpotNotAssigned
	}

	return e.repo.SignatureAsset.Upsert(ctx, tx, &model.SignatureAsset{
		DocumentID:  document.ID,
		SpotKey:     spotKey,
		SignerID:    signer.ID,
		Content:     in.Content,
		FileID:      in.FileID,
		ContentHash: in.hash(),
	})
}

// SaveAsset stores one field value ahead of signing. Saving the same spot again replaces it.
func (e *Engine) SaveAsset(ctx context.Context, token, spotKey string, in AssetInput) (*model.SignatureAsset, error) {
	signer, document, err := e.tokens.ResolveSigner(ctx, nil, token)
	if err != nil {
		e.record("save_asset", err)
		return nil, err
	}

	var asset *model.SignatureAsset
	err = e.inTx(ctx, func(tx *gorm.DB) error {
		d, s, err := e.loadForSigner(ctx, tx, document.ID, signer.ID)
		if err != nil {
			return err
		}
		if d.Status.IsTerminal() {
			return ErrWorkflowTerminated
		}
		if err := requireViewed(s); err != nil {
			return err
		}

		asset, err = e.putAsset(ctx, tx, d, s, spotKey, in)
		if err != nil {
			return err
		}

		return e.repo.Document.Touch(ctx, tx, d)
	})
	e.record("save_asset", err)
	if err != nil {
		return nil, err
	}

	return asset, nil
}

// sameAssets reports whether every submitted asset is already stored, by this
// signer, with the same content hash.
func (e *Engine) sameAssets(ctx context.Context, tx *gorm.DB, documentID, signerID string, assets map[string]AssetInput) (bool, error) {
	for spotKey, in := range assets {
		stored, err := e.repo.SignatureAsset.GetByDocumentAndSpot(ctx, tx, documentID, spotKey)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		if stored.SignerID != signerID || stored.ContentHash != in.hash() {
			return false, nil
		}
	}
	return true, nil
}

func sortedKeys(assets map[string]AssetInput) []string {
	keys := make([]string, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sign moves a viewed signer to signed once every spot of their role has an
// asset, then recomputes the document status. Repeating an identical sign
// returns the stored result without writing anything.
func (e *Engine) Sign(ctx context.Context, token string, in SignInput) (*SignResult, error) {
	signer, document, err := e.tokens.ResolveSigner(ctx, nil, token)
	if err != nil {
		e.record("sign", err)
		return nil, err
	}

	var (
		before    []model.Signer
		after     []model.Signer
		completed bool
		replayed  bool
	)
	err = e.inTx(ctx, func(tx *gorm.DB) error {
		d, s, err := e.loadForSigner(ctx, tx, document.ID, signer.ID)
		if err != nil {
			return err
		}

		if s.Status == constant.SignerStatusSigned {
			same, err := e.sameAssets(ctx, tx, d.ID, s.ID, in.Assets)
			if err != nil {
				return err
			}
			if !same {
				return ErrAlreadySigned
			}
			replayed = true
			return nil
		}

		if d.Status.IsTerminal() {
			return ErrWorkflowTerminated
		}
		if err := requireViewed(s); err != nil {
			return err
		}

		before = append([]model.Signer(nil), d.Signers...)

		for _, spotKey := range sortedKeys(in.Assets) {
			if _, err := e.putAsset(ctx, tx, d, s, spotKey, in.Assets[spotKey]); err != nil {
				return err
			}
		}

		spots, err := e.repo.Template.ListSpotsByRole(ctx, tx, d.TemplateID, s.Role)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(spots))
		for _, spot := range spots {
			keys = append(keys, spot.SpotKey)
		}
		stored, err := e.repo.SignatureAsset.ListByDocumentAndSpots(ctx, tx, d.ID, keys)
		if err != nil {
			return err
		}

		hashes := make(map[string]string, len(stored))
		for _, a := range stored {
			if a.SignerID == s.ID {
				hashes[a.SpotKey] = a.ContentHash
			}
		}
		var missing []string
		for _, key := range keys {
			if _, ok := hashes[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrIncompleteFields, strings.Join(missing, ", "))
		}

		now := e.now().UTC()
		if err := e.repo.Signer.UpdateStatus(ctx, tx, s, constant.SignerStatusSigned, map[string]any{"signed_at": now}); err != nil {
			return err
		}
		s.SignedAt = &now

		metadata := map[string]string{
			"signerEmail": s.Email,
			"role":        s.Role,
		}
		for key, hash := range hashes {
			metadata["asset:"+key] = hash
		}
		if _, err := e.audit.Append(ctx, tx, AuditEntry{
			DocumentID: d.ID,
			Kind:       constant.AuditEventSigned,
			Actor:      s.ID,
			SignerID:   &s.ID,
			Meta:       in.Meta,
			Metadata:   metadata,
		}); err != nil {
			return err
		}

		switch {
		case allSigned(d.Signers):
			if err := e.repo.Document.UpdateStatus(ctx, tx, d, constant.DocumentStatusCompleted, map[string]any{"completed_at": now}); err != nil {
				return err
			}
			if _, err := e.audit.Append(ctx, tx, AuditEntry{
				DocumentID: d.ID,
				Kind:       constant.AuditEventCompleted,
				Actor:      constant.AuditActorSystem,
				Metadata:   map[string]string{"signers": strconv.Itoa(len(d.Signers))},
			}); err != nil {
				return err
			}
			completed = true
		case d.Status == constant.DocumentStatusSent:
			if err := e.repo.Document.UpdateStatus(ctx, tx, d, constant.DocumentStatusPartiallySigned, nil); err != nil {
				return err
			}
		default:
			if err := e.repo.Document.Touch(ctx, tx, d); err != nil {
				return err
			}
		}

		after = d.Signers
		return nil
	})
	e.record("sign", err)
	if err != nil {
		return nil, err
	}

	current, s, err := e.loadForSigner(ctx, nil, document.ID, signer.ID)
	if err != nil {
		return nil, err
	}
	result := &SignResult{
		Document:  current,
		Signer:    s,
		Completed: current.Status == constant.DocumentStatusCompleted,
		Replayed:  replayed,
	}
	if replayed {
		return result, nil
	}

	if completed {
		if err := e.exports.ScheduleExport(ctx, ExportJob{DocumentID: current.ID}); err != nil {
			e.logger.Errorf("Failed to schedule render of completed document %s: %v", current.ID, err)
		}
		e.notifyOwner(ctx, current, NotificationCompleted, nil)
		e.notifySigners(ctx, current, current.Signers, NotificationCompleted)
	} else {
		e.notifySigners(ctx, current, newlyEligible(before, after, current.SigningOrderEnforced), NotificationYourTurn)
	}

	return result, nil
}

// Decline ends the workflow for everyone, regardless of what other signers did.
func (e *Engine) Decline(ctx context.Context, token, reason string, meta RequestMeta) (*model.Document, error) {
	signer, document, err := e.tokens.ResolveSigner(ctx, nil, token)
	if err != nil {
		e.record("decline", err)
		return nil, err
	}

	reason = util.TruncateRunes(strings.TrimSpace(reason), maxDeclineReasonLength)

	var (
		declined *model.Document
		decliner model.Signer
	)
	err = e.inTx(ctx, func(tx *gorm.DB) error {
		d, s, err := e.loadForSigner(ctx, tx, document.ID, signer.ID)
		if err != nil {
			return err
		}
		if d.Status.IsTerminal() {
			return ErrWorkflowTerminated
		}
		switch s.Status {
		case constant.SignerStatusSigned:
			return ErrAlreadySigned
		case constant.SignerStatusDeclined:
			return ErrWorkflowTerminated
		}

		now := e.now().UTC()
		if err := e.repo.Signer.UpdateStatus(ctx, tx, s, constant.SignerStatusDeclined, map[string]any{
			"declined_at":    now,
			"decline_reason": reason,
		}); err != nil {
			return err
		}
		s.DeclinedAt = &now
		s.DeclineReason = reason

		if err := e.repo.Document.UpdateStatus(ctx, tx, d, constant.DocumentStatusDeclined, nil); err != nil {
			return err
		}

		metadata := map[string]string{"signerEmail": s.Email}
		if reason != "" {
			metadata["reason"] = reason
		}
		if _, err := e.audit.Append(ctx, tx, AuditEntry{
			DocumentID: d.ID,
			Kind:       constant.AuditEventDeclined,
			Actor:      s.ID,
			SignerID:   &s.ID,
			Meta:       meta,
			Metadata:   metadata,
		}); err != nil {
			return err
		}

		declined = d
		decliner = *s
		return nil
	})
	e.record("decline", err)
	if err != nil {
		return nil, err
	}

	e.notifyOwner(ctx, declined, NotificationDeclined, map[string]string{
		"SignerName":  decliner.Name,
		"SignerEmail": decliner.Email,
		"Reason":      reason,
	})
	return declined, nil
}

// CreateSession issues a short lived token to continue signing on another device.
func (e *Engine) CreateSession(ctx context.Context, token string, meta RequestMeta) (*model.SignerSession, error) {
	signer, document, err := e.tokens.ResolveSigner(ctx, nil, token)
	if err != nil {
		e.record("create_session", err)
		return nil, err
	}

	var session *model.SignerSession
	err = e.inTx(ctx, func(tx *gorm.DB) error {
		d, s, err := e.loadForSigner(ctx, tx, document.ID, signer.ID)
		if err != nil {
			return err
		}
		if d.Status.IsTerminal() {
			return ErrWorkflowTerminated
		}
		switch s.Status {
		case constant.SignerStatusSigned:
			return ErrAlreadySigned
		case constant.SignerStatusDeclined:
			return ErrWorkflowTerminated
		}

		session, err = e.tokens.CreateSession(ctx, tx, *s)
		if err != nil {
			return err
		}

		_, err = e.audit.Append(ctx, tx, AuditEntry{
			DocumentID: d.ID,
			Kind:       constant.AuditEventSessionCreated,
			Actor:      s.ID,
			SignerID:   &s.ID,
			Meta:       meta,
			Metadata:   map[string]string{"sessionId": session.ID},
		})
		return err
	})
	e.record("create_session", err)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// ClaimSession redeems a session token on the second device and returns the
// signer it was issued for, access token included.
func (e *Engine) ClaimSession(ctx context.Context, sessionToken string, meta RequestMeta) (*model.Signer, error) {
	// outside the transaction so a lazy expiry is kept
	session, err := e.tokens.ValidateSession(ctx, nil, sessionToken)
	if err != nil {
		e.record("claim_session", err)
		return nil, err
	}

	var claimed model.Signer
	err = e.inTx(ctx, func(tx *gorm.DB) error {
		signer, err := e.repo.Signer.GetByID(ctx, tx, session.SignerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidOrExpiredToken
			}
			return err
		}

		d, s, err := e.loadForSigner(ctx, tx, signer.DocumentID, signer.ID)
		if err != nil {
			return err
		}
		if d.Status.IsTerminal() {
			return ErrWorkflowTerminated
		}

		if err := e.tokens.ClaimSession(ctx, tx, session); err != nil {
			return err
		}

		if _, err := e.audit.Append(ctx, tx, AuditEntry{
			DocumentID: d.ID,
			Kind:       constant.AuditEventSessionClaimed,
			Actor:      s.ID,
			SignerID:   &s.ID,
			Meta:       meta,
			Metadata:   map[string]string{"sessionId": session.ID},
		}); err != nil {
			return err
		}

		claimed = *s
		return nil
	})
	e.record("claim_session", err)
	if err != nil {
		return nil, err
	}

	return &claimed, nil
}

func (e *Engine) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	return e.loadDocument(ctx, nil, documentID)
}

func (e *Engine) GetAuditEvents(ctx context.Context, documentID string) ([]model.AuditEvent, error) {
	return e.audit.GetAuditEvents(ctx, nil, documentID)
}

func (e *Engine) VerifyAuditChain(ctx context.Context, documentID string) (*ChainReport, error) {
	return e.audit.VerifyChain(ctx, documentID)
}

// SoftDeleteDocument hides a document from every lookup. Documents carrying a
// signature are kept.
func (e *Engine) SoftDeleteDocument(ctx context.Context, documentID string, meta RequestMeta) error {
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		d, err := e.loadDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		for _, s := range d.Signers {
			if s.Status == constant.SignerStatusSigned {
				return ErrDocumentHasSignatures
			}
		}

		if _, err := e.audit.Append(ctx, tx, AuditEntry{
			DocumentID: d.ID,
			Kind:       constant.AuditEventDeleted,
			Actor:      ownerActor(d, meta),
			Meta:       meta,
			Metadata:   map[string]string{"status": string(d.Status)},
		}); err != nil {
			return err
		}

		return e.repo.Document.SoftDelete(ctx, tx, d.ID)
	})
	e.record("delete", err)
	return err
}

// RequestExport queues an upload of a completed document to one of the user's
// connected storage providers.
func (e *Engine) RequestExport(ctx context.Context, documentID, userID string, provider credential.Provider, meta RequestMeta) (*model.DocumentExport, error) {
	var export *model.DocumentExport
	err := e.inTx(ctx, func(tx *gorm.DB) error {
		d, err := e.loadDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if d.Status != constant.DocumentStatusCompleted {
			return ErrInvalidTransition
		}

		if _, err := e.repo.StorageConnection.GetByUserAndProvider(ctx, tx, userID, provider.String()); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStorageNotConnected
			}
			return err
		}

		export, err = e.repo.DocumentExport.Create(ctx, tx, &model.DocumentExport{
			DocumentID: d.ID,
			UserID:     userID,
			Provider:   provider.String(),
			Status:     model.ExportStatusPending,
		})
		if err != nil {
			return err
		}

		_, err = e.audit.Append(ctx, tx, AuditEntry{
			DocumentID: d.ID,
			Kind:       constant.AuditEventExportRequested,
			Actor:      ownerActor(d, meta),
			Meta:       meta,
			Metadata: map[string]string{
				"provider": provider.String(),
				"exportId": export.ID,
			},
		})
		return err
	})
	e.record("export", err)
	if err != nil {
		return nil, err
	}

	if err := e.exports.ScheduleExport(ctx, ExportJob{DocumentID: documentID, ExportID: export.ID}); err != nil {
		e.logger.Errorf("Failed to schedule export %s: %v", export.ID, err)
		if markErr := e.repo.DocumentExport.MarkResult(ctx, nil, export.ID, model.ExportStatusFailed, "", err.Error()); markErr != nil {
			e.logger.Errorf("Failed to mark export %s failed: %v", export.ID, markErr)
		}
		export.Status = model.ExportStatusFailed
		export.Error = err.Error()
	}

	return export, nil
}
