package signing

import (
	"context"

	"github.com/SeakMengs/AutoSign/internal/model"
)

func (e *Engine) signingURL(s model.Signer) string {
	return e.frontendURL + "/sign/" + s.AccessToken
}

func (e *Engine) documentURL(d *model.Document) string {
	return e.frontendURL + "/documents/" + d.ID
}

func (e *Engine) notify(ctx context.Context, n Notification) {
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.Errorf("Failed to queue %s notification for document %s: %v", n.Kind, n.DocumentID, err)
	}
}

func (e *Engine) notifySigners(ctx context.Context, document *model.Document, signers []model.Signer, kind NotificationKind) {
	for _, s := range signers {
		signerID := s.ID
		e.notify(ctx, Notification{
			Kind:       kind,
			DocumentID: document.ID,
			SignerID:   &signerID,
			ToEmail:    s.Email,
			ToName:     s.Name,
			Data: map[string]string{
				"DocumentTitle": document.Title,
				"SigningURL":    e.signingURL(s),
			},
		})
	}
}

func (e *Engine) notifyOwner(ctx context.Context, document *model.Document, kind NotificationKind, extra map[string]string) {
	if document.OwnerID == nil {
		return
	}

	owner, err := e.repo.User.GetById(ctx, nil, *document.OwnerID)
	if err != nil {
		e.logger.Errorf("Failed to load owner of document %s for %s notification: %v", document.ID, kind, err)
		return
	}

	data := map[string]string{
		"DocumentTitle": document.Title,
		"DocumentURL":   e.documentURL(document),
	}
	for k, v := range extra {
		data[k] = v
	}

	e.notify(ctx, Notification{
		Kind:       kind,
		DocumentID: document.ID,
		ToEmail:    owner.Email,
		ToName:     owner.Name,
		Data:       data,
	})
}
