package signing

import (
	"context"
)

type NotificationKind string

const (
	NotificationInvitation NotificationKind = "signing_invitation"
	NotificationYourTurn   NotificationKind = "your_turn"
	NotificationDeclined   NotificationKind = "document_declined"
	NotificationCompleted  NotificationKind = "document_completed"
)

// Notification is an intent to email someone. Delivery happens elsewhere.
type Notification struct {
	Kind       NotificationKind
	DocumentID string
	SignerID   *string
	ToEmail    string
	ToName     string
	Data       map[string]string
}

// Notifier failures never fail the transition that produced the notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ExportJob asks for the finished file of a completed document to be rendered
// and, when ExportID is set, uploaded to an external provider.
type ExportJob struct {
	DocumentID string
	ExportID   string
}

type ExportScheduler interface {
	ScheduleExport(ctx context.Context, job ExportJob) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error { return nil }

type noopExportScheduler struct{}

func (noopExportScheduler) ScheduleExport(context.Context, ExportJob) error { return nil }
