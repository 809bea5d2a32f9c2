package constant

type AuditEventKind string

const (
	AuditEventCreated              AuditEventKind = "created"
	AuditEventSignerAdded          AuditEventKind = "signer_added"
	AuditEventSent                 AuditEventKind = "sent"
	AuditEventViewed               AuditEventKind = "viewed"
	AuditEventAccessDeniedSequence AuditEventKind = "access_denied_sequence"
	AuditEventSigned               AuditEventKind = "signed"
	AuditEventDeclined             AuditEventKind = "declined"
	AuditEventCompleted            AuditEventKind = "completed"
	AuditEventSessionCreated       AuditEventKind = "session_created"
	AuditEventSessionClaimed       AuditEventKind = "session_claimed"
	AuditEventDeleted              AuditEventKind = "deleted"
	AuditEventExportRequested      AuditEventKind = "export_requested"
)

const (
	AuditActorSystem = "system"
	AuditActorOwner  = "owner"
)

type EmailStatus string

const (
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)
