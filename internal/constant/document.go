package constant

type DocumentStatus string

const (
	DocumentStatusDraft           DocumentStatus = "draft"
	DocumentStatusSent            DocumentStatus = "sent"
	DocumentStatusPartiallySigned DocumentStatus = "partially_signed"
	DocumentStatusCompleted       DocumentStatus = "completed"
	DocumentStatusDeclined        DocumentStatus = "declined"
)

// IsTerminal reports whether the document accepts no further workflow mutation.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusDeclined
}

// IsInProgress reports whether signers may currently act on the document.
func (s DocumentStatus) IsInProgress() bool {
	return s == DocumentStatusSent || s == DocumentStatusPartiallySigned
}

type SignerStatus string

const (
	SignerStatusPending  SignerStatus = "pending"
	SignerStatusViewed   SignerStatus = "viewed"
	SignerStatusSigned   SignerStatus = "signed"
	SignerStatusDeclined SignerStatus = "declined"
)

func (s SignerStatus) IsTerminal() bool {
	return s == SignerStatusSigned || s == SignerStatusDeclined
}

type SignerSessionStatus string

const (
	SignerSessionStatusPending SignerSessionStatus = "pending"
	SignerSessionStatusClaimed SignerSessionStatus = "claimed"
	SignerSessionStatusExpired SignerSessionStatus = "expired"
)

type FieldType string

const (
	FieldTypeSignature FieldType = "signature"
	FieldTypeInitials  FieldType = "initials"
	FieldTypeDate      FieldType = "date"
	FieldTypeText      FieldType = "text"
)

func (f FieldType) IsValid() bool {
	switch f {
	case FieldTypeSignature, FieldTypeInitials, FieldTypeDate, FieldTypeText:
		return true
	}
	return false
}

type DocumentRole int

const (
	DocumentRoleOwner DocumentRole = iota
	DocumentRoleNone
)
