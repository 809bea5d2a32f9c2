// Package signing implements the document signing workflow: who may act and when,
// how access tokens are issued and resolved, and the audit trail every transition leaves.
package signing

import "errors"

// Messages are shown to unauthenticated signers, they must not name other signers.
var (
	ErrOutOfSequence          = errors.New("waiting on an earlier signer, please try again once they have signed")
	ErrIncompleteFields       = errors.New("some fields assigned to you are not filled in yet")
	ErrWorkflowTerminated     = errors.New("this document is no longer accepting changes")
	ErrInvalidOrExpiredToken  = errors.New("the link is invalid or has expired")
	ErrConcurrentModification = errors.New("the document was changed by another request, please reload and try again")
	ErrInvalidTransition      = errors.New("this action is not allowed in the document's current state")
	ErrAlreadySigned          = errors.New("you have already signed this document")
	ErrSpotNotAssigned        = errors.New("this field is not assigned to you")
	ErrEmptyAsset             = errors.New("field value cannot be empty")
	ErrDocumentHasSignatures  = errors.New("a document with collected signatures cannot be deleted")
	ErrNoSigners              = errors.New("add at least one signer before sending")
	ErrNoSpots                = errors.New("the template has no signature fields")
	ErrDuplicateSigner        = errors.New("a signer with this email already exists on the document")
	ErrDuplicateRole          = errors.New("another signer already holds this role on the document")
	ErrUnassignedSpots        = errors.New("some template fields belong to a role no signer holds")
	ErrInvalidSigner          = errors.New("signer email and role are required and order index cannot be negative")
	ErrInvalidDocument        = errors.New("document title is required")
	ErrDocumentNotFound       = errors.New("document not found")
	ErrStorageNotConnected    = errors.New("connect the storage provider before exporting")
	ErrTemplateNotFound       = errors.New("template not found")
	ErrAuditChainBroken       = errors.New("audit trail integrity check failed")
)
