package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/SeakMengs/AutoSign/internal/config"
	"github.com/SeakMengs/AutoSign/internal/util"
	"go.uber.org/zap"
)

const (
	FROM_NAME = "AutoSign"
	MAX_RETRY = 3
)

type MailTemplateFile string

const (
	TemplateSigningInvitation MailTemplateFile = "templates/signing_invitation.tmpl"
	TemplateYourTurn          MailTemplateFile = "templates/your_turn.tmpl"
	TemplateDocumentDeclined  MailTemplateFile = "templates/document_declined.tmpl"
	TemplateDocumentCompleted MailTemplateFile = "templates/document_completed.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile MailTemplateFile, toEmail string, data any) (int, error)
}

// TemplateFor maps a notification kind, as carried on the mail queue, to its template.
func TemplateFor(kind string) (MailTemplateFile, error) {
	switch kind {
	case "signing_invitation":
		return TemplateSigningInvitation, nil
	case "your_turn":
		return TemplateYourTurn, nil
	case "document_declined":
		return TemplateDocumentDeclined, nil
	case "document_completed":
		return TemplateDocumentCompleted, nil
	default:
		return "", fmt.Errorf("no mail template for %q", kind)
	}
}

// Render executes the "subject" and "body" blocks of a template.
func Render(templateFile MailTemplateFile, data any) (string, string, error) {
	tmpl, err := template.ParseFS(FS, string(templateFile))
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", templateFile, err)
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("execute subject of %s: %w", templateFile, err)
	}

	body := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(body, "body", data); err != nil {
		return "", "", fmt.Errorf("execute body of %s: %w", templateFile, err)
	}

	return strings.TrimSpace(subject.String()), body.String(), nil
}

// NewClient picks the provider configured by MAIL_PROVIDER.
func NewClient(cfg config.Config, logger *zap.SugaredLogger) (Client, error) {
	if logger == nil {
		logger = util.NewLogger(cfg.ENV)
	}

	switch cfg.Mail.PROVIDER {
	case "sendgrid":
		return NewSendgrid(cfg.Mail.SEND_GRID.API_KEY, cfg.Mail.FROM_EMAIL, cfg.IsProduction(), logger), nil
	case "gmail":
		return NewGmailMailer(cfg.Mail.GMAIL_USERNAME, cfg.Mail.GMAIL_APP_PASSWORD, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Mail.PROVIDER)
	}
}
