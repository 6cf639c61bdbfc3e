package reports

import (
	"context"
	"fmt"
	"strings"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESAPI is the slice of the SES client the mailer touches.
type SESAPI interface {
	GetEmailIdentity(ctx context.Context, in *sesv2.GetEmailIdentityInput, opts ...func(*sesv2.Options)) (*sesv2.GetEmailIdentityOutput, error)
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, opts ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Mailer delivers completed reports to verified recipients only. Unverified
// addresses are dropped, never bounced.
type Mailer struct {
	client SESAPI
	sender string
}

// NewMailer binds the SES client to the configured sender address.
func NewMailer(client SESAPI, sender string) *Mailer {
	return &Mailer{client: client, sender: sender}
}

// Send emails the report to every verified recipient. A missing sender or an
// empty recipient list is a log-skip, and SES failures never fail the run.
func (m *Mailer) Send(ctx context.Context, recipients []string, subject, htmlBody string) {
	if m == nil || m.client == nil || m.sender == "" {
		logger.Info("report_email_skipped", "reason", "sender_not_configured")
		return
	}

	var verified []string
	for _, addr := range recipients {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if m.isVerified(ctx, addr) {
			verified = append(verified, addr)
		} else {
			logger.Warn("report_recipient_dropped", "recipient", logger.RedactEmail(addr), "reason", "identity_not_verified")
		}
	}
	if len(verified) == 0 {
		logger.Info("report_email_skipped", "reason", "no_verified_recipients")
		return
	}

	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.sender),
		Destination:      &types.Destination{ToAddresses: verified},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody)},
				},
			},
		},
	})
	if err != nil {
		logger.Error("report_email_failed", "error", err.Error(), "recipients", len(verified))
		return
	}
	logger.Info("report_email_sent", "recipients", len(verified))
}

// isVerified accepts an address whose exact identity is verified for
// sending, or whose domain identity is.
func (m *Mailer) isVerified(ctx context.Context, addr string) bool {
	if m.identityVerified(ctx, addr) {
		return true
	}
	if at := strings.LastIndex(addr, "@"); at > 0 && at < len(addr)-1 {
		return m.identityVerified(ctx, addr[at+1:])
	}
	return false
}

func (m *Mailer) identityVerified(ctx context.Context, identity string) bool {
	out, err := m.client.GetEmailIdentity(ctx, &sesv2.GetEmailIdentityInput{
		EmailIdentity: aws.String(identity),
	})
	if err != nil {
		return false
	}
	return out.VerifiedForSendingStatus
}

// Subject builds the report email subject line.
func Subject(templateName string, confidence float64) string {
	return fmt.Sprintf("Informe de reputación: %s (confianza %.0f%%)", templateName, confidence*100)
}
