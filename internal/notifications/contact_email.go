package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/rhenando/maxsmile/internal/models"
)

const contactNotificationTemplate = `<!DOCTYPE html>
<html>
<body>
  <h3>New contact message</h3>
  <p><strong>Name:</strong> {{.Name}}</p>
  <p><strong>Email:</strong> {{.Email}}</p>
  {{if .Phone}}<p><strong>Phone:</strong> {{.Phone}}</p>{{end}}
  <p><strong>Subject:</strong> {{.Subject}}</p>
  <p>{{.Message}}</p>
</body>
</html>`

var contactNotificationTmpl = template.Must(template.New("contact_notification").Parse(contactNotificationTemplate))

// ContactMailer delivers contact-form messages to the clinic inbox.
type ContactMailer struct {
	client *BrevoClient
	inbox  string
}

func NewContactMailer(client *BrevoClient, inbox string) *ContactMailer {
	if client == nil || strings.TrimSpace(inbox) == "" {
		return nil
	}
	return &ContactMailer{client: client, inbox: inbox}
}

func (m *ContactMailer) SendContactNotification(ctx context.Context, msg models.ContactMessage) (string, error) {
	if m == nil {
		return "", errors.New("contact mailer is nil")
	}
	var buf bytes.Buffer
	if err := contactNotificationTmpl.Execute(&buf, msg); err != nil {
		return "", err
	}
	subject := fmt.Sprintf("Contact form: %s", msg.Subject)
	return m.client.sendHTML(ctx, m.inbox, "", subject, buf.String())
}
