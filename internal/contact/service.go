package contact

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/email"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"github.com/gracefellowship/churchsite/backend/go-services/pkg/metrics"
)

// Service accepts submissions. With a notifier set, each stored message is
// also relayed inline.
type Service struct {
	repo     Repository
	notifier *Notifier
	now      func() time.Time
}

func NewService(repo Repository, inline *Notifier) *Service {
	return &Service{repo: repo, notifier: inline, now: time.Now}
}

// Submit validates and stores f. Inline notification failures are logged
// only; the submission still succeeds.
func (s *Service) Submit(ctx context.Context, f Form) (Message, error) {
	m, err := NewMessage(f, s.now())
	if err != nil {
		return Message{}, err
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return Message{}, err
	}
	logger.Infof("contact message %s stored", m.ID)
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, m); err != nil {
			logger.Errorf("contact message %s: notify: %v", m.ID, err)
		}
	}
	return m, nil
}

// Mailer is the outgoing mail transport.
type Mailer interface {
	Send(m email.Message) error
}

// Notifier emails the operator for each message.
type Notifier struct {
	mail     Mailer
	operator string
	siteName string
}

func NewNotifier(mail Mailer, operator, siteName string) *Notifier {
	if siteName == "" {
		siteName = "Church website"
	}
	return &Notifier{mail: mail, operator: operator, siteName: siteName}
}

// Notify sends m to the operator address with the visitor as Reply-To.
func (n *Notifier) Notify(ctx context.Context, m Message) error {
	subject := m.Subject
	if subject == "" {
		subject = "New message from " + m.Name
	}
	html, err := renderHTML(n.siteName, m)
	if err != nil {
		return fmt.Errorf("render notification: %w", err)
	}
	err = n.mail.Send(email.Message{
		To:      []string{n.operator},
		ReplyTo: m.Email,
		Subject: fmt.Sprintf("[%s] %s", n.siteName, subject),
		Text:    render(m),
		HTML:    html,
	})
	if err != nil {
		metrics.ContactNotifications.WithLabelValues("failed").Inc()
		return fmt.Errorf("notify operator: %w", err)
	}
	metrics.ContactNotifications.WithLabelValues("sent").Inc()
	return nil
}

// Run notifies for every inserted message until ctx ends. Failures are
// logged and not retried.
func (n *Notifier) Run(ctx context.Context, repo Repository) error {
	msgs, err := repo.WatchInserts(ctx)
	if err != nil {
		return err
	}
	for m := range msgs {
		if err := n.Notify(ctx, m); err != nil {
			logger.Errorf("contact message %s: %v", m.ID, err)
			continue
		}
		logger.Infof("contact message %s relayed to operator", m.ID)
	}
	return ctx.Err()
}

func render(m Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\r\n", m.Name)
	fmt.Fprintf(&b, "Email: %s\r\n", m.Email)
	if m.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\r\n", m.Phone)
	}
	fmt.Fprintf(&b, "Received: %s\r\n\r\n", m.CreatedAt.Format(time.RFC1123))
	b.WriteString(m.Message)
	return b.String()
}

var notificationTemplate = template.Must(template.New("contact").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.5;">
  <h2>New message via {{.Site}}</h2>
  <p><strong>Name:</strong> {{.Name}}<br>
  <strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a>{{if .Phone}}<br>
  <strong>Phone:</strong> {{.Phone}}{{end}}<br>
  <strong>Received:</strong> {{.Received}}</p>
  <p style="white-space: pre-wrap;">{{.Message}}</p>
</body>
</html>`))

func renderHTML(siteName string, m Message) (string, error) {
	var buf bytes.Buffer
	err := notificationTemplate.Execute(&buf, struct {
		Site, Name, Email, Phone, Received, Message string
	}{siteName, m.Name, m.Email, m.Phone, m.CreatedAt.Format(time.RFC1123), m.Message})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
