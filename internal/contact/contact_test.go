package contact

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/email"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (f *fakeMailer) Send(m email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMailer) messages() []email.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]email.Message(nil), f.sent...)
}

func TestNewMessageValidation(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		form Form
		ok   bool
	}{
		{"valid", Form{Name: "Ann", Email: " ann@example.com ", Message: "Hi"}, true},
		{"missing name", Form{Email: "ann@example.com", Message: "Hi"}, false},
		{"missing email", Form{Name: "Ann", Message: "Hi"}, false},
		{"bad email", Form{Name: "Ann", Email: "ann@", Message: "Hi"}, false},
		{"display name in email", Form{Name: "Ann", Email: "Ann <ann@example.com>", Message: "Hi"}, false},
		{"blank message", Form{Name: "Ann", Email: "ann@example.com", Message: "   "}, false},
		{"too long", Form{Name: "Ann", Email: "ann@example.com", Message: strings.Repeat("x", maxMessageLen+1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMessage(tt.form, now)
			if !tt.ok {
				require.ErrorIs(t, err, ErrInvalidMessage)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "ann@example.com", m.Email)
			require.Equal(t, now, m.CreatedAt)
			require.Len(t, m.ID, 36)
		})
	}
}

func TestNotifySetsOperatorAndReplyTo(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifier(mailer, "office@example.org", "Grace Fellowship")
	m, err := NewMessage(Form{Name: "Ann", Email: "ann@example.com", Phone: "555", Message: "Prayer request"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), m))
	sent := mailer.messages()
	require.Len(t, sent, 1)
	require.Equal(t, []string{"office@example.org"}, sent[0].To)
	require.Equal(t, "ann@example.com", sent[0].ReplyTo)
	require.Equal(t, "[Grace Fellowship] New message from Ann", sent[0].Subject)
	require.Contains(t, sent[0].HTML, "Prayer request")
	require.Contains(t, sent[0].Text, "Prayer request")
	require.Contains(t, sent[0].Text, "Phone: 555")
}

func TestNotifyEscapesVisitorHTML(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifier(mailer, "office@example.org", "Grace Fellowship")
	m, err := NewMessage(Form{Name: "<b>Ann</b>", Email: "ann@example.com", Message: "<script>alert(1)</script>"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), m))
	html := mailer.messages()[0].HTML
	require.NotContains(t, html, "<script>")
	require.Contains(t, html, "&lt;script&gt;")
	require.Contains(t, html, "&lt;b&gt;Ann&lt;/b&gt;")
}

func TestSubmitInlineNotifyFailureStillStores(t *testing.T) {
	repo := NewMemoryRepo()
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc := NewService(repo, NewNotifier(mailer, "office@example.org", ""))

	m, err := svc.Submit(context.Background(), Form{Name: "Ann", Email: "ann@example.com", Message: "Hello"})
	require.NoError(t, err)
	require.Equal(t, []Message{m}, repo.List())

	_, err = svc.Submit(context.Background(), Form{Name: "Ann"})
	require.ErrorIs(t, err, ErrInvalidMessage)
	require.Len(t, repo.List(), 1)
}

func TestNotifierRunRelaysInserts(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	repo := NewMemoryRepo()
	mailer := &fakeMailer{}
	n := NewNotifier(mailer, "office@example.org", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx, repo) }()

	// wait until the watcher is registered
	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.watchers) == 1
	}, time.Second, time.Millisecond)

	svc := NewService(repo, nil)
	for _, name := range []string{"Ann", "Ben"} {
		_, err := svc.Submit(ctx, Form{Name: name, Email: strings.ToLower(name) + "@example.com", Message: "hi"})
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return len(mailer.messages()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "ben@example.com", mailer.messages()[1].ReplyTo)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
