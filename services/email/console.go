package emailsvc

import (
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/elimu/core"
)

// ConsoleService logs messages as MIME documents instead of sending them. Used in DEV.
type ConsoleService struct {
	from   mail.Address
	prefix string
	logger core.Logger
	quiet  bool
	// redact drops the bodies from the log. Set when logs are forwarded to Rollbar.
	redact bool
}

var _ core.EmailService = (*ConsoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) *ConsoleService {
	return &ConsoleService{
		from:   conf.FromAddress(),
		prefix: subjectPrefix(conf),
		logger: logger,
		redact: conf.RollbarToken != "",
	}
}

func (svc *ConsoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

// deliver reports whether msg was rendered and had something to send.
func (svc *ConsoleService) deliver(msg *core.EmailMessage) bool {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
		return false
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return false
	}
	if !svc.quiet {
		svc.logger.Info(formatMIME(svc.from, svc.prefix, msg, time.Now(), svc.redact))
	}
	return true
}

func formatMIME(from mail.Address, prefix string, msg *core.EmailMessage, date time.Time, redact bool) string {
	var b strings.Builder
	header := func(key, value string) {
		if value != "" {
			b.WriteString(key + ": " + value + "\r\n")
		}
	}
	header("From", from.String())
	header("To", joinAddresses(msg.To))
	header("Cc", joinAddresses(msg.Cc))
	header("Bcc", joinAddresses(msg.Bcc))
	header("Subject", mime.QEncoding.Encode("utf-8", prefix+msg.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	if redact {
		b.WriteString("\r\n[body redacted]\r\n")
		return b.String()
	}

	w := multipart.NewWriter(&b)
	header("Content-Type", "multipart/alternative; boundary="+w.Boundary())
	b.WriteString("\r\n")

	parts := []struct{ ctype, body string }{
		{"text/plain; charset=utf-8", msg.TextContent},
		{"text/html; charset=utf-8", msg.HTMLContent},
	}
	for _, part := range parts {
		if part.body == "" {
			continue
		}
		if pw, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}}); err == nil {
			_, _ = pw.Write([]byte(part.body + "\r\n"))
		}
	}
	_ = w.Close()
	return b.String()
}

func joinAddresses(addrs []mail.Address) string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return strings.Join(out, ", ")
}

// ConsoleServiceMock delivers synchronously and records what it sent.
type ConsoleServiceMock struct {
	ConsoleService
	mu   sync.Mutex
	sent []core.EmailMessage
}

func NewConsoleServiceMock(conf *core.Config, logger core.Logger) *ConsoleServiceMock {
	svc := &ConsoleServiceMock{ConsoleService: *NewConsoleService(conf, logger)}
	svc.quiet = true
	return svc
}

func (svc *ConsoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if !svc.deliver(msg) {
			continue
		}
		svc.mu.Lock()
		svc.sent = append(svc.sent, *msg)
		svc.mu.Unlock()
	}
}

// SentMessages returns a copy of the messages sent so far.
func (svc *ConsoleServiceMock) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

func (svc *ConsoleServiceMock) Reset() {
	svc.mu.Lock()
	svc.sent = nil
	svc.mu.Unlock()
}
