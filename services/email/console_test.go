package emailsvc

import (
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	logsvc "github.com/trezcool/elimu/services/logger"
)

func TestFormatMIME(t *testing.T) {
	msg := &core.EmailMessage{
		To:          []mail.Address{{Name: "Amani", Address: "amani@elimu.test"}},
		Subject:     "Réinitialisation",
		TextContent: "code: 123456",
		HTMLContent: "<p>code: 123456</p>",
	}
	date := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := formatMIME(mail.Address{Address: "noreply@elimu.test"}, "[Elimu] ", msg, date, false)

	assert.Contains(t, out, "From: <noreply@elimu.test>\r\n")
	assert.Contains(t, out, `To: "Amani" <amani@elimu.test>`)
	assert.Contains(t, out, "Subject: =?utf-8?q?")
	assert.Contains(t, out, "Date: Fri, 01 Mar 2024 10:00:00 +0000\r\n")
	assert.NotContains(t, out, "Cc:")
	assert.Contains(t, out, "text/plain; charset=utf-8")
	assert.Contains(t, out, "<p>code: 123456</p>")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "--"))

	redacted := formatMIME(mail.Address{Address: "noreply@elimu.test"}, "[Elimu] ", msg, date, true)
	assert.Contains(t, redacted, `To: "Amani" <amani@elimu.test>`)
	assert.NotContains(t, redacted, "123456")
	assert.NotContains(t, redacted, "Content-Type")
}

type infoRecorder struct {
	logsvc.RollbarLogger
	infos []string
}

func (l *infoRecorder) Info(msg string, _ ...interface{}) { l.infos = append(l.infos, msg) }

func TestConsoleService_redactsWithRollbar(t *testing.T) {
	msg := func() *core.EmailMessage {
		return &core.EmailMessage{To: []mail.Address{{Address: "a@elimu.test"}}, Subject: "code", Body: "code: 987654"}
	}

	logger := &infoRecorder{RollbarLogger: *logsvc.NewNop()}
	svc := NewConsoleService(&core.Config{AppName: "Elimu", RollbarToken: "token"}, logger)
	require.True(t, svc.deliver(msg()))
	require.Len(t, logger.infos, 1)
	assert.NotContains(t, logger.infos[0], "987654")

	logger = &infoRecorder{RollbarLogger: *logsvc.NewNop()}
	svc = NewConsoleService(&core.Config{AppName: "Elimu"}, logger)
	require.True(t, svc.deliver(msg()))
	require.Len(t, logger.infos, 1)
	assert.Contains(t, logger.infos[0], "987654")
}

func TestConsoleServiceMock(t *testing.T) {
	conf := &core.Config{AppName: "Elimu", DefaultFromEmail: "noreply@elimu.test"}
	svc := NewConsoleServiceMock(conf, logsvc.NewNop())

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "a@elimu.test"}}, Subject: "one", Body: "hello"},
		&core.EmailMessage{Subject: "no recipient", Body: "hello"},
		&core.EmailMessage{To: []mail.Address{{Address: "b@elimu.test"}}, Subject: "empty"},
		&core.EmailMessage{To: []mail.Address{{Address: "c@elimu.test"}}, TemplateName: "does_not_exist"},
	)

	sent := svc.SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "one", sent[0].Subject)
		assert.Equal(t, "hello", sent[0].TextContent)
	}

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}
