package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/elimu/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridService delivers messages through the SendGrid v3 API, one goroutine per message.
type SendgridService struct {
	apiKey  string
	from    mail.Address
	prefix  string
	client  *rest.Client
	logger  core.Logger
	baseURL string
}

var _ core.EmailService = (*SendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *SendgridService {
	return &SendgridService{
		apiKey:  conf.SendgridApiKey,
		from:    conf.FromAddress(),
		prefix:  subjectPrefix(conf),
		client:  &rest.Client{HTTPClient: &http.Client{Timeout: conf.Email.SendTimeout}},
		logger:  logger,
		baseURL: sendgridHost,
	}
}

func subjectPrefix(conf *core.Config) string { return "[" + conf.AppName + "] " }

func (svc *SendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc *SendgridService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}

	req := sendgrid.GetRequest(svc.apiKey, sendgridEndpoint, svc.baseURL)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(buildSGMail(svc.from, svc.prefix, msg))

	res, err := svc.client.Send(req)
	switch {
	case err != nil:
		svc.logger.Error(fmt.Sprintf("sending email %q: %v", msg.Subject, err), err)
	case res.StatusCode >= http.StatusBadRequest:
		svc.logger.Error(fmt.Sprintf("sendgrid rejected email %q: %d %s", msg.Subject, res.StatusCode, res.Body))
	}
}

// buildSGMail maps a rendered message to a SendGrid payload.
// Templated messages are tagged with their template name as category.
func buildSGMail(from mail.Address, prefix string, msg *core.EmailMessage) *sgmail.SGMailV3 {
	toSG := func(addrs []mail.Address) []*sgmail.Email {
		out := make([]*sgmail.Email, 0, len(addrs))
		for _, a := range addrs {
			out = append(out, sgmail.NewEmail(a.Name, a.Address))
		}
		return out
	}

	p := sgmail.NewPersonalization()
	p.Subject = prefix + msg.Subject
	p.AddTos(toSG(msg.To)...)
	p.AddCCs(toSG(msg.Cc)...)
	p.AddBCCs(toSG(msg.Bcc)...)

	m := sgmail.NewV3Mail().
		SetFrom(sgmail.NewEmail(from.Name, from.Address)).
		AddPersonalizations(p)
	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	return m
}
