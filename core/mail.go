package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"
)

const (
	emailTemplatesDir = "templates/email"
	emailLayoutName   = "_base"

	textExt = ".txt"
	htmlExt = ".gohtml"
)

type (
	// EmailMessage is either plain (Body) or rendered from the TemplateName pair of templates.
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		Body    string

		TemplateName string
		TemplateData interface{}

		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}

	// templateContext is the dot of every email template.
	templateContext struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// executor is satisfied by both text and html templates.
	executor interface {
		Execute(w io.Writer, data interface{}) error
	}

	emailTemplates struct {
		mu              sync.RWMutex
		frontendBaseURL string
		byName          map[string]map[string]executor // name -> ext -> template
	}
)

var mailTemplates = &emailTemplates{byName: map[string]map[string]executor{}}

func (et *emailTemplates) lookup(name, ext string) (executor, string, bool) {
	et.mu.RLock()
	defer et.mu.RUnlock()
	tmpl, ok := et.byName[name][ext]
	return tmpl, et.frontendBaseURL, ok
}

func (et *emailTemplates) execute(name, ext string, data interface{}) (out string, found bool, err error) {
	tmpl, baseURL, ok := et.lookup(name, ext)
	if !ok {
		return "", false, nil
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateContext{FrontendBaseURL: baseURL, Data: data}); err != nil {
		return "", true, fmt.Errorf("executing %s%s: %w", name, ext, err)
	}
	return buf.String(), true, nil
}

// Render fills TextContent and HTMLContent. A templated message needs at least the text version.
func (m *EmailMessage) Render() error {
	if m.TemplateName == "" {
		m.TextContent = m.Body
		return nil
	}

	text, found, err := mailTemplates.execute(m.TemplateName, textExt, m.TemplateData)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("text template %q not found", m.TemplateName)
	}
	m.TextContent = text

	html, _, err := mailTemplates.execute(m.TemplateName, htmlExt, m.TemplateData)
	if err != nil {
		return err
	}
	m.HTMLContent = html
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" || m.HTMLContent != "" }

func parseEmailTemplate(fsys fs.FS, ext, fp string, strict bool) (executor, error) {
	layout := path.Join(emailTemplatesDir, emailLayoutName+ext)
	opt := "missingkey=default"
	if strict {
		opt = "missingkey=error"
	}
	if ext == textExt {
		tmpl, err := texttmpl.ParseFS(fsys, layout, fp)
		if err != nil {
			return nil, err
		}
		return tmpl.Option(opt), nil
	}
	tmpl, err := htmltmpl.ParseFS(fsys, layout, fp)
	if err != nil {
		return nil, err
	}
	return tmpl.Option(opt), nil
}

// ParseEmailTemplates loads the email templates of fsys, each one wrapped in the _base layout
// of the same extension. Templates that fail to parse are logged and skipped.
func ParseEmailTemplates(fsys fs.FS, conf *Config, logger Logger) {
	byName := make(map[string]map[string]executor)

	fps, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		logger.Error(fmt.Sprintf("globbing email templates: %v", err), err)
	}

	strict := conf.Debug || conf.TestMode
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || (ext != textExt && ext != htmlExt) {
			continue
		}

		tmpl, err := parseEmailTemplate(fsys, ext, fp, strict)
		if err != nil {
			logger.Error(fmt.Sprintf("parsing email template %s: %v", fp, err), err)
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		if byName[name] == nil {
			byName[name] = make(map[string]executor, 2)
		}
		byName[name][ext] = tmpl
	}

	mailTemplates.mu.Lock()
	defer mailTemplates.mu.Unlock()
	mailTemplates.frontendBaseURL = conf.FrontendBaseURL
	mailTemplates.byName = byName
}
