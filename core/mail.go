package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/tutora/backend/fs"
)

const emailTemplatesDir = "assets/templates/email"

var (
	templates emailTemplates
	tmplInit  sync.Once
)

type (
	// emailTemplates holds the parsed templates by name, e.g. "fee_reminder".
	emailTemplates struct {
		text map[string]*texttmpl.Template
		html map[string]*htmltmpl.Template
	}

	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is what the templates see: {{.AppName}}, {{.Data.Name}}...
	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

type executor interface {
	Execute(w io.Writer, data interface{}) error
}

func execute(tmpl executor, data ContextData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m *EmailMessage) render(data ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	var err error
	if tmpl, ok := templates.text[m.TemplateName]; ok && m.BodyStr == "" {
		if m.TextContent, err = execute(tmpl, data); err != nil {
			return errors.Wrap(err, "rendering text")
		}
	}
	if tmpl, ok := templates.html[m.TemplateName]; ok {
		if m.HTMLContent, err = execute(tmpl, data); err != nil {
			return errors.Wrap(err, "rendering html")
		}
	}
	return nil
}

// Render renders the text & HTML contents of the message using the app config.
func (m *EmailMessage) Render(conf *Config) error {
	if m.TemplateName != "" {
		tmplInit.Do(func() { _ = parseTemplates(conf.Debug || conf.TestMode) }) // only execute once
	}
	data := ContextData{
		AppName:         conf.AppName,
		FrontendBaseURL: conf.FrontendBaseURL,
		Data:            m.TemplateData,
	}
	return m.render(data)
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	// base64 encode content
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates eagerly parses the embedded email templates.
func ParseEmailTemplates(conf *Config, logger Logger) {
	tmplInit.Do(func() {
		if err := parseTemplates(conf.Debug || conf.TestMode); err != nil {
			logger.Error("parsing email templates", err)
		}
	})
}

func parseTemplates(strict bool) error {
	templates = emailTemplates{
		text: make(map[string]*texttmpl.Template),
		html: make(map[string]*htmltmpl.Template),
	}

	fps, err := fs.Glob(appfs.FS, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		return errors.Wrap(err, "listing email templates")
	}
	option := "missingkey=default"
	if strict {
		option = "missingkey=error"
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		ext := path.Ext(fname)
		name := strings.TrimSuffix(fname, ext)

		switch ext {
		case ".txt":
			tmpl, err := texttmpl.ParseFS(appfs.FS, path.Join(emailTemplatesDir, "_base.txt"), fp)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", fname)
			}
			templates.text[name] = tmpl.Option(option)
		case ".gohtml":
			tmpl, err := htmltmpl.ParseFS(appfs.FS, path.Join(emailTemplatesDir, "_base.gohtml"), fp)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", fname)
			}
			templates.html[name] = tmpl.Option(option)
		}
	}
	return nil
}
