package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/remindme/fs"
)

const layoutName = "layout"

var errTemplatesNotParsed = errors.New("templates not parsed: call ParseTemplates first")

var (
	tmplMu      sync.RWMutex
	tmplParsed  bool
	tmplContext ContextData

	smsTemplates       map[string]*texttmpl.Template
	emailTemplates     map[string]*texttmpl.Template
	emailHTMLTemplates map[string]*htmltmpl.Template
)

// ContextData is what every template gets executed with.
type ContextData struct {
	AppName         string
	FrontendBaseURL string
	Data            interface{}
}

// ParseTemplates parses the embedded sms & email templates with the app context of conf.
// Nothing renders before it has been called; calling it again replaces the templates & context.
func ParseTemplates(conf *Config, logger Logger) {
	sms, email, emailHTML, err := parseTemplates(conf.Debug || conf.TestMode)
	if err != nil {
		logger.Error("parsing templates", err)
		return
	}

	tmplMu.Lock()
	defer tmplMu.Unlock()
	tmplContext = ContextData{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL}
	smsTemplates, emailTemplates, emailHTMLTemplates = sms, email, emailHTML
	tmplParsed = true
}

func parseTemplates(strict bool) (
	sms map[string]*texttmpl.Template,
	email map[string]*texttmpl.Template,
	emailHTML map[string]*htmltmpl.Template,
	err error,
) {
	sms = make(map[string]*texttmpl.Template)
	email = make(map[string]*texttmpl.Template)
	emailHTML = make(map[string]*htmltmpl.Template)

	option := "missingkey=default"
	if strict {
		option = "missingkey=error"
	}

	fps, err := fs.Glob(appfs.FS, "templates/sms/*.txt")
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "listing sms templates")
	}
	for _, fp := range fps {
		tmpl, err := texttmpl.ParseFS(appfs.FS, fp)
		if err != nil {
			return nil, nil, nil, errors.Wrapf(err, "parsing %s", fp)
		}
		sms[templateName(fp)] = tmpl.Option(option)
	}

	fps, err = fs.Glob(appfs.FS, "templates/email/*")
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "listing email templates")
	}
	for _, fp := range fps {
		name := templateName(fp)
		if name == layoutName {
			continue
		}
		switch path.Ext(fp) {
		case ".txt":
			tmpl, err := texttmpl.ParseFS(appfs.FS, "templates/email/"+layoutName+".txt", fp)
			if err != nil {
				return nil, nil, nil, errors.Wrapf(err, "parsing %s", fp)
			}
			email[name] = tmpl.Option(option)
		case ".gohtml":
			tmpl, err := htmltmpl.ParseFS(appfs.FS, "templates/email/"+layoutName+".gohtml", fp)
			if err != nil {
				return nil, nil, nil, errors.Wrapf(err, "parsing %s", fp)
			}
			emailHTML[name] = tmpl.Option(option)
		}
	}
	return sms, email, emailHTML, nil
}

func templateName(fp string) string {
	base := path.Base(fp)
	return strings.TrimSuffix(base, path.Ext(base))
}

func contextData(data interface{}) ContextData {
	ctxData := tmplContext
	ctxData.Data = data
	return ctxData
}

func renderText(set *map[string]*texttmpl.Template, name string, data interface{}) (string, error) {
	tmplMu.RLock()
	defer tmplMu.RUnlock()
	if !tmplParsed {
		return "", errTemplatesNotParsed
	}
	tmpl, ok := (*set)[name]
	if !ok {
		return "", errors.Errorf("template %q not found", name)
	}
	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, contextData(data)); err != nil {
		return "", errors.Wrapf(err, "rendering %q", name)
	}
	return buff.String(), nil
}

func renderHTML(name string, data interface{}) (string, error) {
	tmplMu.RLock()
	defer tmplMu.RUnlock()
	if !tmplParsed {
		return "", errTemplatesNotParsed
	}
	tmpl, ok := emailHTMLTemplates[name]
	if !ok {
		return "", nil // text-only email
	}
	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, contextData(data)); err != nil {
		return "", errors.Wrapf(err, "rendering %q", name)
	}
	return buff.String(), nil
}
