package output

import (
	"bytes"
	"sync"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// TemplateFormatter renders the report with a user supplied text/template.
// The template receives the *types.DuplicateReport.
type TemplateFormatter struct {
	templateStr string
	template    *template.Template
	mu          sync.Mutex
}

// NewTemplateFormatter creates a template formatter.
func NewTemplateFormatter(templateStr string) *TemplateFormatter {
	return &TemplateFormatter{
		templateStr: templateStr,
	}
}

// SetTemplate replaces the template string.
func (f *TemplateFormatter) SetTemplate(templateStr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templateStr = templateStr
	f.template = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// {{bytes .Size}}
		"bytes": func(size int64) string {
			return types.FormatSize(size)
		},
		// {{comma .Stats.FilesHashed}}
		"comma": func(n int64) string {
			return humanize.Comma(n)
		},
		// {{short .Digest}}
		"short": shortDigest,
	}
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *types.DuplicateReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.template == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.templateStr)
		if err != nil {
			return err
		}
		f.template = tmpl
	}

	return f.template.Execute(w, r)
}

// defaultTemplate prints each group's size and digest followed by its paths.
const defaultTemplate = `{{range .Groups}}{{bytes .Size}}	{{.Digest}}
{{range .Paths}}	{{.}}
{{end}}{{end}}`

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(defaultTemplate)
	})
}

var _ Formatter = (*TemplateFormatter)(nil)
