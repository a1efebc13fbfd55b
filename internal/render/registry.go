// Package render owns the certificate layouts and the setting that selects
// which one is active.
package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"certificatePortal/internal/common"
	"certificatePortal/internal/logging"
	"certificatePortal/models"
	"certificatePortal/repository"
)

// DateLayout is the format of the issue date printed on every certificate.
const DateLayout = "January 2, 2006"

var (
	// ErrRender is the kind carried by every Render failure.
	ErrRender = errors.New("render error")
	// ErrUnknownTemplate is returned by Render for a layout outside the known set.
	ErrUnknownTemplate = errors.New("unknown template")
)

//go:embed templates/*.html
var templateFS embed.FS

// document is the data every layout is executed with.
type document struct {
	Name        string
	Certificate string
	College     string
	Link        string
	IssuedOn    string
}

// Registry renders certificates and tracks the active layout.
type Registry struct {
	store   repository.ConfigStore
	layouts map[models.Template]*template.Template
	now     func() time.Time
	log     logging.Logger
}

func NewRegistry(store repository.ConfigStore, log logging.Logger) (*Registry, error) {
	if log == nil {
		log = logging.Nop()
	}
	layouts := make(map[models.Template]*template.Template, len(models.Templates))
	for _, name := range models.Templates {
		file := "templates/" + string(name) + ".html"
		t, err := template.ParseFS(templateFS, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		layouts[name] = t
	}
	return &Registry{store: store, layouts: layouts, now: time.Now, log: log.With("component", "render")}, nil
}

// EnsureDefault stores the default layout when no setting exists.
func (r *Registry) EnsureDefault(ctx context.Context) error {
	created, err := r.store.InsertTemplateIfAbsent(ctx, models.DefaultTemplate, r.now())
	if err != nil {
		return fmt.Errorf("seed template setting: %w", err)
	}
	if created {
		r.log.Info(ctx, "default template initialized", "template", models.DefaultTemplate)
	}
	return nil
}

// GetActive returns the selected layout, or the default when none is stored.
func (r *Registry) GetActive(ctx context.Context) (models.Template, error) {
	s, err := r.store.GetTemplate(ctx)
	if err != nil {
		return "", common.Wrap(common.ErrStore, err, "Error fetching template")
	}
	if s == nil {
		return models.DefaultTemplate, nil
	}
	t, ok := models.ParseTemplate(string(s.Template))
	if !ok {
		r.log.Warn(ctx, "unknown stored template, using default", "stored", s.Template)
		return models.DefaultTemplate, nil
	}
	return t, nil
}

// SetActive selects name as the active layout.
func (r *Registry) SetActive(ctx context.Context, name string) (models.Template, error) {
	t, ok := models.ParseTemplate(name)
	if !ok {
		return "", common.Errorf(common.ErrValidation, "Invalid template")
	}
	if err := r.store.UpsertTemplate(ctx, t, r.now()); err != nil {
		return "", common.Wrap(common.ErrStore, err, "Error updating template")
	}
	r.log.Info(ctx, "template changed", "template", t)
	return t, nil
}

// Render produces the HTML document for rec using layout tmpl.
func (r *Registry) Render(rec models.Record, tmpl models.Template) ([]byte, error) {
	t, ok := r.layouts[tmpl]
	if !ok {
		return nil, common.Wrap(ErrRender, fmt.Errorf("%w: %q", ErrUnknownTemplate, tmpl), "Error generating certificate")
	}
	var buf bytes.Buffer
	err := t.Execute(&buf, document{
		Name:        rec.Name,
		Certificate: rec.Certificate,
		College:     rec.College,
		Link:        rec.Link,
		IssuedOn:    r.now().Format(DateLayout),
	})
	if err != nil {
		return nil, common.Wrap(ErrRender, err, "Error generating certificate")
	}
	return buf.Bytes(), nil
}

const autoPrintScript = `<script>
window.onload = function () {
  window.print();
};
</script>
`

// WithAutoPrint inserts a script that opens the print dialog once the page
// has loaded. Documents without a closing body tag get it appended.
func WithAutoPrint(doc []byte) []byte {
	i := bytes.LastIndex(doc, []byte("</body>"))
	if i < 0 {
		return append(append([]byte{}, doc...), autoPrintScript...)
	}
	out := make([]byte, 0, len(doc)+len(autoPrintScript))
	out = append(out, doc[:i]...)
	out = append(out, autoPrintScript...)
	return append(out, doc[i:]...)
}
