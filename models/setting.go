package models

import "time"

// Template names one of the certificate layouts.
type Template string

const (
	TemplateClassic Template = "classic"
	TemplateModern  Template = "modern"
)

// DefaultTemplate is used whenever no setting has been stored yet.
const DefaultTemplate = TemplateClassic

// Templates lists every known layout in display order.
var Templates = []Template{TemplateClassic, TemplateModern}

// ParseTemplate returns the Template named s and whether it is known.
func ParseTemplate(s string) (Template, bool) {
	for _, t := range Templates {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// TemplateSetting is the singleton row selecting the active layout.
type TemplateSetting struct {
	Template  Template  `db:"value" json:"template"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
