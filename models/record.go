package models

// Record is one participant's certificate row.
// All fields are opaque strings copied from the uploaded sheet; blank cells
// are stored as NULL and omitted from JSON.
type Record struct {
	Name        string `db:"name" json:"name,omitempty"`
	Certificate string `db:"certificate" json:"certificate,omitempty"`
	College     string `db:"college" json:"college,omitempty"`
	Link        string `db:"link" json:"link,omitempty"`
}
