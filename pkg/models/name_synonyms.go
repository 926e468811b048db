package models

// NameSynonyms maps a canonical name to its alternate spellings and forms.
// Name is unique under case-insensitive comparison.
type NameSynonyms struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Synonyms []string `json:"synonyms"`
}
