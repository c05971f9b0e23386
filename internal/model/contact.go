// internal/model/contact.go
package model

type Contact struct {
    ID             int64  `db:"id" json:"id"`
    Email          string `db:"email" json:"email"`
    Name           string `db:"name" json:"name"`
    OrganizationID *int64 `db:"organization_id" json:"organization_id,omitempty"`
}

type Organization struct {
    ID   int64  `db:"id" json:"id"`
    Name string `db:"name" json:"name"`
}

type ContactList struct {
    ID   int64  `db:"id" json:"id"`
    Name string `db:"name" json:"name"`
}

// Recipient is the slice of a contact the dispatch pipeline actually needs:
// enough identity to address one delivery without a second lookup.
type Recipient struct {
    ID    int64  `json:"id"`
    Email string `json:"email"`
    Name  string `json:"name"`
}
