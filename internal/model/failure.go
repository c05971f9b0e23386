// internal/model/failure.go
package model

// FailedContact and FailedOrganization are derived views reconstructed from a
// job's worker log lines. They are recomputed on every inspection and never
// persisted.
type FailedContact struct {
    Email  string `json:"email"`
    Reason string `json:"reason"`
}

type FailedOrganization struct {
    Name   string `json:"name"`
    Reason string `json:"reason"`
}

// JobReport is the reconciliation output for one job: the raw log lines
// verbatim plus the best-effort structured failure lists.
type JobReport struct {
    Logs           []string             `json:"logs"`
    FailedContacts []FailedContact      `json:"failed_contacts"`
    FailedOrgs     []FailedOrganization `json:"failed_orgs"`
}
