// internal/service/reconcile.go
package service

import (
	"context"
	"encoding/json"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/smsleopard-dispatch/internal/model"
	"github.com/unclebandit/smsleopard-dispatch/internal/queue"
)

// The delivery workers never report failures as structured data, only as
// free-text log lines in two generations of format: per-line entries
//
//	failed email: a@x.com - reason: mailbox full
//	failed org: Acme Ltd - reason: no subscribed contacts
//
// and a one-line dump of the worker's failure array
//
//	Failed contacts: [{"email":"a@x.com","reason":"bounced"}]
//	Failed organizations: [{"name":"Acme","error":{"error":{"message":"..."}}}, ]
//
// The organization dump is the worst offender: it can carry trailing commas
// and the literal token `[object Object]` where a nested error failed to
// stringify. Everything here is best-effort repair of that output.
var (
	failedEmailRe = regexp.MustCompile(`failed email:\s*(\S+)\s*[-—]+\s*reason:\s*(.+)`)
	failedOrgRe   = regexp.MustCompile(`failed org:\s*(.+?)\s*[-—]+\s*reason:\s*(.+)`)

	contactBlockRe      = regexp.MustCompile(`\[\s*\{.*\}\s*\]`)
	objectPlaceholderRe = regexp.MustCompile(`:\s*\[object Object\]`)
	trailingCommaRe     = regexp.MustCompile(`,\s*([\]}])`)
)

const (
	contactMarker = "Failed contacts:"
	orgMarker     = "Failed organizations:"

	noReason = "[no reason]"
)

// ReconcileEngine rebuilds structured failure reports from a job's log text.
// It is stateless: every call re-fetches and re-parses from scratch.
type ReconcileEngine struct {
	Logs         queue.LogStore
	FetchTimeout time.Duration
	Workers      int
}

// Reconcile never returns an error: a fetch failure degrades to a report
// whose log explains the problem, and a parse failure degrades to whatever
// the per-line scan recovered.
func (e *ReconcileEngine) Reconcile(ctx context.Context, jobID string) model.JobReport {
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout())
	lines, err := e.Logs.FetchLogs(fetchCtx, jobID)
	cancel()
	if err != nil {
		log.Printf("[Reconcile] failed to fetch logs for job %s: %v", jobID, err)
		return model.JobReport{
			Logs:           []string{"Failed to fetch logs: " + err.Error()},
			FailedContacts: []model.FailedContact{},
			FailedOrgs:     []model.FailedOrganization{},
		}
	}

	emailReasons, orgReasons := scanReasons(lines)

	return model.JobReport{
		Logs:           lines,
		FailedContacts: extractFailedContacts(lines, emailReasons),
		FailedOrgs:     extractFailedOrgs(lines, orgReasons),
	}
}

// ReconcileAll reconciles many jobs with bounded parallel fan-out. One job's
// malformed logs never delay or fail its siblings.
func (e *ReconcileEngine) ReconcileAll(ctx context.Context, jobIDs []string) map[string]model.JobReport {
	reports := make(map[string]model.JobReport, len(jobIDs))
	var mu sync.Mutex

	g := &errgroup.Group{}
	g.SetLimit(e.workers())
	for _, jobID := range jobIDs {
		jobID := jobID
		g.Go(func() error {
			report := e.Reconcile(ctx, jobID)
			mu.Lock()
			reports[jobID] = report
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return reports
}

func (e *ReconcileEngine) fetchTimeout() time.Duration {
	if e.FetchTimeout > 0 {
		return e.FetchTimeout
	}
	return 5 * time.Second
}

func (e *ReconcileEngine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return 8
}

// ====================== Per-line extraction ======================

// scanReasons builds the email→reason and org→reason maps from per-line
// entries. Lines matching neither pattern are ignored here.
func scanReasons(lines []string) (map[string]string, map[string]string) {
	emailReasons := map[string]string{}
	orgReasons := map[string]string{}
	for _, line := range lines {
		if m := failedEmailRe.FindStringSubmatch(line); m != nil {
			emailReasons[m[1]] = strings.TrimSpace(m[2])
			continue
		}
		if m := failedOrgRe.FindStringSubmatch(line); m != nil {
			orgReasons[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
		}
	}
	return emailReasons, orgReasons
}

// ====================== Block extraction ======================

func extractFailedContacts(lines []string, reasons map[string]string) []model.FailedContact {
	line, ok := findLine(lines, contactMarker)
	if ok {
		if block := contactBlockRe.FindString(line); block != "" {
			var parsed []struct {
				Email  string `json:"email"`
				Reason string `json:"reason"`
			}
			if err := json.Unmarshal([]byte(block), &parsed); err == nil {
				out := make([]model.FailedContact, 0, len(parsed))
				for _, p := range parsed {
					reason := p.Reason
					// The per-line entry is written at failure time and is
					// more specific than the dump; prefer it.
					if r, found := reasons[p.Email]; found {
						reason = r
					}
					out = append(out, model.FailedContact{Email: p.Email, Reason: reason})
				}
				return out
			}
			log.Printf("[Reconcile] failed contacts block did not parse, falling back to per-line entries")
		}
	}

	// Degradation path: rebuild from the per-line map alone so nothing the
	// scan recovered is lost.
	out := make([]model.FailedContact, 0, len(reasons))
	for email, reason := range reasons {
		out = append(out, model.FailedContact{Email: email, Reason: reason})
	}
	return out
}

func extractFailedOrgs(lines []string, reasons map[string]string) []model.FailedOrganization {
	line, ok := findLine(lines, orgMarker)
	if !ok {
		return orgsFromReasons(reasons)
	}

	start := strings.Index(line, "[")
	end := strings.LastIndex(line, "]")
	if start < 0 || end <= start {
		return orgsFromReasons(reasons)
	}

	repaired := repairOrgBlock(line[start : end+1])

	var parsed []struct {
		Name  string          `json:"name"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		log.Printf("[Reconcile] failed organizations block did not parse after repair: %v", err)
		return orgsFromReasons(reasons)
	}

	out := make([]model.FailedOrganization, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, model.FailedOrganization{Name: p.Name, Reason: orgReason(p.Error)})
	}
	return out
}

// repairOrgBlock fixes the two malformations legacy workers are known to
// produce: the bare `[object Object]` token and trailing commas before a
// closing bracket.
func repairOrgBlock(raw string) string {
	repaired := objectPlaceholderRe.ReplaceAllString(raw, `: "[object Object]"`)
	repaired = trailingCommaRe.ReplaceAllString(repaired, "$1")
	return repaired
}

// orgReason derives an entry's reason with the priority: string error field,
// then nested error.error.message, then the no-reason literal. A repaired
// placeholder token counts as no reason.
func orgReason(raw json.RawMessage) string {
	if len(raw) == 0 {
		return noReason
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" || s == "[object Object]" {
			return noReason
		}
		return s
	}

	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	return noReason
}

func orgsFromReasons(reasons map[string]string) []model.FailedOrganization {
	out := make([]model.FailedOrganization, 0, len(reasons))
	for name, reason := range reasons {
		out = append(out, model.FailedOrganization{Name: name, Reason: reason})
	}
	return out
}

func findLine(lines []string, marker string) (string, bool) {
	for _, line := range lines {
		if strings.Contains(line, marker) {
			return line, true
		}
	}
	return "", false
}
