// package formatter renders reconciliation and sync reports to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"cratesync/internal/models"
	"cratesync/internal/tasks"
)

// sortedRecords returns a result's records in track-id order for stable output.
func sortedRecords(records map[string]models.MatchRecord) []models.MatchRecord {
	out := make([]models.MatchRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}

// MatchReportToCSV converts a reconciliation result to CSV with columns:
// Track id, Artist, Title, Status, Remote URI, Confidence, Note
func MatchReportToCSV(result *tasks.ReconcileResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Track id", "Artist", "Title", "Status", "Remote URI", "Confidence", "Note"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range sortedRecords(result.Records) {
		confidence := ""
		if rec.Status == models.StatusAuto {
			confidence = strconv.FormatFloat(rec.Confidence, 'f', 3, 64)
		}
		row := []string{
			rec.TrackID,
			rec.Artist,
			rec.Title,
			string(rec.Status),
			rec.RemoteURI,
			confidence,
			rec.Note,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// MatchReportToMarkdown converts a reconciliation result to Markdown: a
// summary block plus the tracks that still need attention.
func MatchReportToMarkdown(result *tasks.ReconcileResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Match Report\n\n")
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", len(result.Records)))
	buf.WriteString(fmt.Sprintf("**Matched**: %d (%d auto, %d manual)\n", result.Matched(), result.Auto, result.Manual))
	buf.WriteString(fmt.Sprintf("**Not available**: %d\n", result.NotAvailable))
	buf.WriteString(fmt.Sprintf("**Ambiguous**: %d\n", result.Ambiguous))
	buf.WriteString(fmt.Sprintf("**Pending**: %d\n", result.Pending))
	buf.WriteString(fmt.Sprintf("**Lookups**: %d (%d served from cache)\n\n", result.Lookups, result.CacheHits))

	var attention []models.MatchRecord
	for _, rec := range sortedRecords(result.Records) {
		if rec.Status == models.StatusPending || rec.Status == models.StatusAmbiguous {
			attention = append(attention, rec)
		}
	}
	if len(attention) > 0 {
		buf.WriteString("## Needs Attention\n\n")
		buf.WriteString("| Track id | Artist | Title | Status | Note |\n")
		buf.WriteString("|----------|--------|-------|--------|------|\n")
		for _, rec := range attention {
			buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n", rec.TrackID, rec.Artist, rec.Title, rec.Status, rec.Note))
		}
	}

	return buf.Bytes(), nil
}

// MatchReportToText converts a reconciliation result to a terminal-friendly
// summary.
func MatchReportToText(result *tasks.ReconcileResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracks: %d\n", len(result.Records)))
	buf.WriteString(fmt.Sprintf("Matched: %d (%d auto, %d manual)\n", result.Matched(), result.Auto, result.Manual))
	buf.WriteString(fmt.Sprintf("Not available: %d\n", result.NotAvailable))
	buf.WriteString(fmt.Sprintf("Ambiguous: %d\n", result.Ambiguous))
	buf.WriteString(fmt.Sprintf("Pending: %d\n", result.Pending))
	buf.WriteString(fmt.Sprintf("Lookups: %d (%d cached)\n", result.Lookups, result.CacheHits))

	i := 0
	for _, rec := range sortedRecords(result.Records) {
		if rec.Status != models.StatusPending && rec.Status != models.StatusAmbiguous {
			continue
		}
		if i == 0 {
			buf.WriteString("\nNeeds attention:\n")
		}
		i++
		note := ""
		if rec.Note != "" {
			note = fmt.Sprintf(" (%s)", rec.Note)
		}
		buf.WriteString(fmt.Sprintf("%d. [%s] %s - %s: %s%s\n", i, rec.TrackID, rec.Artist, rec.Title, rec.Status, note))
	}

	return buf.Bytes(), nil
}

// SyncReportToText renders a sync result playlist by playlist, including the
// edit scripts so dry-run output shows exactly what would change.
func SyncReportToText(result *tasks.SyncResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlists: %d (%d applied)\n\n", len(result.Entries), result.Applied()))
	for _, entry := range result.Entries {
		status := "unchanged"
		switch {
		case entry.Err != nil:
			status = fmt.Sprintf("failed: %v", entry.Err)
		case entry.Applied:
			status = "applied"
		case !entry.Script.Empty():
			status = "planned"
		}
		created := ""
		if entry.Created {
			created = " (new)"
		}
		buf.WriteString(fmt.Sprintf("%s%s: %s\n", entry.Name, created, status))
		if !entry.Script.Empty() {
			buf.WriteString(entry.Script.String())
			buf.WriteString("\n")
		}
		if len(entry.RemoteOnly) > 0 {
			buf.WriteString("  remote-only tracks (removed by sync, add locally to keep):\n")
			for _, uri := range entry.RemoteOnly {
				buf.WriteString(fmt.Sprintf("    %s\n", uri))
			}
		}
	}

	return buf.Bytes(), nil
}

// SyncReportToMarkdown renders a sync result as a Markdown table.
func SyncReportToMarkdown(result *tasks.SyncResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Sync Report\n\n")
	buf.WriteString(fmt.Sprintf("**Playlists**: %d\n", len(result.Entries)))
	buf.WriteString(fmt.Sprintf("**Applied**: %d\n\n", result.Applied()))

	buf.WriteString("| Playlist | Remote id | New | Edits | Remote-only | Status |\n")
	buf.WriteString("|----------|-----------|-----|-------|-------------|--------|\n")
	for _, entry := range result.Entries {
		status := "unchanged"
		switch {
		case entry.Err != nil:
			status = "failed"
		case entry.Applied:
			status = "applied"
		case !entry.Script.Empty():
			status = "planned"
		}
		created := "no"
		if entry.Created {
			created = "yes"
		}
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %s |\n",
			entry.Name, entry.RemoteID, created, len(entry.Script.Ops), len(entry.RemoteOnly), status))
	}

	return buf.Bytes(), nil
}

// SummaryJSON generates a JSON representation of the run counters (without
// the full record table).
func SummaryJSON(result *tasks.ReconcileResult) ([]byte, error) {
	summary := struct {
		Tracks       int `json:"tracks"`
		Auto         int `json:"auto"`
		Manual       int `json:"manual"`
		NotAvailable int `json:"not_available"`
		Ambiguous    int `json:"ambiguous"`
		Pending      int `json:"pending"`
		Lookups      int `json:"lookups"`
		CacheHits    int `json:"cache_hits"`
	}{
		Tracks:       len(result.Records),
		Auto:         result.Auto,
		Manual:       result.Manual,
		NotAvailable: result.NotAvailable,
		Ambiguous:    result.Ambiguous,
		Pending:      result.Pending,
		Lookups:      result.Lookups,
		CacheHits:    result.CacheHits,
	}
	return json.MarshalIndent(summary, "", "  ")
}

// WriteMatchReport writes a reconciliation report in the format implied by
// the path extension (.csv, .md, anything else plain text).
func WriteMatchReport(result *tasks.ReconcileResult, path string) error {
	var (
		data []byte
		err  error
	)
	switch {
	case hasExt(path, ".csv"):
		data, err = MatchReportToCSV(result)
	case hasExt(path, ".md"):
		data, err = MatchReportToMarkdown(result)
	case hasExt(path, ".json"):
		data, err = SummaryJSON(result)
	default:
		data, err = MatchReportToText(result)
	}
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func hasExt(path, ext string) bool {
	return len(path) >= len(ext) && path[len(path)-len(ext):] == ext
}
