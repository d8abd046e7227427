package repositories

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"cratesync/internal/models"
	"cratesync/internal/shared"
)

// csvHeader is the persisted match table layout. The two "(input)" columns are
// human-owned; everything else is machine-owned. Changing this layout breaks
// existing tables, so treat it as a contract.
var csvHeader = []string{
	"Track id",
	"Artist",
	"Title",
	"Remote URI",
	"Remote URL (input)",
	"Retry auto match (input)",
	"Status",
	"Confidence",
	"Updated",
	"Note",
}

// URLParser converts a human-pasted remote track URL (or URI) into the
// canonical remote URI. Implementations live with the remote service.
type URLParser func(string) (string, error)

// MatchStore owns the MatchRecord lifecycle across runs.
type MatchStore struct {
	path   string
	parse  URLParser
	logger *log.Logger
}

// NewMatchStore creates a store persisting to path. parse converts pasted URLs
// from the input column; nil accepts values verbatim.
func NewMatchStore(path string, parse URLParser, logger *log.Logger) *MatchStore {
	if parse == nil {
		parse = func(s string) (string, error) { return s, nil }
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &MatchStore{path: path, parse: parse, logger: logger}
}

// Path returns the durable file location.
func (s *MatchStore) Path() string { return s.path }

// Load reads the match table. A missing file yields an empty mapping.
// Malformed rows are reported per row and treated as absent, so one bad edit
// never takes down the whole table.
func (s *MatchStore) Load() (map[string]models.MatchRecord, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.logger.Info("no match table found, starting fresh", "path", s.path)
		return map[string]models.MatchRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open match table: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read match table: %w", err)
	}

	records := make(map[string]models.MatchRecord)
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rec, err := parseRow(row)
		if err != nil {
			s.logger.Warn("skipping match table row", "line", i+1, "err", err)
			continue
		}
		records[rec.TrackID] = rec
	}
	return records, nil
}

func parseRow(row []string) (models.MatchRecord, error) {
	// tables written before the Note column was added have one column less
	if len(row) < len(csvHeader)-1 || len(row) > len(csvHeader) {
		return models.MatchRecord{}, fmt.Errorf("%w: expected %d columns, got %d", shared.ErrMalformedRow, len(csvHeader), len(row))
	}
	if row[0] == "" {
		return models.MatchRecord{}, fmt.Errorf("%w: missing track id", shared.ErrMalformedRow)
	}
	status := models.MatchStatus(row[6])
	if status == "" {
		status = models.StatusPending
	}
	if !models.ValidStatus(status) {
		return models.MatchRecord{}, fmt.Errorf("%w: unknown status %q", shared.ErrMalformedRow, row[6])
	}

	rec := models.MatchRecord{
		TrackID:   row[0],
		Artist:    row[1],
		Title:     row[2],
		RemoteURI: row[3],
		InputURL:  row[4],
		Retry:     truthy(row[5]),
		Status:    status,
	}
	if row[7] != "" {
		conf, err := strconv.ParseFloat(row[7], 64)
		if err != nil {
			return models.MatchRecord{}, fmt.Errorf("%w: bad confidence %q", shared.ErrMalformedRow, row[7])
		}
		rec.Confidence = conf
	}
	if row[8] != "" {
		if ts, err := time.Parse(time.RFC3339, row[8]); err == nil {
			rec.UpdatedAt = ts
		}
	}
	if len(row) > 9 {
		rec.Note = row[9]
	}
	return rec, nil
}

// truthy accepts the markers a human plausibly types into the retry column.
func truthy(s string) bool {
	switch s {
	case "1", "x", "X", "y", "Y", "yes", "true", "TRUE":
		return true
	}
	return false
}

// Save writes the full mapping crash-safely: the table is written to a
// temporary file in the same directory and atomically renamed over the old
// one, so a failure mid-write never corrupts the last-known-good table.
func (s *MatchStore) Save(records map[string]models.MatchRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".matches-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(csvHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rec := records[id]
		retry := ""
		if rec.Retry {
			retry = "1"
		}
		conf := ""
		if rec.Status == models.StatusAuto {
			conf = strconv.FormatFloat(rec.Confidence, 'f', 3, 64)
		}
		updated := ""
		if !rec.UpdatedAt.IsZero() {
			updated = rec.UpdatedAt.UTC().Format(time.RFC3339)
		}
		row := []string{rec.TrackID, rec.Artist, rec.Title, rec.RemoteURI, rec.InputURL, retry, string(rec.Status), conf, updated, rec.Note}
		if err := writer.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("csv writer error: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace match table: %w", err)
	}
	return nil
}

// Plan is the outcome of merging loaded records with the current library:
// which records carry forward untouched or via manual override, and which
// tracks need a fresh match this run.
type Plan struct {
	Records map[string]models.MatchRecord
	ToMatch []string // track IDs requiring a lookup, in library-stable order
}

// Merge applies the precedence rules to the loaded mapping, highest wins:
//
//  1. A manual-override input with the retry flag not set becomes (or stays)
//     manual-matched, or not-available when the sentinel was entered. The
//     engine never silently replaces a human decision.
//  2. A set retry flag discards any prior result, including overrides and the
//     not-available sentinel, and queues the track for re-matching.
//  3. Unresolved records (pending or ambiguous, no override input) are
//     requeued every run until they resolve; the search cache keeps this
//     cheap, and a run that aborts or hits a transient failure recovers on
//     the next invocation.
//  4. Matched and not-available records are kept as-is; unchanged tracks are
//     not re-matched, which bounds remote traffic.
//  5. Tracks with no prior record are queued for a fresh match.
//
// Records for tracks no longer present in the library are dropped.
func (s *MatchStore) Merge(existing map[string]models.MatchRecord, lib *models.Library, now time.Time) Plan {
	plan := Plan{Records: make(map[string]models.MatchRecord, len(lib.Tracks))}

	ids := make([]string, 0, len(lib.Tracks))
	for id := range lib.Tracks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		track := lib.Tracks[id]
		rec, ok := existing[id]
		if !ok {
			plan.ToMatch = append(plan.ToMatch, id)
			continue
		}

		// keep the readable columns in step with the library
		rec.Artist = track.Artist
		rec.Title = track.Title

		switch {
		case rec.Retry:
			// retry beats a simultaneous override: the human asked for a redo
			rec.Retry = false
			rec.InputURL = ""
			rec.RemoteURI = ""
			rec.Confidence = 0
			rec.Status = models.StatusPending
			plan.Records[id] = rec
			plan.ToMatch = append(plan.ToMatch, id)

		case rec.InputURL != "":
			if rec.InputURL == models.NotAvailableURI {
				rec.RemoteURI = models.NotAvailableURI
				rec.Status = models.StatusNotAvailable
				rec.Confidence = 0
				rec.InputURL = ""
				rec.UpdatedAt = now
			} else if uri, err := s.parse(rec.InputURL); err == nil {
				rec.RemoteURI = uri
				rec.Status = models.StatusManual
				rec.Confidence = 0
				rec.InputURL = ""
				rec.Note = ""
				rec.UpdatedAt = now
			} else {
				s.logger.Warn("unparseable remote URL input", "track", id, "input", rec.InputURL, "err", err)
				rec.Note = "invalid remote URL input"
			}
			plan.Records[id] = rec

		case rec.Status == models.StatusPending || rec.Status == models.StatusAmbiguous:
			plan.Records[id] = rec
			plan.ToMatch = append(plan.ToMatch, id)

		default:
			plan.Records[id] = rec
		}
	}
	return plan
}
