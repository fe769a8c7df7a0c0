// Package cli formats scan results, matches, and status for the Kurabe command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kurabe/internal/models"
	"github.com/hyperjump/kurabe/internal/storage"
	"github.com/hyperjump/kurabe/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteScanResult writes the outcome of a scan.
func WriteScanResult(w io.Writer, result *models.ScanResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\nScan %s\n", result.ScanLogID)
	fmt.Fprintf(w, "Document: %s\n", result.DocumentID)
	fmt.Fprintf(w, "Matches found: %d | Credits remaining: %d\n\n", result.MatchesFound, result.Credits)
	if len(result.TopMatches) == 0 {
		fmt.Fprintln(w, "No similar documents.")
		return nil
	}
	for i, m := range result.TopMatches {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%d. %s [%s] %.4f\n", i+1, displayTitle(m.Title, m.DocumentID), m.Tier, m.Score)
		fmt.Fprintf(w, "   ID: %s\n", m.DocumentID)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteMatches writes the stored matches of one document.
func WriteMatches(w io.Writer, docID string, related []*models.RelatedDocument, format OutputFormat) error {
	if format == OutputJSON {
		if related == nil {
			related = []*models.RelatedDocument{}
		}
		return writeJSON(w, map[string]interface{}{"document_id": docID, "matches": related})
	}
	fmt.Fprintf(w, "\n%d matches for %s\n\n", len(related), docID)
	for _, r := range related {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%s [%s] %.4f via %s", displayTitle(r.Document.Title, r.Document.ID),
			r.Match.Tier, r.Match.OverallScore, r.Match.Detail.Method)
		if r.Match.Detail.Provider != "" {
			fmt.Fprintf(w, " (%s)", r.Match.Detail.Provider)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "ID: %s\n", r.Document.ID)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Document.Content, 200))
	}
	return nil
}

// WriteUser writes an account and its balance.
func WriteUser(w io.Writer, user *models.User, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, user)
	}
	fmt.Fprintf(w, "User: %s (%s)\n", user.Username, user.ID)
	fmt.Fprintf(w, "Credits: %d (granted in total: %d)\n", user.Credits, user.TotalCreditsGranted)
	fmt.Fprintf(w, "Last reset: %s\n", user.LastCreditReset.Format("2006-01-02 15:04:05 MST"))
	return nil
}

// WriteStatus writes record counts and the database size.
func WriteStatus(w io.Writer, stats *storage.Stats, dbPath string, diskBytes int64, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{
			"documents":        stats.Documents,
			"matches":          stats.Matches,
			"scan_logs":        stats.ScanLogs,
			"users":            stats.Users,
			"database_path":    dbPath,
			"disk_usage_bytes": diskBytes,
		})
	}
	fmt.Fprintf(w, "Database: %s (%s)\n", dbPath, FormatBytes(diskBytes))
	fmt.Fprintf(w, "Documents: %d\n", stats.Documents)
	fmt.Fprintf(w, "Matches:   %d\n", stats.Matches)
	fmt.Fprintf(w, "Scans:     %d\n", stats.ScanLogs)
	fmt.Fprintf(w, "Users:     %d\n", stats.Users)
	return nil
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func displayTitle(title, id string) string {
	if title == "" {
		return id
	}
	return title
}
