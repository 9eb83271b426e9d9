// package formatter renders generation results and library summaries to CSV, plain text, and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/pomokey/pomokey/internal/models"
	"github.com/pomokey/pomokey/internal/selector"
	"github.com/pomokey/pomokey/internal/shared"
	"github.com/pomokey/pomokey/internal/tasks"
)

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// SelectionToCSV converts a generation result to CSV with columns: Position, URI, Key, Mode, Duration
func SelectionToCSV(result *tasks.GenerateResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "URI", "Key", "Mode", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, pick := range result.Picks {
		record := []string{
			strconv.Itoa(i + 1),
			pick.URI,
			selector.KeyLabel(pick.Key),
			selector.ModeLabel(pick.Mode),
			FormatDuration(pick.DurationMS),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// SelectionToText converts a generation result to a plain text report
func SelectionToText(result *tasks.GenerateResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", result.PlaylistName))
	buf.WriteString(fmt.Sprintf("Snapshot: %s\n", result.SnapshotID))
	buf.WriteString(fmt.Sprintf("Seed: %d\n", result.Seed))
	buf.WriteString(fmt.Sprintf("Duration: %s of %s target\n", FormatDuration(result.ActualDurationMS), FormatDuration(result.TargetDurationMS)))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", result.TrackCount))

	for i, pick := range result.Picks {
		buf.WriteString(fmt.Sprintf("%d. %s %s [%s] %s\n", i+1,
			selector.KeyLabel(pick.Key), selector.ModeLabel(pick.Mode),
			FormatDuration(pick.DurationMS), pick.URI))
	}

	return buf.Bytes(), nil
}

// SelectionToJSON generates a pretty-printed JSON representation of a generation result
func SelectionToJSON(result *tasks.GenerateResult) ([]byte, error) {
	return shared.MarshalJSON(result, true)
}

// LibraryToText converts a cached library to a plain text summary with a key/mode histogram
func LibraryToText(lib *models.Library) ([]byte, error) {
	var buf bytes.Buffer

	analyzed := 0
	histogram := make(map[string]int)
	for _, track := range lib.Tracks {
		if track.Key == models.KeyUnknown {
			continue
		}
		analyzed++
		histogram[track.KeyName()]++
	}

	buf.WriteString(fmt.Sprintf("Tracks: %d\n", len(lib.Tracks)))
	buf.WriteString(fmt.Sprintf("Analyzed: %d\n", analyzed))
	if lib.ETag != "" {
		buf.WriteString(fmt.Sprintf("Revalidation token: %s\n", lib.ETag))
	}

	if analyzed > 0 {
		buf.WriteString("\nKeys:\n")
		for _, key := range models.KeyNames {
			for _, mode := range models.ModeNames {
				name := fmt.Sprintf("%s %s", key, mode)
				if count := histogram[name]; count > 0 {
					buf.WriteString(fmt.Sprintf("  %-9s %d\n", name, count))
				}
			}
		}
	}

	return buf.Bytes(), nil
}

// SelectionExportResult contains the paths of files created by WriteSelectionExport
type SelectionExportResult struct {
	TracksFile  string
	SummaryFile string
}

// WriteSelectionExport writes a generation result as a CSV track list with an accompanying JSON summary.
//
// Defaults to the playlist ID as the base filename & creates {base}_tracks.csv and {base}.json
func WriteSelectionExport(result *tasks.GenerateResult, baseFilepath string) (*SelectionExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = result.PlaylistID
	}

	csvData, err := SelectionToCSV(result)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	summaryJSON, err := SelectionToJSON(result)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary JSON: %w", err)
	}

	summaryFile := baseFilepath + ".json"
	if err := os.WriteFile(summaryFile, summaryJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write summary file: %w", err)
	}

	return &SelectionExportResult{
		TracksFile:  tracksFile,
		SummaryFile: summaryFile,
	}, nil
}
