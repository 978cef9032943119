package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"reachcheck/internal/models"
)

var csvHeader = []string{
	"input_number",
	"account_id",
	"registered",
	"active",
	"ban_kind",
	"confidence",
	"review",
	"probes_executed",
	"probes_successful",
	"response_time_ms",
	"summary",
}

// WriteCSV renders results as CSV with a fixed header row.
func WriteCSV(w io.Writer, results []*models.ValidationResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		confidence := ""
		if res.Ban.Confidence != nil {
			confidence = strconv.FormatFloat(*res.Ban.Confidence, 'f', 2, 64)
		}
		row := []string{
			res.InputNumber,
			res.AccountID,
			strconv.FormatBool(res.Registered),
			strconv.FormatBool(res.Active),
			string(res.Ban.Kind),
			confidence,
			string(res.Review.Kind),
			strconv.Itoa(res.Diagnostics.ProbesExecuted),
			strconv.Itoa(res.Diagnostics.ProbesSuccessful),
			strconv.FormatInt(res.Diagnostics.ResponseTimeMs, 10),
			res.Summary,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON renders results as an indented JSON array.
func WriteJSON(w io.Writer, results []*models.ValidationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}

// Summarize produces a one-line human-readable digest of a result.
func Summarize(res *models.ValidationResult) string {
	if res == nil {
		return ""
	}
	switch {
	case !res.Registered:
		return fmt.Sprintf("%s: not registered", res.InputNumber)
	case res.Ban.IsBanned:
		return fmt.Sprintf("%s: banned (%s), review %s", res.InputNumber, res.Ban.Kind, res.Review.Kind)
	default:
		return fmt.Sprintf("%s: active, %d/%d probes ok in %dms",
			res.InputNumber,
			res.Diagnostics.ProbesSuccessful,
			res.Diagnostics.ProbesExecuted,
			res.Diagnostics.ResponseTimeMs,
		)
	}
}
