// internal/sheets/parse.go
package sheets

import (
	"strconv"
	"strings"

	"github.com/clubforge/fantrack/internal/stats"
	"github.com/clubforge/fantrack/internal/store"
)

// Logical column names the header row must carry. Derived columns (Daily,
// Target, Carry-over) may also appear but are recomputed locally, so they
// are ignored on read.
const (
	colName = "name"
	colDay  = "day"
	colFans = "total fans"
)

// currentPeriodMarker flags the special first row some sheets carry ahead
// of the real header.
const currentPeriodMarker = "current period"

// ParseTable turns raw sheet values into observations. The dataset string
// is only used for error reporting.
func ParseTable(dataset string, values [][]string) ([]stats.RawObservation, error) {
	if len(values) == 0 {
		return nil, &store.DataIntegrityError{Dataset: dataset, Reason: "empty dataset"}
	}

	// Skip the "current period" marker row when present.
	start := 0
	if isMarkerRow(values[0]) {
		start = 1
	}
	if start >= len(values) {
		return nil, &store.DataIntegrityError{Dataset: dataset, Reason: "marker row with no header"}
	}

	header := values[start]
	nameIdx, dayIdx, fansIdx := -1, -1, -1
	for i, cell := range header {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case colName:
			nameIdx = i
		case colDay:
			dayIdx = i
		case colFans:
			fansIdx = i
		}
	}
	if nameIdx < 0 || dayIdx < 0 || fansIdx < 0 {
		return nil, &store.DataIntegrityError{
			Dataset: dataset,
			Reason:  "header missing required column (Name, Day, Total Fans)",
		}
	}

	var obs []stats.RawObservation
	for _, row := range values[start+1:] {
		if nameIdx >= len(row) || dayIdx >= len(row) {
			continue
		}
		member := strings.TrimSpace(row[nameIdx])
		if member == "" {
			continue
		}
		day, err := strconv.Atoi(strings.TrimSpace(row[dayIdx]))
		if err != nil || day < 1 {
			continue
		}

		var fans *int64
		if fansIdx < len(row) {
			fans = parseCount(row[fansIdx])
		}
		obs = append(obs, stats.RawObservation{Member: member, Day: day, Fans: fans})
	}

	if len(obs) == 0 {
		return nil, &store.DataIntegrityError{Dataset: dataset, Reason: "no data rows after header"}
	}
	return obs, nil
}

// isMarkerRow detects the optional "current period" banner row.
func isMarkerRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(row[0]), currentPeriodMarker)
}

// parseCount cleans one cumulative-count cell. Empty, "nan" and "none"
// cells mean the member was not observed that day, which is different from
// an observed "0". Thousands separators are tolerated, as are float
// renderings of integers.
func parseCount(cell string) *int64 {
	v := strings.ToLower(strings.TrimSpace(cell))
	if v == "" || v == "nan" || v == "none" {
		return nil
	}
	v = strings.ReplaceAll(v, ",", "")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	n := int64(f)
	return &n
}
