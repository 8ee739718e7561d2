package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"guida/internal/aggregate"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// parseRecords converts a values matrix (as returned by the Sheets API) into
// records. The header row must contain timestamp and amount; category and
// business_id are optional and any other column becomes an attribute.
// Rows with an unparseable timestamp or amount are kept with the field
// unset so the pipeline counts them as malformed. Blank rows are skipped.
func parseRecords(values [][]any, businessID string, loc *time.Location) ([]aggregate.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	for i := range headers {
		headers[i] = strings.ToLower(headers[i])
	}
	colTime := indexOf(headers, "timestamp")
	colAmount := indexOf(headers, "amount")
	colCategory := indexOf(headers, "category")
	colBusiness := indexOf(headers, "business_id")
	if colTime == -1 || colAmount == -1 {
		missing := make([]string, 0, 2)
		if colTime == -1 {
			missing = append(missing, "timestamp")
		}
		if colAmount == -1 {
			missing = append(missing, "amount")
		}
		return nil, fmt.Errorf("unexpected records header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	var out []aggregate.Record
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		if businessID != "" && colBusiness != -1 && safeGet(row, colBusiness) != businessID {
			continue
		}

		r := aggregate.Record{
			Timestamp: parseTimestamp(safeGet(row, colTime), loc),
			Category:  safeGet(row, colCategory),
			Amount:    parseAmount(safeGet(row, colAmount)),
		}
		for j, h := range headers {
			if j == colTime || j == colAmount || j == colCategory || j == colBusiness || h == "" {
				continue
			}
			if v := safeGet(row, j); v != "" {
				if r.Attributes == nil {
					r.Attributes = map[string]string{}
				}
				r.Attributes[h] = v
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func parseTimestamp(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseAmount accepts a decimal comma; thousands separators are not
// supported.
func parseAmount(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
