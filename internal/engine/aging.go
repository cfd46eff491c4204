package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UnparseableAging is the sentinel reported for records whose receive
// timestamp cannot be parsed. Negative values stay out of aging averages
// and the bucket histogram.
const UnparseableAging = -1.0

const hoursPerDay = 24.0

// ParseReceiveDate parses the date part of a warehouse timestamp. The
// extracts mix separators ("2026-2-6 9:57:22", "2026/02/18 14:54:53") and
// single-digit month/day. The time of day is discarded.
func ParseReceiveDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	datePart := raw
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		datePart = raw[:i]
	}
	datePart = strings.ReplaceAll(datePart, "/", "-")

	parts := strings.Split(datePart, "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	year, month, day := parts[0], parts[1], parts[2]
	if len(month) == 1 {
		month = "0" + month
	}
	if len(day) == 1 {
		day = "0" + day
	}

	t, err := time.ParseInLocation("2006-01-02", fmt.Sprintf("%s-%s-%s", year, month, day), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// AgingClassifier turns receive timestamps into aging figures and legacy
// flags against a fixed reference time. The reference time is injected so
// a run is reproducible under test.
type AgingClassifier struct {
	cutover time.Time
	now     time.Time
}

// NewAgingClassifier creates a classifier for one run.
func NewAgingClassifier(cutover, now time.Time) *AgingClassifier {
	return &AgingClassifier{cutover: cutover, now: now}
}

// Aging holds the classification of one receive timestamp.
type Aging struct {
	// Days since receipt, fractional. UnparseableAging when the
	// timestamp did not parse.
	Days float64

	// Legacy is true when the receive date is unparseable or strictly
	// before the cutover. Parse failure fails open toward exclusion.
	Legacy bool
}

// Classify computes the aging figure and legacy flag for one timestamp.
func (ac *AgingClassifier) Classify(receiveTime string) Aging {
	received, ok := ParseReceiveDate(receiveTime)
	if !ok {
		return Aging{Days: UnparseableAging, Legacy: true}
	}

	return Aging{
		Days:   ac.now.Sub(received).Hours() / hoursPerDay,
		Legacy: received.Before(ac.cutover),
	}
}

// FormatAgingDays renders an aging figure for reports, with the sentinel
// rendered as empty.
func FormatAgingDays(days float64) string {
	if days < 0 {
		return ""
	}
	return strconv.FormatFloat(days, 'f', 1, 64)
}
