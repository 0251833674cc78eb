package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimestampLayouts are the timestamp encodings accepted from the history API.
// The backend writes naive ISO-8601 (no offset); those are read in the caller's location.
var TimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses a history timestamp, interpreting offset-less values in loc
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	value = strings.TrimSpace(value)
	for _, layout := range TimestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// Metadata describes the reporting period of an analysis
type Metadata struct {
	Period    string `json:"period"`
	TotalDays int    `json:"total_days,omitempty"`
}

// Inputs are the figures the analysis was computed from
type Inputs struct {
	SalesAmount     float64 `json:"sales_amount"`
	AdvertisingCost float64 `json:"advertising_cost"`
	RefundAmount    float64 `json:"refund_amount"`

	TotalDiscount float64 `json:"total_discount,omitempty"`
	TargetRatio   float64 `json:"target_ratio,omitempty"`
}

// Results are the backend-computed outputs of an analysis
type Results struct {
	NetSales               float64 `json:"net_sales"`
	SalesAdvertisingRatio  float64 `json:"sales_advertising_ratio"`
	EffectiveDiscountRatio float64 `json:"effective_discount_ratio"`

	DailyAvgNetSales            float64 `json:"daily_avg_net_sales,omitempty"`
	EffectiveDiscount           float64 `json:"effective_discount,omitempty"`
	CorrectedRatio              float64 `json:"corrected_ratio,omitempty"`
	AppropriateAdvertising      float64 `json:"appropriate_advertising,omitempty"`
	DailyAppropriateAdvertising float64 `json:"daily_appropriate_advertising,omitempty"`
}

// AnalysisRecord is one stored sales analysis. Records are read-only on this side.
type AnalysisRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	Inputs    Inputs    `json:"inputs"`
	Results   Results   `json:"results"`
}

// RefundRatio returns refunds as a percentage of sales, 0 when there were no sales
func (r *AnalysisRecord) RefundRatio() float64 {
	if r.Inputs.SalesAmount == 0 {
		return 0
	}
	return r.Inputs.RefundAmount / r.Inputs.SalesAmount * 100
}

// DiscountRatioPercent returns the effective discount ratio as a percentage
func (r *AnalysisRecord) DiscountRatioPercent() float64 {
	return r.Results.EffectiveDiscountRatio * 100
}

// AdRatioPercent returns the sales/advertising ratio as a percentage
func (r *AnalysisRecord) AdRatioPercent() float64 {
	return r.Results.SalesAdvertisingRatio * 100
}

// RecordSet wraps a slice of records with filtering/sorting helpers.
// Every helper returns a new set; the receiver is never modified.
type RecordSet struct {
	Records []AnalysisRecord
}

// NewRecordSet creates a RecordSet holding a copy of records
func NewRecordSet(records []AnalysisRecord) *RecordSet {
	copied := make([]AnalysisRecord, len(records))
	copy(copied, records)
	return &RecordSet{Records: copied}
}

// Len returns the number of records
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Copy creates a shallow copy of the set
func (rs *RecordSet) Copy() *RecordSet {
	if rs == nil {
		return &RecordSet{}
	}
	return NewRecordSet(rs.Records)
}

// SortAscending returns the records oldest first. Equal timestamps keep their order.
func (rs *RecordSet) SortAscending() *RecordSet {
	sorted := rs.Copy()
	sort.SliceStable(sorted.Records, func(i, j int) bool {
		return sorted.Records[i].Timestamp.Before(sorted.Records[j].Timestamp)
	})
	return sorted
}

// SortDescending returns the records newest first
func (rs *RecordSet) SortDescending() *RecordSet {
	sorted := rs.Copy()
	sort.SliceStable(sorted.Records, func(i, j int) bool {
		return sorted.Records[i].Timestamp.After(sorted.Records[j].Timestamp)
	})
	return sorted
}

// StartOfDay returns midnight of t's calendar day in t's location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// FilterByDateRange returns records whose timestamp falls within
// [start 00:00, end end-of-day]. A zero bound leaves that side open.
func (rs *RecordSet) FilterByDateRange(start, end time.Time) *RecordSet {
	result := &RecordSet{}
	if rs == nil {
		return result
	}

	var lower, upper time.Time
	if !start.IsZero() {
		lower = StartOfDay(start)
	}
	if !end.IsZero() {
		upper = EndOfDay(end)
	}

	for _, r := range rs.Records {
		if !lower.IsZero() && r.Timestamp.Before(lower) {
			continue
		}
		if !upper.IsZero() && r.Timestamp.After(upper) {
			continue
		}
		result.Records = append(result.Records, r)
	}
	return result
}

// Find returns the record with the given id
func (rs *RecordSet) Find(id string) (AnalysisRecord, bool) {
	if rs == nil {
		return AnalysisRecord{}, false
	}
	for _, r := range rs.Records {
		if r.ID == id {
			return r, true
		}
	}
	return AnalysisRecord{}, false
}

// Last returns the n-th record counted from the end (0 = last)
func (rs *RecordSet) Last(n int) (AnalysisRecord, bool) {
	idx := rs.Len() - 1 - n
	if idx < 0 || idx >= rs.Len() {
		return AnalysisRecord{}, false
	}
	return rs.Records[idx], true
}

// MinDate returns the earliest record timestamp
func (rs *RecordSet) MinDate() time.Time {
	if rs.Len() == 0 {
		return time.Time{}
	}
	minDate := rs.Records[0].Timestamp
	for _, r := range rs.Records[1:] {
		if r.Timestamp.Before(minDate) {
			minDate = r.Timestamp
		}
	}
	return minDate
}

// MaxDate returns the latest record timestamp
func (rs *RecordSet) MaxDate() time.Time {
	if rs.Len() == 0 {
		return time.Time{}
	}
	maxDate := rs.Records[0].Timestamp
	for _, r := range rs.Records[1:] {
		if r.Timestamp.After(maxDate) {
			maxDate = r.Timestamp
		}
	}
	return maxDate
}
