// Package format renders numbers, money, ratios and dates for the dashboard.
// The locale is fixed to ko-KR so output is deterministic for a given input.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencySymbol is prefixed to every currency amount (KRW)
const CurrencySymbol = "₩"

var printer = message.NewPrinter(language.Korean)

// roundTo rounds half away from zero, matching browser Intl rounding
func roundTo(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	pow := math.Pow10(decimals)
	r := math.Round(v*pow) / pow
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// Number formats v with digit grouping and exactly decimals fraction digits
func Number(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	return printer.Sprint(number.Decimal(roundTo(v, decimals),
		number.MinFractionDigits(decimals),
		number.MaxFractionDigits(decimals),
	))
}

// Currency formats an amount in won with no fraction digits: ₩1,234,567
func Currency(amount float64) string {
	r := roundTo(amount, 0)
	if r < 0 {
		return "-" + CurrencySymbol + Number(-r, 0)
	}
	return CurrencySymbol + Number(r, 0)
}

// Percentage formats a fraction as a percentage with one or two fraction digits:
// 0.0875 -> 8.75%, 0.08 -> 8.0%
func Percentage(fraction float64) string {
	return percentValue(fraction*100, 1, 2)
}

// PercentValue formats a value that is already a percentage, with fixed decimals
func PercentValue(v float64, decimals int) string {
	return percentValue(v, decimals, decimals)
}

func percentValue(v float64, minDigits, maxDigits int) string {
	return printer.Sprint(number.Decimal(roundTo(v, maxDigits),
		number.MinFractionDigits(minDigits),
		number.MaxFractionDigits(maxDigits),
	)) + "%"
}

// SignedPercent formats a percentage change with one decimal and an explicit
// plus sign for non-negative values: +10.0%, -3.5%
func SignedPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if v >= 0 {
		s = "+" + s
	}
	return s + "%"
}

// TenThousandWon formats an axis value in units of 10,000 won (만원)
func TenThousandWon(v float64) string {
	return strconv.FormatFloat(v/10000, 'f', 0, 64) + "만원"
}

// ChartLabel formats a timestamp as a zero-padded yy.mm.dd axis label
func ChartLabel(t time.Time) string {
	return t.Format("06.01.02")
}

// Date formats a calendar date the way ko-KR renders numeric dates: 2024. 01. 15.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006. 01. 02.")
}

// DateTime formats a timestamp for table rows: 2024년 1월 15일 오후 03:04
func DateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	meridiem := "오전"
	hour := t.Hour()
	if hour >= 12 {
		meridiem = "오후"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d년 %d월 %d일 %s %02d:%02d",
		t.Year(), int(t.Month()), t.Day(), meridiem, hour, t.Minute())
}

// InputDate formats a date for an <input type="date"> value
func InputDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// ParseInputDate parses the value of an <input type="date"> in loc.
// Blank input yields the zero time and no error.
func ParseInputDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}
