package dashboard

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"salesdash/internal/format"
	"salesdash/internal/models"
)

// Display text for KPI cards that have nothing to show
const (
	NoDataText      = "No data"
	AllPeriodsText  = "All periods"
	NoChangeText    = "-"
	UnavailableText = "N/A"
)

// CalculateStats aggregates records, which must be sorted oldest first.
// Sums are exact decimals so the result does not depend on record order.
func CalculateStats(rs *models.RecordSet) models.DashboardStats {
	var stats models.DashboardStats
	n := rs.Len()
	if n == 0 {
		return stats
	}

	sales := make([]decimal.Decimal, 0, n)
	net := make([]decimal.Decimal, 0, n)
	adRatios := make([]decimal.Decimal, 0, n)
	refundRatios := make([]decimal.Decimal, 0, n)
	discountRatios := make([]decimal.Decimal, 0, n)

	for i := range rs.Records {
		r := &rs.Records[i]
		sales = append(sales, decimal.NewFromFloat(r.Inputs.SalesAmount))
		net = append(net, decimal.NewFromFloat(r.Results.NetSales))
		adRatios = append(adRatios, decimal.NewFromFloat(r.Results.SalesAdvertisingRatio))
		refundRatios = append(refundRatios, decimal.NewFromFloat(refundFraction(r)))
		discountRatios = append(discountRatios, decimal.NewFromFloat(r.Results.EffectiveDiscountRatio))
	}

	stats.Count = n
	stats.TotalSales = sum(sales).InexactFloat64()
	stats.NetSales = sum(net).InexactFloat64()
	stats.AvgAdRatio = mean(adRatios).InexactFloat64()
	stats.AvgRefundRatio = mean(refundRatios).InexactFloat64()
	stats.AvgDiscountRatio = mean(discountRatios).InexactFloat64()
	stats.StartDate = rs.MinDate()
	stats.EndDate = rs.MaxDate()

	if recent, ok := rs.Last(0); ok {
		if previous, ok := rs.Last(1); ok {
			stats.SalesChange = percentChange(previous.Inputs.SalesAmount, recent.Inputs.SalesAmount)
			stats.NetSalesChange = percentChange(previous.Results.NetSales, recent.Results.NetSales)
			stats.AdRatioChange = percentChange(previous.Results.SalesAdvertisingRatio, recent.Results.SalesAdvertisingRatio)
		}
	}

	return stats
}

func refundFraction(r *models.AnalysisRecord) float64 {
	return r.RefundRatio() / 100
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return sum(values).Div(decimal.NewFromInt(int64(len(values))))
}

// percentChange is (recent-previous)/previous*100. A zero previous value
// has no meaningful percentage and yields an invalid change.
func percentChange(previous, recent float64) *models.Change {
	if previous == 0 {
		return &models.Change{}
	}
	p := decimal.NewFromFloat(previous)
	r := decimal.NewFromFloat(recent)
	pct := r.Sub(p).Div(p).Mul(decimal.NewFromInt(100))
	return &models.Change{Percent: pct.InexactFloat64(), Valid: true}
}

// BuildStatsView turns stats into the text, class and icon of each KPI element.
// filter is the active date window, zero when unfiltered.
func BuildStatsView(stats models.DashboardStats, filter Filter) models.StatsView {
	if stats.IsEmpty() {
		noData := models.StatCard{Text: NoDataText, Class: "stat-change"}
		return models.StatsView{
			TotalSales:     models.StatCard{Text: format.Currency(0)},
			NetSales:       models.StatCard{Text: format.Currency(0)},
			AvgAdRatio:     models.StatCard{Text: "0%"},
			TotalAnalyses:  models.StatCard{Text: "0"},
			SalesChange:    noData,
			NetSalesChange: noData,
			AdRatioChange:  noData,
			AnalysesInfo:   models.StatCard{Text: AllPeriodsText, Icon: "database"},
		}
	}

	return models.StatsView{
		TotalSales:     models.StatCard{Text: format.Currency(stats.TotalSales)},
		NetSales:       models.StatCard{Text: format.Currency(stats.NetSales)},
		AvgAdRatio:     models.StatCard{Text: format.Percentage(stats.AvgAdRatio)},
		TotalAnalyses:  models.StatCard{Text: strconv.Itoa(stats.Count)},
		SalesChange:    growthCard(stats.SalesChange),
		NetSalesChange: growthCard(stats.NetSalesChange),
		AdRatioChange:  adRatioCard(stats.AdRatioChange),
		AnalysesInfo:   periodCard(filter),
	}
}

// growthCard renders a change where an increase is favourable
func growthCard(c *models.Change) models.StatCard {
	if card, ok := placeholderCard(c); ok {
		return card
	}
	if c.Percent >= 0 {
		return models.StatCard{Text: format.SignedPercent(c.Percent), Class: "stat-change positive", Icon: "trending-up"}
	}
	return models.StatCard{Text: format.SignedPercent(c.Percent), Class: "stat-change negative", Icon: "trending-down"}
}

// adRatioCard renders an ad ratio change; a lower ratio is favourable
func adRatioCard(c *models.Change) models.StatCard {
	if card, ok := placeholderCard(c); ok {
		return card
	}
	class := "stat-change negative"
	if c.Percent <= 0 {
		class = "stat-change positive"
	}
	return models.StatCard{Text: format.SignedPercent(c.Percent), Class: class, Icon: "activity"}
}

func placeholderCard(c *models.Change) (models.StatCard, bool) {
	switch {
	case c == nil:
		return models.StatCard{Text: NoChangeText, Class: "stat-change"}, true
	case !c.Valid:
		return models.StatCard{Text: UnavailableText, Class: "stat-change"}, true
	}
	return models.StatCard{}, false
}

func periodCard(filter Filter) models.StatCard {
	if filter.IsZero() {
		return models.StatCard{Text: AllPeriodsText, Icon: "database"}
	}
	start, end := "", ""
	if !filter.Start.IsZero() {
		start = format.Date(filter.Start)
	}
	if !filter.End.IsZero() {
		end = format.Date(filter.End)
	}
	return models.StatCard{Text: strings.TrimSpace(start + " ~ " + end), Icon: "calendar"}
}
