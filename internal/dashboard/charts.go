package dashboard

import (
	"time"

	"salesdash/internal/format"
	"salesdash/internal/models"
)

// Ad ratio distribution bands, in chart order
var AdRatioBuckets = []string{"<7.5%", "7.5–10%", "10–15%", ">15%"}

// Series colours shared by the JSON and PNG renderings
const (
	colorDark    = "#525252"
	colorMid     = "#737373"
	colorLight   = "#a3a3a3"
	colorLighter = "#d4d4d4"
	colorWhite   = "#ffffff"

	fillDark  = "rgba(82, 82, 82, 0.08)"
	fillMid   = "rgba(115, 115, 115, 0.08)"
	fillLight = "rgba(163, 163, 163, 0.08)"
)

// AdRatioBucket returns the index in AdRatioBuckets for a ratio given as a
// fraction. Comparisons are made on ratio*100.
func AdRatioBucket(ratio float64) int {
	pct := ratio * 100
	switch {
	case pct < 7.5:
		return 0
	case pct < 10:
		return 1
	case pct < 15:
		return 2
	default:
		return 3
	}
}

// BuildCharts builds the configuration of every canvas, keyed by canvas id.
// Records must be sorted oldest first; an empty set yields nil configurations.
// Axis labels are dates in loc.
func BuildCharts(rs *models.RecordSet, loc *time.Location) map[string]*models.ChartConfig {
	return map[string]*models.ChartConfig{
		SalesTrendCanvas:     SalesTrendChart(rs, loc),
		AdDistributionCanvas: AdDistributionChart(rs),
		RatioTrendCanvas:     RatioTrendChart(rs, loc),
	}
}

func chartLabel(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return format.ChartLabel(t)
}

// SalesTrendChart plots sales, net sales and advertising cost per record
func SalesTrendChart(rs *models.RecordSet, loc *time.Location) *models.ChartConfig {
	if rs.Len() == 0 {
		return nil
	}

	n := rs.Len()
	labels := make([]string, 0, n)
	sales := make([]float64, 0, n)
	net := make([]float64, 0, n)
	adCost := make([]float64, 0, n)
	for _, r := range rs.Records {
		labels = append(labels, chartLabel(r.Timestamp, loc))
		sales = append(sales, r.Inputs.SalesAmount)
		net = append(net, r.Results.NetSales)
		adCost = append(adCost, r.Inputs.AdvertisingCost)
	}

	return &models.ChartConfig{
		Type: "line",
		Data: models.ChartData{
			Labels: labels,
			Datasets: []models.Dataset{
				lineDataset("Sales", sales, colorDark, fillDark, true),
				lineDataset("Net sales", net, colorMid, fillMid, true),
				lineDataset("Ad cost", adCost, colorLight, fillLight, false),
			},
		},
		Options: lineOptions("currency", "tenThousandWon"),
	}
}

// AdDistributionChart tallies records per ad ratio band
func AdDistributionChart(rs *models.RecordSet) *models.ChartConfig {
	if rs.Len() == 0 {
		return nil
	}

	counts := make([]float64, len(AdRatioBuckets))
	for _, r := range rs.Records {
		counts[AdRatioBucket(r.Results.SalesAdvertisingRatio)]++
	}

	labels := make([]string, len(AdRatioBuckets))
	copy(labels, AdRatioBuckets)

	return &models.ChartConfig{
		Type: "doughnut",
		Data: models.ChartData{
			Labels: labels,
			Datasets: []models.Dataset{{
				Data:            counts,
				BackgroundColor: []string{colorDark, colorMid, colorLight, colorLighter},
				BorderColor:     colorWhite,
				BorderWidth:     2,
			}},
		},
		Options: map[string]interface{}{
			"responsive":          true,
			"maintainAspectRatio": false,
			"plugins": map[string]interface{}{
				"legend":  map[string]interface{}{"display": true, "position": "bottom"},
				"tooltip": map[string]interface{}{"valueFormat": "share"},
			},
		},
	}
}

// RatioTrendChart plots refund ratio and effective discount ratio, in percent
func RatioTrendChart(rs *models.RecordSet, loc *time.Location) *models.ChartConfig {
	if rs.Len() == 0 {
		return nil
	}

	n := rs.Len()
	labels := make([]string, 0, n)
	refund := make([]float64, 0, n)
	discount := make([]float64, 0, n)
	for i := range rs.Records {
		r := &rs.Records[i]
		labels = append(labels, chartLabel(r.Timestamp, loc))
		refund = append(refund, r.RefundRatio())
		discount = append(discount, r.DiscountRatioPercent())
	}

	return &models.ChartConfig{
		Type: "line",
		Data: models.ChartData{
			Labels: labels,
			Datasets: []models.Dataset{
				lineDataset("Refund rate", refund, colorMid, fillMid, true),
				lineDataset("Effective discount rate", discount, colorLight, fillLight, true),
			},
		},
		Options: lineOptions("percent", "percent"),
	}
}

func lineDataset(label string, data []float64, border, fill string, filled bool) models.Dataset {
	return models.Dataset{
		Label:           label,
		Data:            data,
		BorderColor:     border,
		BackgroundColor: fill,
		BorderWidth:     2,
		Tension:         0.4,
		Fill:            filled,
	}
}

// lineOptions names the tooltip and tick formats; the page script maps
// them onto Chart.js callbacks since functions cannot travel as JSON
func lineOptions(tooltipFormat, tickFormat string) map[string]interface{} {
	return map[string]interface{}{
		"responsive":          true,
		"maintainAspectRatio": false,
		"plugins": map[string]interface{}{
			"legend": map[string]interface{}{"display": true, "position": "top"},
			"tooltip": map[string]interface{}{
				"mode":        "index",
				"intersect":   false,
				"valueFormat": tooltipFormat,
			},
		},
		"scales": map[string]interface{}{
			"y": map[string]interface{}{
				"beginAtZero": true,
				"ticks":       map[string]interface{}{"valueFormat": tickFormat},
			},
		},
	}
}
