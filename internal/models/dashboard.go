package models

import "time"

// Change is a period-over-period percentage change. Valid is false when the
// previous value was zero and no meaningful percentage exists.
type Change struct {
	Percent float64 `json:"percent"`
	Valid   bool    `json:"valid"`
}

// DashboardStats contains the KPI aggregates for the current record selection
type DashboardStats struct {
	TotalSales       float64 `json:"total_sales"`
	NetSales         float64 `json:"net_sales"`
	AvgAdRatio       float64 `json:"avg_ad_ratio"`
	AvgRefundRatio   float64 `json:"avg_refund_ratio"`
	AvgDiscountRatio float64 `json:"avg_discount_ratio"`
	Count            int     `json:"count"`

	// Latest vs previous record; nil when fewer than two records are selected
	SalesChange    *Change `json:"sales_change,omitempty"`
	NetSalesChange *Change `json:"net_sales_change,omitempty"`
	AdRatioChange  *Change `json:"ad_ratio_change,omitempty"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Filtered  bool      `json:"filtered"`
}

// IsEmpty reports whether the stats were computed over no records
func (s *DashboardStats) IsEmpty() bool {
	return s == nil || s.Count == 0
}

// StatCard is the display state of one KPI element on the page
type StatCard struct {
	Text  string `json:"text"`
	Class string `json:"class,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// StatsView maps the KPI element ids of the dashboard page to their display state
type StatsView struct {
	TotalSales     StatCard `json:"totalSales"`
	NetSales       StatCard `json:"netSales"`
	AvgAdRatio     StatCard `json:"avgAdRatio"`
	TotalAnalyses  StatCard `json:"totalAnalyses"`
	SalesChange    StatCard `json:"salesChange"`
	NetSalesChange StatCard `json:"netSalesChange"`
	AdRatioChange  StatCard `json:"adRatioChange"`
	AnalysesInfo   StatCard `json:"analysesInfo"`
}

// ChartConfig is a Chart.js chart definition
type ChartConfig struct {
	Type    string                 `json:"type"` // line, doughnut
	Data    ChartData              `json:"data"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ChartData holds the labels and series of a chart
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one Chart.js series
type Dataset struct {
	Label           string      `json:"label,omitempty"`
	Data            []float64   `json:"data"`
	BorderColor     string      `json:"borderColor,omitempty"`
	BackgroundColor interface{} `json:"backgroundColor,omitempty"` // string or []string
	BorderWidth     int         `json:"borderWidth,omitempty"`
	Tension         float64     `json:"tension,omitempty"`
	Fill            bool        `json:"fill"`
}

// TableRow is one formatted row of the record table
type TableRow struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Period       string `json:"period"`
	SalesAmount  string `json:"sales_amount"`
	NetSales     string `json:"net_sales"`
	AdCost       string `json:"advertising_cost"`
	AdRatio      string `json:"ad_ratio"`
	RefundRatio  string `json:"refund_ratio"`
	DetailURL    string `json:"detail_url"`
	DeleteAction string `json:"delete_action"`
}
