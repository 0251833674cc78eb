package api

import (
	"fmt"
	"time"

	"salesdash/internal/models"
)

// Pointer fields distinguish a missing value from zero.

type historyResponse struct {
	Success bool         `json:"success"`
	Data    []wireRecord `json:"data"`
	Count   int          `json:"count"`
	Message string       `json:"message"`
}

type wireRecord struct {
	ID        *string       `json:"id"`
	Timestamp *string       `json:"timestamp"`
	Module    string        `json:"module"`
	Metadata  *wireMetadata `json:"metadata"`
	Inputs    *wireInputs   `json:"inputs"`
	Results   *wireResults  `json:"results"`
}

type wireMetadata struct {
	Period    string   `json:"period"`
	TotalDays *float64 `json:"total_days"`
}

type wireInputs struct {
	SalesAmount     *float64 `json:"sales_amount"`
	AdvertisingCost *float64 `json:"advertising_cost"`
	RefundAmount    *float64 `json:"refund_amount"`
	TotalDiscount   *float64 `json:"total_discount"`
	TargetRatio     *float64 `json:"target_ratio"`
}

type wireResults struct {
	NetSales                    *float64 `json:"net_sales"`
	SalesAdvertisingRatio       *float64 `json:"sales_advertising_ratio"`
	EffectiveDiscountRatio      *float64 `json:"effective_discount_ratio"`
	DailyAvgNetSales            *float64 `json:"daily_avg_net_sales"`
	EffectiveDiscount           *float64 `json:"effective_discount"`
	CorrectedRatio              *float64 `json:"corrected_ratio"`
	AppropriateAdvertising      *float64 `json:"appropriate_advertising"`
	DailyAppropriateAdvertising *float64 `json:"daily_appropriate_advertising"`
}

func (w wireRecord) record(loc *time.Location) (models.AnalysisRecord, error) {
	var rec models.AnalysisRecord

	if w.ID == nil || *w.ID == "" {
		return rec, fmt.Errorf("missing id")
	}
	rec.ID = *w.ID

	if w.Timestamp == nil {
		return rec, fmt.Errorf("%s: missing timestamp", rec.ID)
	}
	ts, err := models.ParseTimestamp(*w.Timestamp, loc)
	if err != nil {
		return rec, fmt.Errorf("%s: %w", rec.ID, err)
	}
	rec.Timestamp = ts
	rec.Module = w.Module

	if w.Metadata != nil {
		rec.Metadata.Period = w.Metadata.Period
		rec.Metadata.TotalDays = int(optional(w.Metadata.TotalDays))
	}

	if w.Inputs == nil {
		return rec, fmt.Errorf("%s: missing inputs", rec.ID)
	}
	in := w.Inputs
	for name, v := range map[string]*float64{
		"sales_amount":     in.SalesAmount,
		"advertising_cost": in.AdvertisingCost,
		"refund_amount":    in.RefundAmount,
	} {
		if v == nil {
			return rec, fmt.Errorf("%s: missing inputs.%s", rec.ID, name)
		}
		if *v < 0 {
			return rec, fmt.Errorf("%s: negative inputs.%s", rec.ID, name)
		}
	}
	rec.Inputs = models.Inputs{
		SalesAmount:     *in.SalesAmount,
		AdvertisingCost: *in.AdvertisingCost,
		RefundAmount:    *in.RefundAmount,
		TotalDiscount:   optional(in.TotalDiscount),
		TargetRatio:     optional(in.TargetRatio),
	}

	if w.Results == nil {
		return rec, fmt.Errorf("%s: missing results", rec.ID)
	}
	res := w.Results
	for name, v := range map[string]*float64{
		"net_sales":                res.NetSales,
		"sales_advertising_ratio":  res.SalesAdvertisingRatio,
		"effective_discount_ratio": res.EffectiveDiscountRatio,
	} {
		if v == nil {
			return rec, fmt.Errorf("%s: missing results.%s", rec.ID, name)
		}
	}
	rec.Results = models.Results{
		NetSales:                    *res.NetSales,
		SalesAdvertisingRatio:       *res.SalesAdvertisingRatio,
		EffectiveDiscountRatio:      *res.EffectiveDiscountRatio,
		DailyAvgNetSales:            optional(res.DailyAvgNetSales),
		EffectiveDiscount:           optional(res.EffectiveDiscount),
		CorrectedRatio:              optional(res.CorrectedRatio),
		AppropriateAdvertising:      optional(res.AppropriateAdvertising),
		DailyAppropriateAdvertising: optional(res.DailyAppropriateAdvertising),
	}

	return rec, nil
}

func optional(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
