package dashboard

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"

	"salesdash/internal/api"
	"salesdash/internal/forms"
	"salesdash/internal/models"
)

// QuickAddRules validate the quick-add form
var QuickAddRules = forms.Rules{
	"sales_amount": {
		Required:        true,
		Type:            "number",
		RequiredMessage: "Sales amount is required.",
	},
	"advertising_cost": {
		Required:        true,
		Type:            "number",
		RequiredMessage: "Advertising cost is required.",
	},
	"refund_amount": {
		Required:        true,
		Type:            "number",
		RequiredMessage: "Refund amount is required.",
	},
	"total_discount": {Type: "number"},
	"total_days":     {Type: "number", Min: forms.Limit(1), Max: forms.Limit(366)},
}

// SaveAnalysis validates a quick-add submission, stores it and reloads
func (c *Controller) SaveAnalysis(ctx context.Context, values url.Values) (string, error) {
	if !c.forms.Validate(QuickAddForm, values, QuickAddRules) {
		c.notes.Warning("Please correct the highlighted fields.")
		return "", ErrInvalidForm
	}
	data := c.forms.Collect(QuickAddForm, values)
	// a period such as "2024" must stay text
	data["period"] = values.Get("period")

	req := BuildSaveRequest(c.module, data)
	id, err := c.history.SaveAnalysis(ctx, req)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to save analysis")
		c.notes.Error("Failed to save the analysis: " + api.Message(err))
		return "", fmt.Errorf("saving analysis: %w", err)
	}

	c.forms.Reset(QuickAddForm)
	c.notes.Success("Analysis saved.")
	if err := c.Refresh(ctx); err != nil {
		c.notes.Error("Failed to reload the dashboard.")
		return id, err
	}
	return id, nil
}

// BuildSaveRequest derives the stored figures of a quick-add entry from its
// collected form values. Ratios are fractions of gross sales and are 0 when
// there were no sales.
func BuildSaveRequest(module string, data map[string]any) api.SaveRequest {
	sales := number(data["sales_amount"])
	adCost := number(data["advertising_cost"])
	refund := number(data["refund_amount"])
	discount := number(data["total_discount"])
	days := int(math.Round(number(data["total_days"])))

	net := sales - refund
	results := models.Results{
		NetSales:          net,
		EffectiveDiscount: discount,
	}
	if sales > 0 {
		results.SalesAdvertisingRatio = adCost / sales
		results.EffectiveDiscountRatio = discount / sales
	}
	if days > 0 {
		results.DailyAvgNetSales = net / float64(days)
	}

	period, _ := data["period"].(string)
	return api.SaveRequest{
		Module: module,
		Inputs: models.Inputs{
			SalesAmount:     sales,
			AdvertisingCost: adCost,
			RefundAmount:    refund,
			TotalDiscount:   discount,
		},
		Results: results,
		Metadata: models.Metadata{
			Period:    strings.TrimSpace(period),
			TotalDays: days,
		},
	}
}

func number(v any) float64 {
	f, _ := v.(float64)
	return f
}
