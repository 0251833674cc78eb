package dashboard

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"salesdash/internal/models"
)

// ExportSheetName is the worksheet holding exported records
const ExportSheetName = "Analyses"

// FilteredExportFilename names the workbook built from the filtered view
const FilteredExportFilename = "analysis_filtered.xlsx"

// ExportColumns are the workbook headers, in the order the backend export uses
var ExportColumns = []string{
	"ID", "Date", "Module", "Period", "Total days",
	"Sales", "Refund", "Total discount", "Ad cost", "Target ad ratio",
	"Net sales", "Daily avg net sales", "Effective discount", "Effective discount ratio",
	"Sales/ad ratio", "Corrected ratio", "Appropriate ad cost", "Daily appropriate ad cost",
}

// WriteWorkbook writes records as a single-sheet xlsx workbook
func WriteWorkbook(rs *models.RecordSet, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#525252"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr("yyyy-mm-dd hh:mm")})
	if err != nil {
		return fmt.Errorf("creating date style: %w", err)
	}

	header := make([]interface{}, len(ExportColumns))
	for i, col := range ExportColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(ExportSheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(ExportColumns))
	_ = f.SetCellStyle(ExportSheetName, "A1", lastCol+"1", headerStyle)
	_ = f.SetColWidth(ExportSheetName, "A", lastCol, 16)

	for i := range rs.Records {
		r := &rs.Records[i]
		row := []interface{}{
			r.ID,
			r.Timestamp,
			r.Module,
			r.Metadata.Period,
			r.Metadata.TotalDays,
			r.Inputs.SalesAmount,
			r.Inputs.RefundAmount,
			r.Inputs.TotalDiscount,
			r.Inputs.AdvertisingCost,
			r.Inputs.TargetRatio,
			r.Results.NetSales,
			r.Results.DailyAvgNetSales,
			r.Results.EffectiveDiscount,
			r.Results.EffectiveDiscountRatio,
			r.Results.SalesAdvertisingRatio,
			r.Results.CorrectedRatio,
			r.Results.AppropriateAdvertising,
			r.Results.DailyAppropriateAdvertising,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(ExportSheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
		dateCell, _ := excelize.CoordinatesToCellName(2, i+2)
		_ = f.SetCellStyle(ExportSheetName, dateCell, dateCell, dateStyle)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
