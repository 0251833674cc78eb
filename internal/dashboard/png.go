package dashboard

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"salesdash/internal/format"
	"salesdash/internal/models"
)

// PNG dimensions of a rendered canvas
const (
	PNGWidth  = 800
	PNGHeight = 320
)

// RenderPNG draws a chart configuration as a PNG image
func RenderPNG(canvasID string, cfg models.ChartConfig, w io.Writer) error {
	switch cfg.Type {
	case "doughnut":
		return renderDonut(cfg, w)
	case "line":
		formatter := tenThousandWonFormatter
		if canvasID == RatioTrendCanvas {
			formatter = percentFormatter
		}
		return renderLine(cfg, formatter, w)
	default:
		return fmt.Errorf("unsupported chart type %q", cfg.Type)
	}
}

func renderLine(cfg models.ChartConfig, formatter chart.ValueFormatter, w io.Writer) error {
	n := len(cfg.Data.Labels)
	if n == 0 {
		return fmt.Errorf("chart has no points")
	}

	// go-chart needs two distinct x values, so a lone point is drawn as a
	// flat segment from x=0 to x=1
	width := n
	if width < 2 {
		width = 2
	}
	xs := make([]float64, width)
	ticks := make([]chart.Tick, width)
	for i := range xs {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i)}
		if i < n {
			ticks[i].Label = cfg.Data.Labels[i]
		}
	}

	maxY := 0.0
	series := make([]chart.Series, 0, len(cfg.Data.Datasets))
	for _, ds := range cfg.Data.Datasets {
		ys := padValues(ds.Data, width)
		for _, v := range ys {
			maxY = math.Max(maxY, v)
		}
		style := chart.Style{
			StrokeColor: hexColor(ds.BorderColor),
			StrokeWidth: float64(ds.BorderWidth),
			DotWidth:    3,
			DotColor:    hexColor(ds.BorderColor),
		}
		if ds.Fill {
			style.FillColor = hexColor(ds.BorderColor).WithAlpha(20)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    ds.Label,
			XValues: xs,
			YValues: ys,
			Style:   style,
		})
	}

	// all-zero data would otherwise give a zero-height range
	if maxY <= 0 {
		maxY = 1
	}

	graph := chart.Chart{
		Width:  PNGWidth,
		Height: PNGHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(width - 1)},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: maxY * 1.1},
			ValueFormatter: formatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendThin(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// padValues returns exactly width values, repeating the last one (or zero)
// into any missing slots
func padValues(values []float64, width int) []float64 {
	out := make([]float64, width)
	copy(out, values)
	if len(values) == 0 {
		return out
	}
	last := values[len(values)-1]
	for i := len(values); i < width; i++ {
		out[i] = last
	}
	return out
}

func renderDonut(cfg models.ChartConfig, w io.Writer) error {
	if len(cfg.Data.Datasets) == 0 {
		return fmt.Errorf("chart has no data")
	}
	ds := cfg.Data.Datasets[0]
	colors, _ := ds.BackgroundColor.([]string)

	var values []chart.Value
	for i, v := range ds.Data {
		if v <= 0 || i >= len(cfg.Data.Labels) {
			continue
		}
		style := chart.Style{StrokeColor: drawing.ColorWhite, StrokeWidth: 2}
		if i < len(colors) {
			style.FillColor = hexColor(colors[i])
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%.0f)", cfg.Data.Labels[i], v),
			Value: v,
			Style: style,
		})
	}
	if len(values) == 0 {
		return fmt.Errorf("chart has no data")
	}

	donut := chart.DonutChart{
		Width:  PNGHeight,
		Height: PNGHeight,
		Values: values,
	}
	if err := donut.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func hexColor(hex string) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return chart.ColorAlternateGray
	}
	return drawing.ColorFromHex(hex)
}

func tenThousandWonFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return format.TenThousandWon(f)
	}
	return ""
}

func percentFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return format.PercentValue(f, 1)
	}
	return ""
}
