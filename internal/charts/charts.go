// Package charts renders expense statistics as PNG images.
package charts

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"

	"spendly/internal/core"
)

const (
	width  = 800
	height = 400
)

var background = chart.Style{
	Padding: chart.Box{
		Top:    40,
		Left:   20,
		Right:  20,
		Bottom: 20,
	},
	FillColor: chart.ColorWhite,
}

// MonthlyTrendPNG draws one bar per month. It returns nil when there is
// nothing to draw.
func MonthlyTrendPNG(points []core.MonthTotal) ([]byte, error) {
	if len(points) == 0 {
		return nil, nil
	}

	bars := make([]chart.Value, 0, len(points))
	lo, hi := 0.0, 0.0
	for _, p := range points {
		v := p.Total.Float64()
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s %d", p.Label(), p.Year),
			Value: v,
		})
	}
	if hi == lo {
		hi = lo + 1
	}

	graph := chart.BarChart{
		Title:      "Monthly spending",
		Width:      width,
		Height:     height,
		BarWidth:   60,
		Background: background,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("render monthly trend: %w", err)
	}
	return buffer.Bytes(), nil
}

// CategoryPiePNG draws the share of each category with a positive total.
// It returns nil when no category qualifies.
func CategoryPiePNG(dist []core.CategoryTotal) ([]byte, error) {
	values := make([]chart.Value, 0, len(dist))
	for _, c := range dist {
		if c.Total.Cents <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %s", c.Category, c.Total),
			Value: c.Total.Float64(),
		})
	}
	if len(values) == 0 {
		return nil, nil
	}

	pie := chart.PieChart{
		Width:      height,
		Height:     height,
		Values:     values,
		Background: background,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("render category distribution: %w", err)
	}
	return buffer.Bytes(), nil
}
