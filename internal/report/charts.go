package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/justin4957/zeekreport/pkg/models"
)

const (
	barChartWidth  = 1400
	barChartHeight = 700
	pieChartSize   = 600
)

// BarChart renders one bar per counter as PNG
func BarChart(w io.Writer, counters []models.Counter) error {
	if len(counters) == 0 {
		return fmt.Errorf("bar chart: no counters")
	}

	bars := make([]chart.Value, len(counters))
	maxValue := 0
	for i, c := range counters {
		bars[i] = chart.Value{
			Value: float64(c.Value),
			Label: fmt.Sprintf("%s (%d)", strings.ReplaceAll(string(c.Name), "_", " "), c.Value),
		}
		if c.Value > maxValue {
			maxValue = c.Value
		}
	}

	// an all-zero run still needs a non-empty y range
	top := math.Max(1, math.Ceil(float64(maxValue)*1.1))

	graph := chart.BarChart{
		Title:  "Analysed Values",
		Width:  barChartWidth,
		Height: barChartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20},
		},
		BarWidth:   140,
		BarSpacing: 40,
		XAxis: chart.Style{
			TextWrap: chart.TextWrapWord,
			FontSize: 11,
		},
		YAxis: chart.YAxis{
			Name:  "Count",
			Range: &chart.ContinuousRange{Min: 0, Max: top},
		},
		Bars: bars,
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

// PieChart renders the distinct port services with equal weight as PNG
func PieChart(w io.Writer, portServices []string) error {
	if len(portServices) == 0 {
		return fmt.Errorf("pie chart: no port services")
	}

	share := 100 / float64(len(portServices))
	values := make([]chart.Value, len(portServices))
	for i, s := range portServices {
		values[i] = chart.Value{
			Value: 1,
			Label: fmt.Sprintf("%s %.1f%%", s, share),
		}
	}

	pie := chart.PieChart{
		Title:  "Ports Found",
		Width:  pieChartSize,
		Height: pieChartSize,
		Background: chart.Style{
			Padding: chart.Box{Top: 50},
		},
		Values: values,
	}

	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render pie chart: %w", err)
	}
	return nil
}

// writeChart renders into a file at path
func writeChart(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
