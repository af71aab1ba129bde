package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/justin4957/zeekreport/internal/config"
	"github.com/justin4957/zeekreport/pkg/models"
)

// Letter page in points, origin at the top left
const (
	pageWidth  = 612.0
	pageHeight = 792.0
	marginLeft = 100.0
	textWidth  = pageWidth - 2*marginLeft
	barImageH  = textWidth * barChartHeight / barChartWidth
	pieImageW  = 290.0
)

// Generator renders the charts and the PDF page for a summary
type Generator struct {
	cfg    config.ReportConfig
	logger *zap.Logger
}

// NewGenerator creates a new report generator
func NewGenerator(cfg config.ReportConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, logger: logger}
}

// Generate writes the chart images, the PDF and the optional JSON summary.
// The PDF document lives only for the duration of this call.
func (g *Generator) Generate(ctx context.Context, summary *models.Summary) error {
	if err := writeChart(g.cfg.BarChartPath, func(w io.Writer) error {
		return BarChart(w, summary.Counters)
	}); err != nil {
		return err
	}
	g.logger.Debug("bar chart written", zap.String("path", g.cfg.BarChartPath))

	havePie := len(summary.PortServices) > 0
	if havePie {
		if err := writeChart(g.cfg.PieChartPath, func(w io.Writer) error {
			return PieChart(w, summary.PortServices)
		}); err != nil {
			return err
		}
		g.logger.Debug("pie chart written", zap.String("path", g.cfg.PieChartPath))
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := g.writePDF(summary, havePie); err != nil {
		return err
	}
	summary.ReportPath = g.cfg.OutputPath
	g.logger.Info("report written",
		zap.String("path", g.cfg.OutputPath),
		zap.String("run_id", summary.RunID),
	)

	if g.cfg.SummaryJSON != "" {
		if err := WriteSummaryJSON(g.cfg.SummaryJSON, summary); err != nil {
			return err
		}
		g.logger.Info("summary written", zap.String("path", g.cfg.SummaryJSON))
	}

	if !g.cfg.KeepImages {
		for _, p := range []string{g.cfg.BarChartPath, g.cfg.PieChartPath} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				g.logger.Warn("failed to remove chart image", zap.String("path", p), zap.Error(err))
			}
		}
	}
	return nil
}

func (g *Generator) writePDF(summary *models.Summary, havePie bool) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle(g.cfg.Title, false)
	pdf.SetCreator("zeekreport", false)
	pdf.SetSubject(summary.Archive, false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(marginLeft, 92, g.cfg.Title)
	pdf.SetXY(marginLeft, 100)
	pdf.MultiCell(textWidth, 14, g.cfg.Description, "", "L", false)

	pdf.SetFont("Helvetica", "", 9)
	pdf.Text(marginLeft, 146, fmt.Sprintf("Run %s | archive %s | generated %s",
		summary.RunID, summary.Archive, summary.GeneratedAt.UTC().Format(time.RFC3339)))

	for i, c := range summary.Counters {
		x := marginLeft + float64(i%2)*textWidth/2
		y := 162 + float64(i/2)*12
		pdf.Text(x, y, fmt.Sprintf("%s: %d", c.Name, c.Value))
	}

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(marginLeft, 222, "Plot 1: Bar Chart")
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.ImageOptions(g.cfg.BarChartPath, marginLeft, 230, textWidth, barImageH, false, opts, 0, "")

	pdf.Text(marginLeft, 462, "Plot 2: Pie Chart")
	if havePie {
		pdf.ImageOptions(g.cfg.PieChartPath, (pageWidth-pieImageW)/2, 470, pieImageW, pieImageW, false, opts, 0, "")
	} else {
		pdf.SetFont("Helvetica", "", 9)
		pdf.Text(marginLeft, 480, "No port services observed.")
	}

	if err := pdf.OutputFileAndClose(g.cfg.OutputPath); err != nil {
		return fmt.Errorf("write report %s: %w", g.cfg.OutputPath, err)
	}
	return nil
}

// WriteSummaryJSON stores the summary as indented JSON
func WriteSummaryJSON(path string, summary *models.Summary) error {
	data, err := sonic.ConfigStd.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}
