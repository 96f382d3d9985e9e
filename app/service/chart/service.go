package chart

import (
	"bytes"
	"image/color"
	"os"

	"biasmeter/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/image/font/opentype"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	FormatSVG = "svg"
	FormatPNG = "png"

	customTypeface font.Typeface = "biasmeter-cjk"

	xLabel = "政治的傾向スコア（-1.0 = 保守　+1.0 = リベラル）"
	yLabel = "表現の強さスコア（0.0 = 穏健　1.0 = 過激）"

	size = 5 * vg.Inch
)

type annotation struct {
	x, y float64
	text string
}

// Fixed frame annotations: the two ends of the x axis and the two ends of
// the y axis, matching the axis titles.
var annotations = []annotation{
	{x: -1.0, y: -0.05, text: "保守"},
	{x: 1.0, y: -0.05, text: "リベラル"},
	{x: 0.05, y: 0.0, text: "穏健"},
	{x: 0.05, y: 1.0, text: "過激"},
}

var pointColor = color.RGBA{B: 255, A: 255}

type Service struct {
	format string
	font   font.Font
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewRenderer(cfg.Chart)
}

func NewRenderer(cfg config.Chart) (*Service, error) {
	s := &Service{
		format: cfg.Format,
		font:   plot.DefaultFont,
	}

	if s.format == "" {
		s.format = FormatSVG
	}

	if cfg.FontPath != "" {
		if err := s.loadFont(cfg.FontPath); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Service) DefaultFormat() string {
	return s.format
}

// Render draws one point at (direction, intensity) on the fixed
// [-1,1] x [0,1] frame.
func (s *Service) Render(direction, intensity float64, format string) ([]byte, error) {
	if format == "" {
		format = s.format
	}
	if format != FormatSVG && format != FormatPNG {
		return nil, oops.In("chart").With("format", format).Errorf("unsupported chart format %q", format)
	}

	p := plot.New()
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Label.TextStyle.Font = font.From(s.font, p.X.Label.TextStyle.Font.Size)
	p.Y.Label.TextStyle.Font = font.From(s.font, p.Y.Label.TextStyle.Font.Size)

	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(plotter.XYs{{X: direction, Y: intensity}})
	if err != nil {
		return nil, oops.In("chart").Errorf("failed to create scatter: %w", err)
	}
	scatter.GlyphStyle.Color = pointColor
	scatter.GlyphStyle.Radius = vg.Points(4)
	p.Add(scatter)

	labels, err := s.annotationLabels()
	if err != nil {
		return nil, err
	}
	p.Add(labels)

	// Add extends the axes to fit the data; the frame stays fixed.
	p.X.Min, p.X.Max = -1.0, 1.0
	p.Y.Min, p.Y.Max = 0.0, 1.0

	writer, err := p.WriterTo(size, size, format)
	if err != nil {
		return nil, oops.In("chart").Errorf("failed to create %s writer: %w", format, err)
	}

	var buf bytes.Buffer
	if _, err = writer.WriteTo(&buf); err != nil {
		return nil, oops.In("chart").Errorf("failed to render chart: %w", err)
	}

	return buf.Bytes(), nil
}

func (s *Service) annotationLabels() (*plotter.Labels, error) {
	xys := make(plotter.XYs, len(annotations))
	texts := make([]string, len(annotations))
	for i, a := range annotations {
		xys[i] = plotter.XY{X: a.x, Y: a.y}
		texts[i] = a.text
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    xys,
		Labels: texts,
	})
	if err != nil {
		return nil, oops.In("chart").Errorf("failed to create labels: %w", err)
	}

	for i := range labels.TextStyle {
		labels.TextStyle[i].Font = font.From(s.font, vg.Points(9))
	}

	return labels, nil
}

func (s *Service) loadFont(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.In("chart").With("path", path).Errorf("failed to read font: %w", err)
	}

	face, err := opentype.Parse(data)
	if err != nil {
		return oops.In("chart").With("path", path).Errorf("failed to parse font: %w", err)
	}

	s.font = font.Font{Typeface: customTypeface}
	font.DefaultCache.Add([]font.Face{{
		Font: s.font,
		Face: face,
	}})

	return nil
}

func ContentType(format string) string {
	switch format {
	case FormatPNG:
		return "image/png"
	default:
		return "image/svg+xml"
	}
}
