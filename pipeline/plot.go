package pipeline

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/peoplemetrics/attrition/metrics"
	"github.com/peoplemetrics/attrition/pkg/errors"
)

// SaveROCPlot renders a ROC curve to an image file at path; the format
// follows the file extension. The curve is drawn over the chance
// diagonal so the lift above random ranking is visible at a glance.
func SaveROCPlot(points []metrics.ROCPoint, title, path string) error {
	if len(points) == 0 {
		return errors.NewValueError("pipeline.SaveROCPlot", "empty curve")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, len(points))
	for i, pt := range points {
		pts[i].X = pt.FPR
		pts[i].Y = pt.TPR
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "pipeline: roc line")
	}
	curve.LineStyle.Width = vg.Points(2)
	curve.Color = color.RGBA{B: 255, A: 255}

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return errors.Wrap(err, "pipeline: chance line")
	}
	chance.LineStyle.Width = vg.Points(1)
	chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	chance.Color = color.RGBA{R: 128, G: 128, B: 128, A: 255}

	p.Add(curve, chance)

	if err := p.Save(4*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "pipeline: save roc plot")
	}
	return nil
}
