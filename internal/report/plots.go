package report

import (
	"image/color"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sells-group/hedonic-cli/internal/evaluate"
)

// ObservedVsPredicted writes a scatterplot of observed against predicted
// prices with an identity reference line.
func ObservedVsPredicted(preds []evaluate.Prediction, path string) error {
	p := plot.New()
	p.Title.Text = "Observed vs Predicted Sale Price"
	p.X.Label.Text = "Observed"
	p.Y.Label.Text = "Predicted"

	xys := make(plotter.XYs, len(preds))
	maxV := 0.0
	for i, pr := range preds {
		xys[i] = plotter.XY{X: pr.Observed, Y: pr.Predicted}
		if pr.Observed > maxV {
			maxV = pr.Observed
		}
		if pr.Predicted > maxV {
			maxV = pr.Predicted
		}
	}

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return eris.Wrap(err, "report: build scatter")
	}
	s.GlyphStyle.Radius = vg.Points(1.5)

	ident, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: maxV, Y: maxV}})
	if err != nil {
		return eris.Wrap(err, "report: build identity line")
	}
	ident.Color = color.RGBA{R: 0xcc, A: 0xff}

	p.Add(plotter.NewGrid(), s, ident)
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

// CVHistogram writes a histogram of per-fold cross-validation MAE.
func CVHistogram(cv *evaluate.CVResult, path string) error {
	p := plot.New()
	p.Title.Text = "Cross-Validation MAE Distribution"
	p.X.Label.Text = "Fold MAE"
	p.Y.Label.Text = "Folds"

	h, err := plotter.NewHist(plotter.Values(cv.FoldMAE), 20)
	if err != nil {
		return eris.Wrap(err, "report: build histogram")
	}
	p.Add(h)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

// ResidualMap writes a point map of test parcels colored by whether the
// model over- or under-predicts, sized by absolute error rank.
func ResidualMap(preds []evaluate.Prediction, path string) error {
	p := plot.New()
	p.Title.Text = "Test-Set Residuals"
	p.X.Label.Text = "X (ft)"
	p.Y.Label.Text = "Y (ft)"

	xys := make(plotter.XYs, len(preds))
	var maxAbs float64
	for i, pr := range preds {
		xys[i] = plotter.XY{X: pr.X, Y: pr.Y}
		if pr.AbsErr > maxAbs {
			maxAbs = pr.AbsErr
		}
	}

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return eris.Wrap(err, "report: build residual map")
	}

	over := color.RGBA{R: 0xd6, G: 0x2a, B: 0x2a, A: 0xff}
	under := color.RGBA{B: 0xd6, G: 0x2a, R: 0x2a, A: 0xff}
	s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c := under
		if preds[i].Err > 0 {
			c = over
		}
		r := vg.Points(1)
		if maxAbs > 0 {
			r = vg.Points(1 + 3*preds[i].AbsErr/maxAbs)
		}
		return draw.GlyphStyle{Color: c, Radius: r, Shape: draw.CircleGlyph{}}
	}

	p.Add(s)
	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}
