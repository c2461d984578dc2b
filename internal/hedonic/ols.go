// Package hedonic fits the ordinary least-squares sale-price model over a
// fixed, declared feature set. No regularization and no automated feature
// selection: the feature list is configuration.
package hedonic

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// Term is one fitted model term with its significance statistics.
type Term struct {
	Name   string  `json:"name" yaml:"name"`
	Coef   float64 `json:"coef" yaml:"coef"`
	StdErr float64 `json:"std_err" yaml:"std_err"`
	TStat  float64 `json:"t_stat" yaml:"t_stat"`
	PValue float64 `json:"p_value" yaml:"p_value"`
}

// Model is a fitted linear coefficient vector over named features. Terms[0]
// is the intercept.
type Model struct {
	Features []string `json:"features" yaml:"features"`
	Terms    []Term   `json:"terms" yaml:"terms"`
	R2       float64  `json:"r2" yaml:"r2"`
	AdjR2    float64  `json:"adj_r2" yaml:"adj_r2"`
	N        int      `json:"n" yaml:"n"`
}

// Fit estimates the model on the given training parcels. Every feature must
// be an attached numeric column; sale price is the response.
func Fit(train []*parcel.Parcel, features []string) (*Model, error) {
	n := len(train)
	p := len(features)
	if p == 0 {
		return nil, eris.New("hedonic: no features declared")
	}
	if n <= p+1 {
		return nil, eris.Errorf("hedonic: %d records cannot identify %d coefficients", n, p+1)
	}

	// Design matrix with a leading intercept column.
	X := mat.NewDense(n, p+1, nil)
	y := mat.NewDense(n, 1, nil)
	for i, rec := range train {
		X.Set(i, 0, 1)
		for j, f := range features {
			v, ok := rec.Num[f]
			if !ok {
				return nil, eris.Errorf("hedonic: parcel %s missing feature %s", rec.ID, f)
			}
			X.Set(i, j+1, v)
		}
		y.Set(i, 0, rec.SalePrice)
	}

	var qr mat.QR
	qr.Factorize(X)
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, y); err != nil {
		return nil, eris.Wrap(err, "hedonic: solve least squares")
	}

	// Residual and total sums of squares.
	var fitted mat.Dense
	fitted.Mul(X, &beta)
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = train[i].SalePrice
	}
	meanY := stat.Mean(prices, nil)

	var ssr, sst float64
	for i := 0; i < n; i++ {
		r := y.At(i, 0) - fitted.At(i, 0)
		ssr += r * r
		d := y.At(i, 0) - meanY
		sst += d * d
	}
	if sst == 0 {
		return nil, eris.New("hedonic: response has zero variance")
	}

	dof := float64(n - p - 1)
	sigma2 := ssr / dof

	// Coefficient covariance: sigma² (XᵀX)⁻¹.
	var xtx, cov mat.Dense
	xtx.Mul(X.T(), X)
	if err := cov.Inverse(&xtx); err != nil {
		return nil, eris.Wrap(err, "hedonic: invert normal matrix")
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	terms := make([]Term, p+1)
	for j := 0; j <= p; j++ {
		name := "intercept"
		if j > 0 {
			name = features[j-1]
		}
		coef := beta.At(j, 0)
		se := math.Sqrt(sigma2 * cov.At(j, j))
		var t, pv float64
		if se > 0 {
			t = coef / se
			pv = 2 * tDist.CDF(-math.Abs(t))
		}
		terms[j] = Term{Name: name, Coef: coef, StdErr: se, TStat: t, PValue: pv}
	}

	r2 := 1 - ssr/sst
	return &Model{
		Features: features,
		Terms:    terms,
		R2:       r2,
		AdjR2:    1 - (1-r2)*float64(n-1)/dof,
		N:        n,
	}, nil
}

// Predict returns the model's price estimate for a parcel.
func (m *Model) Predict(p *parcel.Parcel) float64 {
	v := m.Terms[0].Coef
	for j, f := range m.Features {
		v += m.Terms[j+1].Coef * p.Num[f]
	}
	return v
}

// Coefficients returns the coefficient vector, intercept first.
func (m *Model) Coefficients() []float64 {
	out := make([]float64, len(m.Terms))
	for i, t := range m.Terms {
		out[i] = t.Coef
	}
	return out
}
