package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/hedonic-cli/internal/parcel"
)

// CorrelationMatrix computes pairwise Pearson correlations between the named
// numeric columns plus sale price, over the modeling set.
func CorrelationMatrix(f *parcel.Frame, cols []string) ([]string, [][]float64, error) {
	modeling := f.Modeling()
	if len(modeling) < 3 {
		return nil, nil, eris.New("report: too few modeling records for correlation")
	}

	names := append([]string{"sale_price"}, cols...)
	series := make([][]float64, len(names))
	series[0] = make([]float64, len(modeling))
	for i, p := range modeling {
		series[0][i] = p.SalePrice
	}
	for c, col := range cols {
		vals := make([]float64, len(modeling))
		for i, p := range modeling {
			v, ok := p.Num[col]
			if !ok {
				return nil, nil, eris.Errorf("report: column %s missing on parcel %s", col, p.ID)
			}
			vals[i] = v
		}
		series[c+1] = vals
	}

	m := make([][]float64, len(names))
	for i := range names {
		m[i] = make([]float64, len(names))
		for j := range names {
			m[i][j] = stat.Correlation(series[i], series[j], nil)
		}
	}
	return names, m, nil
}

// WriteCorrelationTable renders a correlation matrix.
func WriteCorrelationTable(w io.Writer, names []string, m [][]float64) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "\t")
	for _, n := range names {
		fmt.Fprintf(tw, "%s\t", n)
	}
	fmt.Fprintln(tw)
	for i, n := range names {
		fmt.Fprintf(tw, "%s\t", n)
		for j := range names {
			fmt.Fprintf(tw, "%.3f\t", m[i][j])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
