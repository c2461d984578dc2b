// Package report renders evaluation output: console tables, plots, and the
// export artifacts. Purely presentational; nothing here feeds back upstream.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/hedonic-cli/internal/evaluate"
	"github.com/sells-group/hedonic-cli/internal/hedonic"
)

var printer = message.NewPrinter(language.English)

// WriteModelTable renders the fitted coefficient table.
func WriteModelTable(w io.Writer, m *hedonic.Model) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TERM\tCOEF\tSTD ERR\tT\tP")
	for _, t := range m.Terms {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.2f\t%.4f\n", t.Name, t.Coef, t.StdErr, t.TStat, t.PValue)
	}
	fmt.Fprintf(tw, "\nR²\t%.4f\n", m.R2)
	fmt.Fprintf(tw, "Adj R²\t%.4f\n", m.AdjR2)
	fmt.Fprintf(tw, "N\t%d\n", m.N)
	return tw.Flush()
}

// WriteMetricsTable renders overall and grouped error metrics.
func WriteMetricsTable(w io.Writer, overall evaluate.Metrics, byNeighborhood, byIncome []evaluate.Group) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tN\tMAE\tMAPE")
	fmt.Fprintf(tw, "overall\t%d\t%s\t%.1f%%\n", overall.N, printer.Sprintf("%.0f", overall.MAE), overall.MAPE*100)
	for _, g := range byIncome {
		fmt.Fprintf(tw, "income=%s\t%d\t%s\t%.1f%%\n", g.Key, g.Metrics.N, printer.Sprintf("%.0f", g.Metrics.MAE), g.Metrics.MAPE*100)
	}
	for _, g := range byNeighborhood {
		fmt.Fprintf(tw, "hood=%s\t%d\t%s\t%.1f%%\n", g.Key, g.Metrics.N, printer.Sprintf("%.0f", g.Metrics.MAE), g.Metrics.MAPE*100)
	}
	return tw.Flush()
}

// WriteCVTable renders the cross-validation MAE distribution.
func WriteCVTable(w io.Writer, cv *evaluate.CVResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "folds\t%d\n", cv.Folds)
	fmt.Fprintf(tw, "mean MAE\t%s\n", printer.Sprintf("%.0f", cv.Mean))
	fmt.Fprintf(tw, "std MAE\t%s\n", printer.Sprintf("%.0f", cv.StdDev))
	fmt.Fprintf(tw, "min\t%s\n", printer.Sprintf("%.0f", cv.Min))
	fmt.Fprintf(tw, "q1\t%s\n", printer.Sprintf("%.0f", cv.Q1))
	fmt.Fprintf(tw, "median\t%s\n", printer.Sprintf("%.0f", cv.Median))
	fmt.Fprintf(tw, "q3\t%s\n", printer.Sprintf("%.0f", cv.Q3))
	fmt.Fprintf(tw, "max\t%s\n", printer.Sprintf("%.0f", cv.Max))
	return tw.Flush()
}

// WriteMoranTable renders the spatial autocorrelation diagnostic.
func WriteMoranTable(w io.Writer, mr *evaluate.MoranResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Moran's I\t%.4f\n", mr.I)
	fmt.Fprintf(tw, "k\t%d\n", mr.K)
	fmt.Fprintf(tw, "permutations\t%d\n", mr.Permutations)
	fmt.Fprintf(tw, "permutation mean\t%.4f\n", mr.PermMean)
	fmt.Fprintf(tw, "rank\t%d/%d\n", mr.Rank, mr.Permutations+1)
	fmt.Fprintf(tw, "pseudo p\t%.4f\n", mr.PseudoP)
	return tw.Flush()
}
