package cost

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WriteSummary renders the ledger as a table with a total footer
func WriteSummary(w io.Writer, ledger *Ledger) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})

	tw.AppendHeader(table.Row{"Provider", "Input", "Output", "Searches", "Cost ($)"})

	records := ledger.Records()
	for _, r := range records {
		tw.AppendRow(table.Row{r.Provider, r.InputTokens, r.OutputTokens, r.SearchCount, FormatDollars(r.DollarCost)})
	}
	if len(records) == 0 {
		tw.AppendRow(table.Row{"(no calls)", 0, 0, 0, FormatDollars(0)})
	}

	in, out, searches := ledger.Totals()
	tw.AppendFooter(table.Row{"Total", in, out, searches, FormatDollars(ledger.Total())})

	_ = tw.Render()
}

// FormatDollars renders a cost with enough precision for sub-cent calls
func FormatDollars(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
