package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/spf13/cobra"

	"github.com/nerrad567/overlay-core/internal/app"
	"github.com/nerrad567/overlay-core/internal/progression"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

// NewPrintCommand writes the running order as a PDF for the stage crew.
func NewPrintCommand(opts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "print [event]",
		Short: "Write the running order as a PDF",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(a *app.App) error {
				name, err := resolveEvent(cmd.Context(), a, args)
				if err != nil {
					return err
				}
				t, err := a.Director.State(cmd.Context(), name)
				if err != nil {
					return timelineError(err)
				}

				path := output
				if path == "" {
					path = name + "-running-order.pdf"
				}
				f, err := os.Create(path)
				if err != nil {
					return WrapExitError(ExitCommandError, "creating PDF", err)
				}
				if err := RenderRunningOrder(f, t, siteLocation(a)); err != nil {
					f.Close()
					return WrapExitError(ExitCommandError, "writing PDF", err)
				}
				if err := f.Close(); err != nil {
					return WrapExitError(ExitCommandError, "writing PDF", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "running order written to %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "PDF path (default <event>-running-order.pdf)")
	return cmd
}

// Column widths in mm; they add up to the A4 text width.
var printColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 10, "C"},
	{"Start", 18, "C"},
	{"Run", 62, "L"},
	{"Category", 35, "L"},
	{"Runners", 45, "L"},
	{"Estimate", 20, "R"},
}

// RenderRunningOrder writes t's running order to w as a one-table PDF.
// Finished runs are greyed out and the live run is highlighted.
func RenderRunningOrder(w io.Writer, t *progression.Transition, loc *time.Location) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(t.Event.Name+" running order", true)
	pdf.SetMargins(10, 12, 10)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	printed := time.Now().In(loc).Format("2006-01-02 15:04 MST")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, fmt.Sprintf("Printed %s  -  page %d/{nb}", printed, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(40, 40, 40)
		pdf.SetTextColor(255, 255, 255)
		for _, c := range printColumns {
			pdf.CellFormat(c.width, 7, c.title, "", 0, c.align, true, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(t.Event.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s to %s  |  %s  |  total %s",
		t.Event.StartAt.In(loc).Format("Mon 2 Jan 15:04"),
		t.Event.EndAt.In(loc).Format("Mon 2 Jan 15:04"),
		behind(t.Event.Shift),
		timeline.FormatEstimate(totalEstimate(t.Runs)),
	), "", 1, "L", false, 0, "")
	pdf.Ln(3)
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	day := ""
	for _, run := range t.Runs {
		if pdf.GetY()+7 > pageHeight-bottom-14 {
			pdf.AddPage()
			header()
		}

		start := run.EffectiveStart(t.Event.Shift).In(loc)
		if d := start.Format("Monday 2 January"); d != day {
			day = d
			pdf.SetFont("Helvetica", "B", 9)
			pdf.SetTextColor(0, 0, 0)
			pdf.SetFillColor(225, 225, 225)
			pdf.CellFormat(0, 6, d, "", 1, "L", true, 0, "")
		}

		style, fill := "", false
		pdf.SetTextColor(0, 0, 0)
		switch {
		case t.Event.IsCurrent(run):
			style, fill = "B", true
			pdf.SetFillColor(255, 236, 179)
		case run.IsFinished:
			pdf.SetTextColor(150, 150, 150)
		case run.IsIntermission:
			style = "I"
		}
		pdf.SetFont("Helvetica", style, 9)

		cells := []string{
			fmt.Sprintf("%d", run.Index),
			start.Format("15:04"),
			tr(displayName(run)),
			tr(run.Category),
			tr(personNames(run.Runners)),
			timeline.FormatEstimate(run.Estimated),
		}
		for i, c := range printColumns {
			pdf.CellFormat(c.width, 7, fit(pdf, cells[i], c.width-2), "B", 0, c.align, fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.Output(w)
}

func totalEstimate(runs []*timeline.Run) time.Duration {
	var d time.Duration
	for _, r := range runs {
		d += r.Estimated
	}
	return d
}

// fit truncates s with an ellipsis until it fits width mm in the current
// font. s is already in the single-byte font encoding.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
