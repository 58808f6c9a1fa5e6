// cmd/report.go
package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bogdanrbucur/pal-e3/internal/paldate"
	"github.com/bogdanrbucur/pal-e3/internal/reports"
	"github.com/bogdanrbucur/pal-e3/pkg/pale3"
)

// newReportCmd creates the `report` command with one subcommand per report.
func newReportCmd(a *app) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Extracts voyage consumption reports through the browser",
	}
	reportCmd.AddCommand(
		newReportKindCmd(a, reports.EUMRV, "Per-leg EU MRV voyage consumption"),
		newReportKindCmd(a, reports.IMODCS, "Aggregated IMO DCS consumption"),
	)
	return reportCmd
}

func newReportKindCmd(a *app, kind reports.Kind, short string) *cobra.Command {
	var date string
	var previousYear bool

	c := &cobra.Command{
		Use:   kind.String() + " VESSEL [VESSEL...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportDate := time.Now()
			if date != "" {
				d, err := paldate.ParseInput(date)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				reportDate = d
			}

			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := pale3.ReportOptions{FromPreviousYear: previousYear}
			var results []*pale3.Report
			if len(args) == 1 {
				r, err := session.VoyageConsumption(cmd.Context(), kind, args[0], reportDate, opts)
				if err != nil {
					return err
				}
				results = []*pale3.Report{r}
			} else if results, err = session.VoyageConsumptionMany(cmd.Context(), kind, args, reportDate, opts); err != nil {
				return err
			}

			return a.emit(cmd.OutOrStdout(), results, func(w io.Writer) {
				for _, r := range results {
					renderReport(w, r)
				}
			})
		},
	}
	c.Flags().StringVar(&date, "date", "", "report date as DDMMYYYY (default today)")
	c.Flags().BoolVar(&previousYear, "previous-year", false, "start on 1 January of the previous year")
	return c
}

func renderReport(w io.Writer, r *pale3.Report) {
	switch {
	case r.EUMRV != nil:
		rep := r.EUMRV
		fmt.Fprintf(w, "%s EU MRV %s - %s\n", rep.Vessel, rep.StartDate.Display, rep.EndDate.Display)
		if rep.NoData {
			fmt.Fprintln(w, "No data.")
			return
		}
		t := newTable(w, "Leg", "From", "To", "Arrival", "Distance", "Sea total", "Sea CO2", "Port total", "Port CO2", "Transport work")
		for _, l := range rep.Legs {
			t.AppendRow([]any{
				l.Leg,
				paldate.Port(l.DeparturePort),
				paldate.Port(l.ArrivalPort),
				paldate.ShortDate(l.ArrivalTime),
				num(l.Distance), num(l.SeaTotal), num(l.SeaTotalCO2),
				num(l.PortTotal), num(l.PortTotalCO2), num(l.TransportWork),
			})
		}
		t.Render()
	case r.IMODCS != nil:
		rep := r.IMODCS
		fmt.Fprintf(w, "%s IMO DCS %s - %s\n", rep.Vessel, rep.StartDate.Display, rep.EndDate.Display)
		if rep.NoData {
			fmt.Fprintln(w, "No data.")
			return
		}
		t := newTable(w, "Fuel", "Sea", "Port", "Total")
		t.AppendRow([]any{"HFO", num(rep.SeaHFO), num(rep.PortHFO), num(rep.TotalHFO)})
		t.AppendRow([]any{"LFO", num(rep.SeaLFO), num(rep.PortLFO), num(rep.TotalLFO)})
		t.AppendRow([]any{"MDO", num(rep.SeaMDO), num(rep.PortMDO), num(rep.TotalMDO)})
		t.Render()
		fmt.Fprintf(w, "Distance %s nm, at sea %s h, at anchor %s h, drifting %s h, steaming %s h, in port %s h\n",
			num(rep.Distance), num(rep.HoursAtSea), num(rep.HoursAtAnchor),
			num(rep.HoursDrifting), num(rep.HoursSteaming), num(rep.HoursInPort))
	}
}
