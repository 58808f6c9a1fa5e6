// cmd/wrappers.go
package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/bogdanrbucur/pal-e3/internal/paldate"
	"github.com/bogdanrbucur/pal-e3/internal/voyage"
)

func newScheduleCmd(a *app) *cobra.Command {
	var days int
	c := &cobra.Command{
		Use:   "schedule",
		Short: "Prints the planned port calls of every vessel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			calls, err := session.Voyage().Schedule(cmd.Context(), days)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), calls, func(w io.Writer) { renderPortCalls(w, calls) })
		},
	}
	c.Flags().IntVar(&days, "days", 0, "days ahead to include (default one month)")
	return c
}

// renderPortCalls tabulates the planner rows using the columns of the first row.
func renderPortCalls(w io.Writer, calls []voyage.PortCall) {
	if len(calls) == 0 {
		fmt.Fprintln(w, "No port calls planned.")
		return
	}
	keys := make([]string, 0, len(calls[0]))
	for k := range calls[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	header := make([]any, len(keys))
	for i, k := range keys {
		header[i] = k
	}
	t := newTable(w, header...)
	for _, c := range calls {
		row := make([]any, len(keys))
		for i, k := range keys {
			row[i] = c[k]
		}
		t.AppendRow(row)
	}
	t.Render()
}

func newPSCCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "psc",
		Short: "Lists the fleet's port state control inspections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			inspections, err := session.QHSE().PSCReports(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), inspections, func(w io.Writer) {
				t := newTable(w, "Ref", "Vessel", "Date", "Port", "MOU", "Deficiencies", "Open", "Result")
				for _, r := range inspections {
					t.AppendRow([]any{r.RefNo, r.Unit, paldate.ShortDate(r.InspectionDate), r.Port, r.PSCMOU,
						r.NoOfDeficiencies, r.NoOfOpenDeficiencies, r.Result})
				}
				t.Render()
			})
		},
	}
}

func newDrillsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drills VESSEL",
		Short: "Lists the drills logged on a vessel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			drills, err := session.QHSE().Drills(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), drills, func(w io.Writer) {
				t := newTable(w, "Ref", "Drill", "Alarm", "Status")
				for _, d := range drills {
					t.AppendRow([]any{d.ReferenceNo, d.DrillName, d.AlarmSoundedTime, d.DrillStatus})
				}
				t.Render()
			})
		},
	}
}

func newQDMSCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "qdms FOLDER_ID",
		Short: "Lists every document in a QDMS folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			docs, err := session.QDMS().FolderDocuments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), docs, func(w io.Writer) {
				t := newTable(w, "DocNo", "Title", "Rev", "Folder", "Created")
				for _, d := range docs {
					t.AppendRow([]any{d.DocNo, d.Title, d.Revision, d.Folder, d.CreatedOn})
				}
				t.Render()
			})
		},
	}
}

func newCrewChangesCmd(a *app) *cobra.Command {
	var days int
	var ranks []int
	c := &cobra.Command{
		Use:   "crew-changes VESSEL [VESSEL...]",
		Short: "Lists planned crew reliefs with the relievers' contacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			changes, err := session.Crewing().PlannedCrewChanges(cmd.Context(), args, time.Now(), days, ranks)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), changes, func(w io.Writer) {
				t := newTable(w, "Vessel", "Rank", "Off signer", "Due", "Reliever", "Port", "Email", "Mobile")
				for _, c := range changes {
					t.AppendRow([]any{c.Vessel, c.Rank, c.OffSigner, c.OffDueDate, c.Reliever, c.Port,
						c.OnContacts.Email, c.OnContacts.Mobile})
				}
				t.Render()
			})
		},
	}
	c.Flags().IntVar(&days, "days", 30, "days ahead to include")
	c.Flags().IntSliceVar(&ranks, "ranks", []int{1, 31}, "rank group codes (1 master, 31 chief engineer)")
	return c
}
