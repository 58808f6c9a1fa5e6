// cmd/allocate.go
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bogdanrbucur/pal-e3/internal/purchase"
)

func newAllocateCmd(a *app) *cobra.Command {
	allocateCmd := &cobra.Command{
		Use:   "allocate",
		Short: "Replaces the users assigned to a vendor role",
	}
	allocateCmd.AddCommand(newAllocatePurchaseCmd(a), newAllocateCrewCmd(a), newAllocateAlertCmd(a))
	return allocateCmd
}

type allocationResult struct {
	Vessel   string   `json:"vessel"`
	Role     string   `json:"role"`
	Users    []string `json:"users"`
	Verified bool     `json:"verified"`
}

func (a *app) emitAllocation(w io.Writer, res allocationResult) error {
	return a.emit(w, res, func(w io.Writer) {
		state := "applied"
		if !res.Verified {
			state = "NOT confirmed by the vendor"
		}
		fmt.Fprintf(w, "%s / %s: allocation %s.\n", res.Vessel, res.Role, state)
	})
}

func newAllocatePurchaseCmd(a *app) *cobra.Command {
	var req purchase.AllocationRequest
	var docType string
	c := &cobra.Command{
		Use:   "purchase",
		Short: "Allocates users to a purchase approval role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := purchase.ParseDocType(docType)
			if err != nil {
				return err
			}
			req.DocType = dt

			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ok, err := session.Purchase().Allocate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.emitAllocation(cmd.OutOrStdout(), allocationResult{req.Vessel, req.Role, req.Users, ok})
		},
	}
	f := c.Flags()
	f.StringVar(&docType, "doc-type", "PROC", "JOB or PROC")
	f.StringVar(&req.Vessel, "vessel", "", "vessel name")
	f.StringVar(&req.Category, "category", "", "purchase category, or \"SELECT ANY\"")
	f.StringVar(&req.Role, "role", "", "functional role name")
	f.StringSliceVar(&req.Users, "users", nil, "user name fragments; empty clears the role")
	f.StringVar(&req.Template, "template", "", "approval cycle template (JOB only)")
	for _, name := range []string{"vessel", "category", "role"} {
		_ = c.MarkFlagRequired(name)
	}
	return c
}

func newAllocateCrewCmd(a *app) *cobra.Command {
	var vessel, process, role string
	var users []string
	c := &cobra.Command{
		Use:   "crew",
		Short: "Allocates users to a crewing process role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ok, err := session.Crewing().Allocate(cmd.Context(), vessel, process, role, users)
			if err != nil {
				return err
			}
			return a.emitAllocation(cmd.OutOrStdout(), allocationResult{vessel, role, users, ok})
		},
	}
	f := c.Flags()
	f.StringVar(&vessel, "vessel", "", "vessel name")
	f.StringVar(&process, "process", "", "crewing process, e.g. \"Crew Change\"")
	f.StringVar(&role, "role", "", "functional role name")
	f.StringSliceVar(&users, "users", nil, "user name fragments; empty clears the role")
	for _, name := range []string{"vessel", "process", "role"} {
		_ = c.MarkFlagRequired(name)
	}
	return c
}

func newAllocateAlertCmd(a *app) *cobra.Command {
	var vessel, role string
	var users []string
	c := &cobra.Command{
		Use:   "alert",
		Short: "Allocates users to a voyage alert role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ok, err := session.Voyage().ConfigureAlert(cmd.Context(), vessel, role, users)
			if err != nil {
				return err
			}
			return a.emitAllocation(cmd.OutOrStdout(), allocationResult{vessel, role, users, ok})
		},
	}
	f := c.Flags()
	f.StringVar(&vessel, "vessel", "", "vessel name")
	f.StringVar(&role, "role", "", "alert role name")
	f.StringSliceVar(&users, "users", nil, "user name fragments; empty clears the role")
	for _, name := range []string{"vessel", "role"} {
		_ = c.MarkFlagRequired(name)
	}
	return c
}
