// cmd/directory.go
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bogdanrbucur/pal-e3/internal/lookup"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Signs in through the browser and checks the session cookie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			result := struct {
				LoggedIn     bool `json:"logged_in"`
				CookieLength int  `json:"cookie_length"`
			}{true, len(session.Cookie())}
			return a.emit(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Logged in, session cookie of %d characters.\n", result.CookieLength)
			})
		},
	}
}

func newVesselsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vessels",
		Short: "Lists the vessels known to the tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			vessels, err := session.Vessels(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), vessels, func(w io.Writer) {
				t := newTable(w, "Vessel", "VesselId", "VesselObjectId")
				for _, v := range vessels {
					t.AppendRow([]any{v.VesselName, v.VesselID, v.VesselObjectID})
				}
				t.Render()
			})
		},
	}
}

func newUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users [name fragments...]",
		Short: "Lists users, or resolves name fragments to user ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, cleanup, err := a.openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var users []lookup.User
			if len(args) == 0 {
				if users, err = session.Users(cmd.Context()); err != nil {
					return err
				}
			} else {
				resolved, err := session.ResolveUsers(cmd.Context(), args)
				if err != nil {
					return err
				}
				for i := range resolved.IDs {
					users = append(users, lookup.User{UserID: lookup.ID(resolved.IDs[i]), Name: resolved.Names[i]})
				}
			}
			return a.emit(cmd.OutOrStdout(), users, func(w io.Writer) {
				t := newTable(w, "UserId", "Name", "Login", "Email")
				for _, u := range users {
					t.AppendRow([]any{u.UserID, u.Name, u.LoginName, u.Email})
				}
				t.Render()
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Prints the pale3 version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
