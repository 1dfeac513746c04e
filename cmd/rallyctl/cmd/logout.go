package cmd

import (
	"github.com/jrsteele09/rally-session/identity"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:       "logout [staff|team|all]",
	Short:     "Log out one identity class, or all of them",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"staff", "team", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		classes, err := logoutClasses(args)
		if err != nil {
			return err
		}

		client, release, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer release()

		if err := client.Logout(cmd.Context(), classes...); err != nil {
			return err
		}
		if len(classes) == 0 {
			pterm.Success.Println("Logged out")
			return nil
		}
		pterm.Success.Printf("Logged out %s\n", classes[0])
		return nil
	},
}

// logoutClasses maps the optional argument onto classes. Nil means all of them.
func logoutClasses(args []string) ([]identity.Class, error) {
	if len(args) == 0 || args[0] == "all" {
		return nil, nil
	}
	class, err := identity.ParseClass(args[0])
	if err != nil {
		return nil, err
	}
	return []identity.Class{class}, nil
}
