package cmd

import (
	"errors"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/rallyapi"
	"github.com/jrsteele09/rally-session/session"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
	loginCode     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as a staff user or a team",
}

var loginStaffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Log in with a staff username and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginUsername == "" {
			return errors.New("--username is required")
		}
		password := loginPassword
		if password == "" {
			var err error
			password, err = pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
			if err != nil {
				return err
			}
		}
		return login(cmd, identity.Staff, rallyapi.Credentials{Username: loginUsername, Password: password})
	},
}

var loginTeamCmd = &cobra.Command{
	Use:   "team",
	Short: "Log in with a team access code",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginCode == "" {
			return errors.New("--code is required")
		}
		return login(cmd, identity.Team, rallyapi.Credentials{AccessCode: loginCode})
	},
}

func login(cmd *cobra.Command, class identity.Class, creds rallyapi.Credentials) error {
	client, release, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer release()

	spinner, _ := pterm.DefaultSpinner.Start("Logging in as " + class.String() + "...")
	state, err := client.Login(cmd.Context(), class, creds)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("Logged in as " + displayName(state))
	return nil
}

func displayName(s session.State) string {
	if s.Claims == nil {
		return "unknown"
	}
	if s.Claims.Name != "" {
		return s.Claims.Name
	}
	return s.Claims.Subject
}

func init() {
	loginStaffCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Staff username")
	loginStaffCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Staff password (prompted when empty)")
	loginTeamCmd.Flags().StringVarP(&loginCode, "code", "c", "", "Team access code")

	loginCmd.AddCommand(loginStaffCmd)
	loginCmd.AddCommand(loginTeamCmd)
}
