package cmd

import (
	"strconv"
	"strings"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/session"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored staff and team sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, release, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer release()

		pterm.DefaultSection.Println("Sessions")
		status := client.Status()
		rows := [][]string{{"Class", "State", "Subject", "Name", "Details"}}
		for _, class := range identity.Classes {
			rows = append(rows, statusRow(class, status[class]))
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
			return err
		}
		pterm.Info.Printf("Requests without --as are sent as %s\n", client.ActiveClass())
		return nil
	},
}

func statusRow(class identity.Class, s session.State) []string {
	row := []string{class.String(), s.Phase.String(), "", "", ""}
	if !s.IsAuthenticated || s.Claims == nil {
		return row
	}
	row[2] = s.Claims.Subject
	row[3] = s.Claims.Name
	switch class {
	case identity.Staff:
		row[4] = strings.Join(s.Claims.Scopes, ",")
	case identity.Team:
		if s.Metadata.TeamID != nil {
			row[4] = "team " + strconv.Itoa(*s.Metadata.TeamID)
		}
	}
	return row
}
