package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jrsteele09/rally-session/identity"
	"github.com/jrsteele09/rally-session/rallyapi"
	"github.com/spf13/cobra"
)

var getAs string

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Send an authenticated GET to the Rally API and print the response",
	Example: `  rallyctl get /teams/me
  rallyctl get /users/me --as staff`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var class identity.Class
		if getAs != "" {
			var err error
			if class, err = identity.ParseClass(getAs); err != nil {
				return err
			}
		}

		client, release, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer release()

		resp, err := client.Get(cmd.Context(), class, args[0])
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := rallyapi.CheckResponse(resp); err != nil {
			return err
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return writeBody(os.Stdout, body)
	},
}

// writeBody indents JSON bodies and copies anything else as is
func writeBody(w io.Writer, body []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		out.Reset()
		out.Write(body)
	}
	if out.Len() > 0 && out.Bytes()[out.Len()-1] != '\n' {
		out.WriteByte('\n')
	}
	_, err := w.Write(out.Bytes())
	return err
}

func init() {
	getCmd.Flags().StringVar(&getAs, "as", "", "Identity class to send the request as: staff or team (default: the active class)")
}
