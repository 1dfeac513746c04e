package main

import "github.com/jrsteele09/rally-session/cmd/rallyctl/cmd"

func main() {
	cmd.Execute()
}
