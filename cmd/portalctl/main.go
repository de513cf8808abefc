package main

import "github.com/m3connect/portal/cmd/portalctl/cmd"

func main() {
	cmd.Execute()
}
