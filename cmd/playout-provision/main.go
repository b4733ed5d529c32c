package main

import "github.com/broadcast-tools/playout-bootstrap/cmd/playout-provision/cmd"

func main() {
	cmd.Execute()
}
