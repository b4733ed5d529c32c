package main

import "github.com/broadcast-tools/playout-bootstrap/cmd/playout-bootstrap/cmd"

func main() {
	cmd.Execute()
}
