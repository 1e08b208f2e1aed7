// Package main is the entry point for the metriclens CLI binary.
package main

import (
	"os"

	cli "metriclens/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
