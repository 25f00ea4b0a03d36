// Package main is the sqlgate command.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlgate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
