// Package main implements the geoquery CLI for querying the city database from a terminal.
package main

import (
	"os"
)

func main() {
	root, a := newRootCmd()
	err := root.Execute()
	a.close()
	if err != nil {
		os.Exit(1)
	}
}
