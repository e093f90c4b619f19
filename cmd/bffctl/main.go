package main

import (
	"fmt"
	"os"

	"bff-service/internal/cli"
)

func main() {
	root, err := cli.NewRootCommand(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bffctl:", err)
		os.Exit(1)
	}
}
