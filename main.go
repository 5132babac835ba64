package main

import (
	"fmt"
	"os"

	parley "github.com/putto11262002/parley/app"
)

func main() {
	app, err := parley.New(nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
	if err := app.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}
