package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/sixc/internal/cli"
	"github.com/ppiankov/sixc/internal/pipeline"
)

const (
	exitError      = 1
	exitGateFailed = 3
)

func main() {
	os.Exit(exitCode(cli.Execute()))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var gateErr *pipeline.GateError
	if errors.As(err, &gateErr) {
		return exitGateFailed
	}
	return exitError
}
