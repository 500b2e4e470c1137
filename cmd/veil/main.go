package main

import (
	"os"

	"github.com/veil-sh/veil/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
