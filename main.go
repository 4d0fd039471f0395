package main

import (
	"os"

	"agentflow/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
