package main

import (
	"os"

	"github.com/transfa/fund-service/cmd/fundctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
