package main

import (
	"os"

	"github.com/daftar-erp/daftar/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
