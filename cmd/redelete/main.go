package main

import (
	"log"
	"os"

	"github.com/ardeaf/redelete/internal/cli"
	"github.com/ardeaf/redelete/internal/config"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersion(version)

	// Account store lives in the user config dir
	store, err := config.NewStore("")
	if err != nil {
		log.Printf("failed to create config store: %v", err)
		return 1
	}
	cli.SetStore(store)

	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}
