package main

import (
	"github.com/joho/godotenv"

	"github.com/cropmodel/dataset/internal/cli"
)

// Version info (set during build)
var Version = "dev"

func main() {
	// A missing .env is fine; the environment and config file still apply.
	_ = godotenv.Load()

	cli.Version = Version
	cli.Execute()
}
