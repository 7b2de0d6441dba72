package main

import (
	"github.com/joho/godotenv"

	"github.com/bowerhall/tourcam/cmd/tourcam/commands"
	"github.com/bowerhall/tourcam/internal/logger"
)

func init() {
	godotenv.Load()
}

func main() {
	if err := commands.Execute(); err != nil {
		logger.Fatal("tourcam failed", "error", err)
	}
}
