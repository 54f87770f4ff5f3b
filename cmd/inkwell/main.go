package main

import (
	"inkwell/cmd/handlers"
	"inkwell/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
