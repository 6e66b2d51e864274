package main

import (
	"axial/cmd/handlers"
	"axial/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
