package main

import (
	"fmt"
	"os"

	"github.com/openixwty/imagewty/cmd"
	"github.com/openixwty/imagewty/internal/config"
	"github.com/openixwty/imagewty/internal/logger"
)

func main() {
	// App configuration file from environment if specified; the
	// --config flag can still override it later.
	configFile := os.Getenv("IMAGEWTY_CONFIG")

	if err := config.Initialize(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	if err := initLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	cmd.Execute()

	logger.Sync()
}

// initLogging initializes the logger based on configuration settings
func initLogging() error {
	return logger.InitLogger(logger.LoggerConfig{
		Debug:     config.Instance.Debug,
		LogFormat: config.Instance.LogFormat,
		LogFile:   config.Instance.LogFile,
	})
}
