package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

func initLogger(debug bool) *zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &logger
}
