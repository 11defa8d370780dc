/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	return SetupWithSinks(environment)
}

// SetupWithSinks configures zerolog with additional raw JSON sinks, used to
// feed the in-memory log buffer behind the admin API.
func SetupWithSinks(environment string, sinks ...io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}

	writers := make([]io.Writer, 0, len(sinks)+1)
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout})
	writers = append(writers, sinks...)

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger().Level(level)
	log.Logger = logger
	return logger
}
