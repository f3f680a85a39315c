/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process. Development environments log at
// debug level to a console writer; everything else logs JSON at info level.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment, os.Stdout, nil)
}

// SetupWithWriter configures zerolog writing to out. When capture is non-nil
// it additionally receives every line as JSON (e.g., for the log buffer).
func SetupWithWriter(environment string, out io.Writer, capture io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	writer := out
	if isDevelopment(environment) {
		level = zerolog.DebugLevel
		writer = zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stdout}
	}
	if override, ok := levelFromEnv(); ok {
		level = override
	}
	if capture != nil {
		writer = zerolog.MultiLevelWriter(writer, capture)
	}

	logger := zerolog.New(writer).With().Timestamp().Str("service", "infoscreen").Logger().Level(level)
	log.Logger = logger
	return logger
}

func isDevelopment(environment string) bool {
	env := strings.ToLower(strings.TrimSpace(environment))
	return env == "" || env == "development" || env == "dev"
}

// levelFromEnv honours INFOSCREEN_LOG_LEVEL when it names a valid zerolog level.
func levelFromEnv() (zerolog.Level, bool) {
	raw := os.Getenv("INFOSCREEN_LOG_LEVEL")
	if raw == "" {
		return zerolog.NoLevel, false
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.NoLevel, false
	}
	return level, true
}
