package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tokenized/pkg/logger"
)

// ContextWithLogger returns a context carrying the logging configuration. Log entries for the
// listed subsystems are enabled. When logFilePath is set entries are also appended to that file.
func ContextWithLogger(ctx context.Context, isDevelopment, isText bool, logFilePath string,
	subSystems ...string) context.Context {

	logConfig := logger.NewDevelopmentConfig()
	logConfig.IsText = isText

	if len(logFilePath) > 0 {
		logFileName := filepath.FromSlash(logFilePath)
		os.MkdirAll(filepath.Dir(logFileName), os.ModePerm)
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file : %v\n", err)
		} else {
			logConfig.Main.SetWriter(io.MultiWriter(os.Stderr, logFile))
		}
	} else {
		logConfig.Main.SetWriter(os.Stderr)
	}

	if isDevelopment {
		logConfig.Main.Format |= logger.IncludeSystem | logger.IncludeMicro
		logConfig.Main.MinLevel = logger.LevelDebug
	}

	for _, subSystem := range subSystems {
		logConfig.EnableSubSystem(subSystem)
	}

	return logger.ContextWithLogConfig(ctx, logConfig)
}

// ContextFromEnv builds the logging context from DEVELOPMENT, LOG_FORMAT and LOG_FILE_PATH.
func ContextFromEnv(ctx context.Context, subSystems ...string) context.Context {
	return ContextWithLogger(ctx,
		strings.ToUpper(os.Getenv("DEVELOPMENT")) == "TRUE",
		strings.ToUpper(os.Getenv("LOG_FORMAT")) == "TEXT",
		os.Getenv("LOG_FILE_PATH"),
		subSystems...)
}
