package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

var (
	globalBase  *zap.Logger
	globalSugar *zap.SugaredLogger
)

// Init initializes the global zap logger. env is "production"/"prod" or
// "development" (default). Stdlib log output is redirected to zap so
// log.Printf calls from dependencies are captured.
func Init(env string) (*zap.Logger, error) {
	if globalBase != nil {
		return globalBase, nil
	}

	var cfg zap.Config
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(base)
	_ = zap.RedirectStdLog(base)

	globalBase = base
	globalSugar = base.Sugar()
	return globalBase, nil
}

// Base returns the global *zap.Logger, initializing it on first use.
func Base() *zap.Logger {
	if globalBase == nil {
		if _, err := Init(os.Getenv("LOG_ENV")); err != nil {
			base, _ := zap.NewDevelopment()
			globalBase = base
			globalSugar = base.Sugar()
		}
	}
	return globalBase
}

// L returns the global sugared logger.
func L() *zap.SugaredLogger {
	Base()
	return globalSugar
}

// Sync flushes buffered log entries.
func Sync() {
	if globalBase != nil {
		_ = globalBase.Sync()
	}
}

// GORMWriter adapts the global zap logger to gorm.io/gorm/logger.Writer,
// which expects a Printf method.
type GORMWriter struct{}

// NewGORMWriter returns a writer adapter for the GORM logger.
func NewGORMWriter() GORMWriter {
	return GORMWriter{}
}

// Printf implements gorm.io/gorm/logger.Writer.
func (w GORMWriter) Printf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	msg = strings.TrimSuffix(msg, "\n")
	Base().Warn(msg)
}
