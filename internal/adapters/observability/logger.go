package observability

import (
	"os"

	"github.com/sirupsen/logrus"
)

// LogConfig selects level, formatter and destination of the operational log.
type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// NewLogger builds the process logger. An unknown level falls back to info;
// an unwritable file falls back to stderr with a warning.
func NewLogger(cfg LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("open log file %s: %v, using stderr", cfg.FilePath, err)
		}
	}
	return log
}
