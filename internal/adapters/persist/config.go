package persist

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

const RotateDaily = "daily"

// Config names the two append-only outputs.
type Config struct {
	CSVPath     string `yaml:"csv_path"`
	LogPath     string `yaml:"log_path"`
	Rotate      string `yaml:"rotate"`
	LogFailures *bool  `yaml:"log_failures"`

	// RunID is stamped on every structured log line. Generated when empty.
	RunID string `yaml:"-"`
}

func (c *Config) ApplyDefaults() {
	if c.CSVPath == "" {
		c.CSVPath = "./data/readings.csv"
	}
	if c.LogPath == "" {
		c.LogPath = "./data/readings.log"
	}
	if c.LogFailures == nil {
		v := true
		c.LogFailures = &v
	}
}

func (c *Config) Validate() error {
	if c.CSVPath == "" || c.LogPath == "" {
		return errors.New("csv_path and log_path are required")
	}
	if filepath.Clean(c.CSVPath) == filepath.Clean(c.LogPath) {
		return errors.New("csv_path and log_path must differ")
	}
	if c.Rotate != "" && c.Rotate != RotateDaily {
		return errors.New(`rotate must be "" or "daily"`)
	}
	return nil
}

// pathsFor returns the output paths used for a batch stamped ts.
func (c *Config) pathsFor(ts time.Time) (string, string) {
	if c.Rotate != RotateDaily {
		return c.CSVPath, c.LogPath
	}
	day := ts.UTC().Format("20060102")
	return withSuffix(c.CSVPath, day), withSuffix(c.LogPath, day)
}

func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + suffix + ext
}
