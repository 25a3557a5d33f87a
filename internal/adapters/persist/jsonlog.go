package persist

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// errWriter remembers the first write error, since logrus only reports
// output failures on stderr.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil && e.err == nil {
		e.err = err
	}
	return n, err
}

type jsonLog struct {
	path   string
	f      *os.File
	out    *errWriter
	logger *logrus.Logger
	last   time.Time
}

func openJSONLog(path string) (*jsonLog, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	l := &jsonLog{path: path, f: f, out: &errWriter{w: f}}
	l.logger = logrus.New()
	l.logger.SetOutput(l.out)
	l.logger.SetLevel(logrus.InfoLevel)
	l.logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	last, err := recoverTail(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if last != nil {
		var line struct {
			Time string `json:"time"`
		}
		if err := json.Unmarshal(last, &line); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s last line unreadable: %v", ports.ErrConfiguration, path, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, line.Time)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %s last line has no time: %v", ports.ErrConfiguration, path, err)
		}
		l.last = ts
	}
	return l, nil
}

func (l *jsonLog) append(runID string, b domain.Batch) error {
	for _, r := range b.Readings {
		fields := logrus.Fields{
			"run_id":     runID,
			"seq":        b.Seq,
			"channel_id": r.ChannelID,
			"status":     string(r.Status),
		}
		if r.Status != domain.StatusError {
			fields["value"] = r.Value
		}
		l.logger.WithTime(r.Timestamp.UTC()).WithFields(fields).Info("reading")
	}
	return l.sync()
}

func (l *jsonLog) failure(runID string, ts time.Time, cause error) error {
	l.logger.WithTime(ts.UTC()).WithFields(logrus.Fields{
		"run_id":     runID,
		"error_kind": ports.ErrorKind(cause),
		"error":      cause.Error(),
	}).Warn("poll_failed")
	return l.sync()
}

func (l *jsonLog) sync() error {
	if l.out.err != nil {
		return l.out.err
	}
	return l.f.Sync()
}

func (l *jsonLog) close() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
