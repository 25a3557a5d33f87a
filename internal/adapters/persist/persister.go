package persist

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// Persister appends every reading to a CSV file and a JSON-lines log. Each
// call is flushed and fsynced before it returns. A path that fails is closed
// and reopened on the next call.
type Persister struct {
	mu     sync.Mutex
	cfg    Config
	runID  string
	csv    *csvFile
	log    *jsonLog
	last   time.Time
	closed bool
}

var _ ports.Persister = (*Persister)(nil)

// Open prepares both outputs. Existing files are appended to; a CSV file whose
// header does not match is refused with ErrConfiguration.
func Open(cfg Config) (*Persister, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: outputs: %v", ports.ErrConfiguration, err)
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	p := &Persister{cfg: cfg, runID: runID}

	csvPath, logPath := cfg.pathsFor(time.Now())
	c, err := openCSV(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", csvPath, err)
	}
	l, err := openJSONLog(logPath)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("open log %s: %w", logPath, err)
	}
	p.csv, p.log = c, l
	p.last = c.last
	if l.last.After(p.last) {
		p.last = l.last
	}
	return p, nil
}

func (p *Persister) RunID() string { return p.runID }

// LastTimestamp is the newest timestamp persisted so far, including what was
// found in the files at Open.
func (p *Persister) LastTimestamp() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Persister) Append(b domain.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(b.Timestamp); err != nil {
		return err
	}
	if len(b.Readings) == 0 {
		return nil
	}

	csvPath, logPath := p.cfg.pathsFor(b.Timestamp)
	var errs []error
	wrote := false
	if err := p.appendCSV(csvPath, b); err != nil {
		errs = append(errs, err)
	} else {
		wrote = true
	}
	if err := p.appendLog(logPath, b); err != nil {
		errs = append(errs, err)
	} else {
		wrote = true
	}
	if wrote {
		p.last = b.Timestamp
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ports.ErrPersistenceWrite, errors.Join(errs...))
	}
	return nil
}

// RecordFailure writes one poll_failed line to the structured log.
func (p *Persister) RecordFailure(ts time.Time, cause error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ts); err != nil {
		return err
	}
	if !*p.cfg.LogFailures || cause == nil {
		return nil
	}
	_, logPath := p.cfg.pathsFor(ts)
	l, err := p.logFor(logPath)
	if err == nil {
		err = l.failure(p.runID, ts, cause)
		if err != nil {
			p.dropLog()
		}
	}
	if err != nil {
		return fmt.Errorf("%w: log %s: %w", ports.ErrPersistenceWrite, logPath, err)
	}
	p.last = ts
	return nil
}

func (p *Persister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(p.csv.close(), p.log.close())
}

func (p *Persister) check(ts time.Time) error {
	if p.closed {
		return fmt.Errorf("%w: persister closed", ports.ErrPersistenceWrite)
	}
	if ts.Before(p.last) {
		return fmt.Errorf("%w: timestamp %s precedes last persisted %s",
			ports.ErrPersistenceWrite, ts.Format(time.RFC3339Nano), p.last.Format(time.RFC3339Nano))
	}
	return nil
}

func (p *Persister) appendCSV(path string, b domain.Batch) error {
	c, err := p.csvFor(path)
	if err == nil {
		err = c.append(b)
		if err != nil {
			p.dropCSV()
		}
	}
	if err != nil {
		return fmt.Errorf("csv %s: %w", path, err)
	}
	return nil
}

func (p *Persister) appendLog(path string, b domain.Batch) error {
	l, err := p.logFor(path)
	if err == nil {
		err = l.append(p.runID, b)
		if err != nil {
			p.dropLog()
		}
	}
	if err != nil {
		return fmt.Errorf("log %s: %w", path, err)
	}
	return nil
}

func (p *Persister) csvFor(path string) (*csvFile, error) {
	if p.csv != nil && p.csv.path != path {
		p.dropCSV()
	}
	if p.csv == nil {
		c, err := openCSV(path)
		if err != nil {
			return nil, err
		}
		p.csv = c
	}
	return p.csv, nil
}

func (p *Persister) logFor(path string) (*jsonLog, error) {
	if p.log != nil && p.log.path != path {
		p.dropLog()
	}
	if p.log == nil {
		l, err := openJSONLog(path)
		if err != nil {
			return nil, err
		}
		p.log = l
	}
	return p.log, nil
}

func (p *Persister) dropCSV() {
	p.csv.close()
	p.csv = nil
}

func (p *Persister) dropLog() {
	p.log.close()
	p.log = nil
}
