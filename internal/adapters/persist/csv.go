package persist

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

var csvHeader = []string{"timestamp", "channel_id", "value", "status"}

var headerLine = strings.Join(csvHeader, ",")

type csvFile struct {
	path string
	f    *os.File
	w    *csv.Writer
	last time.Time
}

func openCSV(path string) (*csvFile, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	c := &csvFile{path: path, f: f, w: csv.NewWriter(f)}
	if err := c.bootstrap(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

// bootstrap decides between appending to an existing file and starting a new
// one. An existing file must begin with the expected header; anything else is
// refused rather than overwritten.
func (c *csvFile) bootstrap() error {
	head, complete, err := firstLine(c.f, len(headerLine)+2)
	if err != nil {
		return err
	}
	torn := !complete && strings.HasPrefix(headerLine, string(head))
	if len(head) > 0 && string(head) != headerLine && !torn {
		return fmt.Errorf("%w: %s starts with %q, want header %q", ports.ErrConfiguration, c.path, head, headerLine)
	}

	last, err := recoverTail(c.f)
	if err != nil {
		return err
	}
	if last == nil {
		return c.writeRows([][]string{csvHeader})
	}
	if bytes.Equal(last, []byte(headerLine)) {
		return nil
	}
	ts, err := rowTimestamp(last)
	if err != nil {
		return fmt.Errorf("%w: %s last row unreadable: %v", ports.ErrConfiguration, c.path, err)
	}
	c.last = ts
	return nil
}

func (c *csvFile) append(b domain.Batch) error {
	rows := make([][]string, 0, len(b.Readings))
	for _, r := range b.Readings {
		rows = append(rows, csvRow(r))
	}
	return c.writeRows(rows)
}

func (c *csvFile) writeRows(rows [][]string) error {
	for _, row := range rows {
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	return c.f.Sync()
}

func (c *csvFile) close() error {
	if c == nil || c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	return err
}

func csvRow(r domain.Reading) []string {
	value := ""
	if r.Status != domain.StatusError {
		value = strconv.FormatFloat(r.Value, 'f', -1, 64)
	}
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(r.ChannelID),
		value,
		string(r.Status),
	}
}

func rowTimestamp(line []byte) (time.Time, error) {
	rec, err := csv.NewReader(bytes.NewReader(line)).Read()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, rec[0])
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
}
