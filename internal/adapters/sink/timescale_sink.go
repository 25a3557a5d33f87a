package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/ghalamif/VoltLog/internal/domain"
	"github.com/ghalamif/VoltLog/internal/ports"
)

// TimescaleMirror inserts every reading of a batch into one hypertable row.
type TimescaleMirror struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleMirror(db *sql.DB, table string) *TimescaleMirror {
	return &TimescaleMirror{db: db, tableName: table}
}

// OpenTimescale opens the database with the configured driver and checks it
// is reachable.
func OpenTimescale(ctx context.Context, cfg TimescaleConfig) (*TimescaleMirror, error) {
	db, err := sql.Open(cfg.Driver, cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return NewTimescaleMirror(db, cfg.Table), nil
}

func (t *TimescaleMirror) Name() string { return "timescaledb" }

func (t *TimescaleMirror) WriteBatch(ctx context.Context, batch domain.Batch) error {
	if len(batch.Readings) == 0 {
		return nil
	}

	// Idempotent on (channel_id, ts) so a replayed batch is harmless.
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (ts, channel_id, value, status, seq) VALUES ")

	args := make([]any, 0, len(batch.Readings)*5)
	for i, r := range batch.Readings {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5))

		var value any
		if r.Status != domain.StatusError {
			value = r.Value
		}
		args = append(args,
			r.Timestamp,
			r.ChannelID,
			value,
			string(r.Status),
			int64(batch.Seq),
		)
	}

	b.WriteString(" ON CONFLICT (channel_id, ts) DO NOTHING")

	_, err := t.db.ExecContext(ctx, b.String(), args...)
	return err
}

func (t *TimescaleMirror) Close() error { return t.db.Close() }

var _ ports.Mirror = (*TimescaleMirror)(nil)
