package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CarbonPulse/internal/domain/models"
	domrepo "CarbonPulse/internal/domain/repository"
	pkgch "CarbonPulse/pkg/clickhouse"
	"CarbonPulse/pkg/fixed"
)

// schemaStatements create the append-only measurement archive. Values are
// stored as decimal strings so the fixed-point representation survives the
// round trip bit-exact.
func schemaStatements(table string) []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS carbonpulse`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts DateTime,
            entity LowCardinality(String),
            sector LowCardinality(String),
            value String,
            ingested_at DateTime DEFAULT now()
        ) ENGINE = MergeTree()
        ORDER BY (entity, sector, ts)`, table),
	}
}

// MeasurementArchive implements the archive on ClickHouse. The ledger owns
// the authoritative windowed state; the archive serves range queries and
// reports.
type MeasurementArchive struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
}

// NewMeasurementArchive creates a ClickHouse-backed archive.
func NewMeasurementArchive(ch *pkgch.Client, table string) *MeasurementArchive {
	if table == "" {
		table = "carbonpulse.measurements"
	}
	return &MeasurementArchive{ch: ch, db: ch.DB(), table: table}
}

func (a *MeasurementArchive) Init(ctx context.Context) error {
	return a.ch.InitSchema(ctx, schemaStatements(a.table))
}

func (a *MeasurementArchive) Append(ctx context.Context, m *models.Measurement) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, entity, sector, value) VALUES (?, ?, ?, ?)", a.table)
	_, err := a.db.ExecContext(ctx, q,
		time.Unix(m.Timestamp, 0),
		m.Entity,
		m.Sector,
		m.Value.String(),
	)
	return err
}

func (a *MeasurementArchive) AppendBatch(ctx context.Context, ms []*models.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	// Multi-row VALUES inserts, chunked to bound statement size.
	const chunkSize = 2000
	for start := 0; start < len(ms); start += chunkSize {
		end := start + chunkSize
		if end > len(ms) {
			end = len(ms)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*4)
		for _, m := range ms[start:end] {
			if m == nil || m.Entity == "" || m.Sector == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?)")
			args = append(args,
				time.Unix(m.Timestamp, 0),
				m.Entity,
				m.Sector,
				m.Value.String(),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, entity, sector, value) VALUES %s", a.table, strings.Join(values, ","))
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (a *MeasurementArchive) Query(ctx context.Context, entity, sector string, from, to time.Time, limit int) ([]*models.Measurement, error) {
	q := fmt.Sprintf("SELECT entity, sector, ts, value FROM %s WHERE entity = ? AND sector = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", a.table)
	rows, err := a.db.QueryContext(ctx, q, entity, sector, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	var out []*models.Measurement
	for rows.Next() {
		var m models.Measurement
		var ts time.Time
		var raw string
		if err := rows.Scan(&m.Entity, &m.Sector, &ts, &raw); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.Timestamp = ts.Unix()
		if m.Value, err = fixed.Parse(raw); err != nil {
			return nil, fmt.Errorf("parse measurement value: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (a *MeasurementArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *MeasurementArchive) Close() error {
	return nil // pool owned by pkg client
}

var _ domrepo.Archive = (*MeasurementArchive)(nil)
