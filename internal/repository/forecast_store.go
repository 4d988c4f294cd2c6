package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinFit/internal/domain/models"
	domrepo "FinFit/internal/domain/repository"
	pkgch "FinFit/pkg/clickhouse"
	applogger "FinFit/pkg/logger"
)

const (
	forecastColumns = "created_at, dataset, symbol, model, w0, w1, forecast, periods"
	insertChunkSize = 2000
)

// Schema returns the idempotent DDL for the forecasts table in database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.forecasts (
    created_at DateTime64(3),
    dataset    LowCardinality(String),
    symbol     LowCardinality(String),
    model      LowCardinality(String),
    w0         Float64,
    w1         Float64,
    forecast   Float64,
    periods    UInt32
) ENGINE = MergeTree
ORDER BY (symbol, model, created_at)`, database),
	}
}

// CHForecastStore implements ForecastStore backed by ClickHouse.
type CHForecastStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.ForecastStore = (*CHForecastStore)(nil)

func NewCHForecastStore(ch *pkgch.Client, database string, l *applogger.Logger) *CHForecastStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHForecastStore{ch: ch, db: ch.DB(), table: database + ".forecasts", l: l}
}

func (s *CHForecastStore) Init(ctx context.Context) error {
	database := strings.TrimSuffix(s.table, ".forecasts")
	return s.ch.InitSchema(ctx, Schema(database))
}

// StoreBatch inserts forecasts with multi-row VALUES statements of at most
// insertChunkSize rows. Nil entries are skipped.
func (s *CHForecastStore) StoreBatch(ctx context.Context, forecasts []*models.Forecast) error {
	start := time.Now()
	rows := 0
	for lo := 0; lo < len(forecasts); lo += insertChunkSize {
		hi := lo + insertChunkSize
		if hi > len(forecasts) {
			hi = len(forecasts)
		}
		q, args := insertStatement(s.table, forecasts[lo:hi])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store_forecasts error",
				applogger.String("table", s.table),
				applogger.Int("rows", len(args)/8),
				applogger.Error(err),
			)
			return fmt.Errorf("store forecasts: %w", err)
		}
		rows += len(args) / 8
	}
	s.l.Debug("clickhouse store_forecasts ok",
		applogger.String("table", s.table),
		applogger.Int("rows", rows),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func insertStatement(table string, forecasts []*models.Forecast) (string, []interface{}) {
	values := make([]string, 0, len(forecasts))
	args := make([]interface{}, 0, len(forecasts)*8)
	for _, f := range forecasts {
		if f == nil || f.Symbol == "" {
			continue
		}
		createdAt := f.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			createdAt,
			f.Dataset,
			f.Symbol,
			f.Model,
			f.Intercept.Float64(),
			f.Slope.Float64(),
			f.Value.Float64(),
			uint32(f.Periods),
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, forecastColumns, strings.Join(values, ",")), args
}

// Query returns the newest forecasts for symbol created within [from, to].
func (s *CHForecastStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Forecast, error) {
	q, args := selectStatement(s.table, symbol, from, to, limit)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse query_forecasts error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	var out []*models.Forecast
	for rows.Next() {
		var (
			f          models.Forecast
			w0, w1, fv float64
			periods    uint32
		)
		if err := rows.Scan(&f.CreatedAt, &f.Dataset, &f.Symbol, &f.Model, &w0, &w1, &fv, &periods); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		f.Intercept, f.Slope, f.Value = models.Number(w0), models.Number(w1), models.Number(fv)
		f.Periods = int(periods)
		out = append(out, &f)
	}
	return out, rows.Err()
}

func selectStatement(table, symbol string, from, to time.Time, limit int) (string, []interface{}) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE symbol = ? AND created_at >= ? AND created_at <= ? ORDER BY created_at DESC LIMIT ?",
		forecastColumns, table)
	return q, []interface{}{symbol, from, to, limit}
}

func (s *CHForecastStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHForecastStore) Close() error {
	return nil // pool owned by pkg/clickhouse
}
