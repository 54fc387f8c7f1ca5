package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"GrowthOpt/pkg/clickhouse"
	"GrowthOpt/pkg/logger"
)

// ClickHouseQuotes serves daily return history from a ClickHouse close-price
// table. Returns are derived from adjacent closes, so a request for n days
// of returns needs n+1 closes per ticker.
type ClickHouseQuotes struct {
	client *clickhouse.Client
	table  string
	log    *logger.Logger
}

func NewClickHouseQuotes(client *clickhouse.Client, table string, log *logger.Logger) *ClickHouseQuotes {
	return &ClickHouseQuotes{
		client: client,
		table:  table,
		log:    log.With("quotes_repository"),
	}
}

// InitSchema creates the quote table when it does not exist.
func (r *ClickHouseQuotes) InitSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ticker LowCardinality(String),
			date   Date,
			close  Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (ticker, date)
	`, r.table)

	return r.client.InitSchema(ctx, []string{stmt})
}

// Store inserts or replaces daily closes for one ticker.
func (r *ClickHouseQuotes) Store(ctx context.Context, ticker string, dates []time.Time, closes []float64) error {
	if len(dates) != len(closes) {
		return fmt.Errorf("quotes: %d dates for %d closes", len(dates), len(closes))
	}

	tx, err := r.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("quotes: begin insert: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (ticker, date, close) VALUES (?, ?, ?)", r.table))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("quotes: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range dates {
		if _, err := stmt.ExecContext(ctx, ticker, dates[i], closes[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("quotes: insert %s: %w", ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("quotes: commit insert: %w", err)
	}

	r.log.Debug("quotes stored",
		logger.String("ticker", ticker),
		logger.Int("days", len(dates)),
	)

	return nil
}

// Returns produces a days x len(tickers) matrix of one-day relative returns
// ending at end, rows ascending in time. All tickers must share the same
// trading calendar over the requested span.
func (r *ClickHouseQuotes) Returns(ctx context.Context, tickers []string, end time.Time, days int) ([][]float64, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("quotes: empty ticker list")
	}

	need := days + 1

	query := fmt.Sprintf(`
		SELECT ticker, date, close
		FROM %s
		WHERE ticker IN (%s) AND date <= ?
		ORDER BY ticker, date DESC
		LIMIT ? BY ticker
	`, r.table, placeholders(len(tickers)))

	args := make([]any, 0, len(tickers)+2)
	for _, ticker := range tickers {
		args = append(args, ticker)
	}
	args = append(args, end, need)

	rows, err := r.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("quotes query failed",
			logger.Error(err),
			logger.Int("tickers", len(tickers)),
			logger.Int("days", days),
		)

		return nil, fmt.Errorf("quotes: query closes: %w", err)
	}
	defer rows.Close()

	type point struct {
		date  time.Time
		close float64
	}

	series := make(map[string][]point, len(tickers))

	for rows.Next() {
		var (
			ticker string
			p      point
		)

		if err := rows.Scan(&ticker, &p.date, &p.close); err != nil {
			return nil, fmt.Errorf("quotes: scan close: %w", err)
		}

		series[ticker] = append(series[ticker], p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quotes: iterate closes: %w", err)
	}

	closes := make([][]point, len(tickers))

	for j, ticker := range tickers {
		s := series[ticker]
		if len(s) < need {
			return nil, fmt.Errorf("quotes: ticker %s has %d closes before %s, need %d",
				ticker, len(s), end.Format(time.DateOnly), need)
		}

		// Rows arrive newest first; flip the kept span to ascending.
		kept := make([]point, need)
		for i := range kept {
			kept[i] = s[need-1-i]
		}

		closes[j] = kept
	}

	// All series must cover the same trading days.
	for j := 1; j < len(closes); j++ {
		for i := range closes[j] {
			if !closes[j][i].date.Equal(closes[0][i].date) {
				return nil, fmt.Errorf("quotes: ticker %s calendar diverges from %s at %s",
					tickers[j], tickers[0], closes[j][i].date.Format(time.DateOnly))
			}
		}
	}

	out := make([][]float64, days)
	for i := range out {
		row := make([]float64, len(tickers))
		for j := range row {
			prev := closes[j][i].close
			if prev <= 0 {
				return nil, fmt.Errorf("quotes: ticker %s has non-positive close at %s",
					tickers[j], closes[j][i].date.Format(time.DateOnly))
			}

			row[j] = closes[j][i+1].close/prev - 1
		}

		out[i] = row
	}

	return out, nil
}

func (r *ClickHouseQuotes) Health(ctx context.Context) error {
	return r.client.Health(ctx)
}

func (r *ClickHouseQuotes) Close() error {
	return r.client.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
