package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/contestra/ai-ranker-sub003/internal/history"
)

// RunRepo пишет историю прогонов в таблицу run_history пачками.
type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(connString string, maxConns, minConns int) (*RunRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open failed: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 15
	}
	if minConns <= 0 {
		minConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &RunRepo{db: db}, nil
}

// Ping проверяет доступность базы при старте.
func (r *RunRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *RunRepo) Close() error {
	return r.db.Close()
}

// WriteBatch вставляет пачку записей одним запросом.
func (r *RunRepo) WriteBatch(ctx context.Context, records []history.RunRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Количество колонок в таблице run_history
	const numFields = 11
	placeholderStr := ""
	vals := make([]interface{}, 0, len(records)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, rec := range records {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11)

		result, _ := json.Marshal(rec.Result)

		vals = append(vals,
			rec.ID, rec.TraceID, rec.Country, rec.Provider, rec.Model,
			rec.Grounded, rec.Status, rec.Error, result, rec.DurationMs, rec.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO run_history (id, trace_id, country, provider, model, grounded, status, error, result, duration_ms, created_at) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}
