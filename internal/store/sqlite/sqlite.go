package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/flowstate-app/gateway/internal/store"
	"github.com/flowstate-app/gateway/internal/store/model"
)

// DB is the query surface shared by *sqlx.DB and *sqlx.Tx.
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository implements store.Repository on sqlite.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Requests() store.RequestRepository {
	return &requestRepo{db: r.db}
}

type requestRepo struct {
	db DB
}

func (r *requestRepo) Log(ctx context.Context, log *model.RequestLog) error {
	query := `
	INSERT INTO request_logs (
		id, session_id, model_id, provider_id, upstream_id,
		streamed, fell_back, status, error_message,
		prompt_tokens, completion_tokens, total_tokens, duration_ms, created_at
	) VALUES (
		:id, :session_id, :model_id, :provider_id, :upstream_id,
		:streamed, :fell_back, :status, :error_message,
		:prompt_tokens, :completion_tokens, :total_tokens, :duration_ms, :created_at
	)`
	_, err := r.db.NamedExecContext(ctx, query, log)
	return err
}

func (r *requestRepo) GetRecent(ctx context.Context, limit int) ([]model.RequestLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []model.RequestLog
	err := r.db.SelectContext(ctx, &logs,
		`SELECT * FROM request_logs ORDER BY created_at DESC LIMIT ?`, limit)
	return logs, err
}

func (r *requestRepo) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	if days <= 0 {
		days = 7
	}
	query := fmt.Sprintf(`
	SELECT
		date(created_at) AS day,
		COUNT(*) AS requests,
		COALESCE(SUM(total_tokens), 0) AS total_tokens,
		SUM(CASE WHEN status != 'ok' THEN 1 ELSE 0 END) AS errors,
		SUM(CASE WHEN fell_back THEN 1 ELSE 0 END) AS fallbacks
	FROM request_logs
	WHERE created_at >= datetime('now', '-%d days')
	GROUP BY date(created_at)
	ORDER BY day DESC`, days)

	var stats []model.DailyStats
	err := r.db.SelectContext(ctx, &stats, query)
	return stats, err
}
