package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of *pgxpool.Pool used by the repository; pgxmock pools
// satisfy it as well.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Repository is the PostgreSQL implementation of domain.Repository.
type Repository struct {
	db     DB
	logger *slog.Logger
}

var _ domain.Repository = (*Repository)(nil)

func NewRepository(db DB, logger *slog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With("component", "postgres_repository"),
	}
}

// EnsureSchema creates the tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (r *Repository) Close() error {
	r.db.Close()
	return nil
}

const resourceColumns = `sid, kind, account_sid, provider, from_number, to_number, body, num_segments, twiml_url, callback_url, status, created_at, updated_at`

func (r *Repository) CreateResource(ctx context.Context, res *domain.Resource) error {
	query := `INSERT INTO resources (` + resourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		res.SID,
		res.Kind.String(),
		res.AccountSID,
		res.Provider,
		res.From,
		res.To,
		nullIfEmpty(res.Body),
		res.NumSegments,
		nullIfEmpty(res.TwimlURL),
		nullIfEmpty(res.CallbackURL),
		res.Status.String(),
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting resource", "error", err, "sid", res.SID)
		return fmt.Errorf("insert %s %s: %w", res.Kind, res.SID, err)
	}
	return nil
}

func (r *Repository) GetResource(ctx context.Context, kind domain.ResourceKind, sid string) (*domain.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE kind = $1 AND sid = $2`

	res, err := scanResource(r.db.QueryRow(ctx, query, kind.String(), sid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get %s %s: %w", kind, sid, err)
	}
	return res, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, kind domain.ResourceKind, sid string, status domain.Status) error {
	query := `UPDATE resources SET status = $1, updated_at = $2 WHERE kind = $3 AND sid = $4`

	tag, err := r.db.Exec(ctx, query, status.String(), time.Now().UTC(), kind.String(), sid)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating status", "error", err, "sid", sid, "status", status.String())
		return fmt.Errorf("update %s %s: %w", kind, sid, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) ListResources(ctx context.Context, kind domain.ResourceKind, limit, offset int) ([]*domain.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE kind = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, kind.String(), limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	out := []*domain.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *Repository) CreateDeliveryEvent(ctx context.Context, event *domain.DeliveryEvent) error {
	query := `INSERT INTO delivery_events (resource_sid, resource_kind, event_type, status, callback_sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	err := r.db.QueryRow(ctx, query,
		event.ResourceSID,
		event.ResourceKind.String(),
		event.EventType,
		event.Status.String(),
		event.CallbackSent,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting delivery event", "error", err, "sid", event.ResourceSID)
		return fmt.Errorf("insert delivery event for %s: %w", event.ResourceSID, err)
	}
	return nil
}

func (r *Repository) ListDeliveryEvents(ctx context.Context, kind domain.ResourceKind, sid string) ([]*domain.DeliveryEvent, error) {
	query := `SELECT id, resource_sid, resource_kind, event_type, status, callback_sent, created_at
		FROM delivery_events WHERE resource_kind = $1 AND resource_sid = $2 ORDER BY id`

	rows, err := r.db.Query(ctx, query, kind.String(), sid)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", sid, err)
	}
	defer rows.Close()

	out := []*domain.DeliveryEvent{}
	for rows.Next() {
		var (
			e          domain.DeliveryEvent
			kindName   string
			statusName string
		)
		if err := rows.Scan(&e.ID, &e.ResourceSID, &kindName, &e.EventType, &statusName, &e.CallbackSent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.ResourceKind, err = domain.ParseResourceKind(kindName); err != nil {
			return nil, err
		}
		if e.Status, err = domain.ParseStatus(statusName); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *Repository) CreateCallbackLog(ctx context.Context, log *domain.CallbackLog) error {
	query := `INSERT INTO callback_logs (target_url, payload, status_code, response_body, attempt_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	err := r.db.QueryRow(ctx, query,
		log.TargetURL,
		log.Payload,
		log.StatusCode,
		log.ResponseBody,
		log.AttemptNumber,
		log.CreatedAt,
	).Scan(&log.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting callback log", "error", err, "url", log.TargetURL)
		return fmt.Errorf("insert callback log: %w", err)
	}
	return nil
}

const callbackLogColumns = `id, target_url, payload, status_code, response_body, attempt_number, created_at`

func (r *Repository) GetCallbackLog(ctx context.Context, id int64) (*domain.CallbackLog, error) {
	query := `SELECT ` + callbackLogColumns + ` FROM callback_logs WHERE id = $1`

	l, err := scanCallbackLog(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get callback log %d: %w", id, err)
	}
	return l, nil
}

func (r *Repository) ListCallbackLogs(ctx context.Context, limit, offset int) ([]*domain.CallbackLog, error) {
	query := `SELECT ` + callbackLogColumns + ` FROM callback_logs ORDER BY id DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limitOrAll(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list callback logs: %w", err)
	}
	defer rows.Close()

	out := []*domain.CallbackLog{}
	for rows.Next() {
		l, err := scanCallbackLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan callback log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) Statistics(ctx context.Context) (domain.Statistics, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM resources WHERE kind = 'message'),
		(SELECT COUNT(*) FROM resources WHERE kind = 'call'),
		(SELECT COUNT(*) FROM callback_logs)`

	var stats domain.Statistics
	if err := r.db.QueryRow(ctx, query).Scan(&stats.Messages, &stats.Calls, &stats.Callbacks); err != nil {
		return stats, fmt.Errorf("statistics: %w", err)
	}
	return stats, nil
}

func (r *Repository) ClearResources(ctx context.Context, kind domain.ResourceKind) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin clear %s: %w", kind, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := clearKind(ctx, tx, kind)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit clear %s: %w", kind, err)
	}
	return n, nil
}

func (r *Repository) ClearCallbackLogs(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM callback_logs`)
	if err != nil {
		return 0, fmt.Errorf("clear callback logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) ClearAll(ctx context.Context) (domain.ClearedCounts, error) {
	var counts domain.ClearedCounts

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return counts, fmt.Errorf("begin clear all: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if counts.Messages, err = clearKind(ctx, tx, domain.ResourceKindMessage); err != nil {
		return counts, err
	}
	if counts.Calls, err = clearKind(ctx, tx, domain.ResourceKindCall); err != nil {
		return counts, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM callback_logs`)
	if err != nil {
		return counts, fmt.Errorf("clear callback logs: %w", err)
	}
	counts.Callbacks = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return counts, fmt.Errorf("commit clear all: %w", err)
	}
	return counts, nil
}

func clearKind(ctx context.Context, tx pgx.Tx, kind domain.ResourceKind) (int64, error) {
	if _, err := tx.Exec(ctx, `DELETE FROM delivery_events WHERE resource_kind = $1`, kind.String()); err != nil {
		return 0, fmt.Errorf("clear %s events: %w", kind, err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM resources WHERE kind = $1`, kind.String())
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", kind, err)
	}
	return tag.RowsAffected(), nil
}

func scanResource(row pgx.Row) (*domain.Resource, error) {
	var (
		res                         domain.Resource
		kindName, statusName        string
		body, twimlURL, callbackURL *string
	)
	err := row.Scan(
		&res.SID,
		&kindName,
		&res.AccountSID,
		&res.Provider,
		&res.From,
		&res.To,
		&body,
		&res.NumSegments,
		&twimlURL,
		&callbackURL,
		&statusName,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if res.Kind, err = domain.ParseResourceKind(kindName); err != nil {
		return nil, err
	}
	if res.Status, err = domain.ParseStatus(statusName); err != nil {
		return nil, err
	}
	res.Body = deref(body)
	res.TwimlURL = deref(twimlURL)
	res.CallbackURL = deref(callbackURL)
	return &res, nil
}

func scanCallbackLog(row pgx.Row) (*domain.CallbackLog, error) {
	var l domain.CallbackLog
	if err := row.Scan(&l.ID, &l.TargetURL, &l.Payload, &l.StatusCode, &l.ResponseBody, &l.AttemptNumber, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// limitOrAll maps a non-positive limit to no limit (LIMIT NULL).
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
