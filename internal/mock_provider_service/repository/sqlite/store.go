// Package sqlite stores resources, delivery events and callback logs in a
// single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aradsms/mock_provider/internal/mock_provider_service/domain"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - resources, delivery_events, callback_logs
const currentSchemaVersion = 1

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.Repository = (*Repository)(nil)

// NewRepository applies the schema to db and returns the repository.
// db is typically opened with database.OpenSQLite.
func NewRepository(db *sql.DB, logger *slog.Logger) (*Repository, error) {
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Repository{db: db, logger: logger.With("component", "sqlite_repository")}, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const resourceColumns = `sid, kind, account_sid, provider, from_number, to_number, body, num_segments, twiml_url, callback_url, status, created_at, updated_at`

func (r *Repository) CreateResource(ctx context.Context, res *domain.Resource) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resources (`+resourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.SID, res.Kind.String(), res.AccountSID, res.Provider, res.From, res.To,
		nullString(res.Body), res.NumSegments, nullString(res.TwimlURL), nullString(res.CallbackURL),
		res.Status.String(), res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting resource", "error", err, "sid", res.SID)
		return fmt.Errorf("insert %s %s: %w", res.Kind, res.SID, err)
	}
	return nil
}

func (r *Repository) GetResource(ctx context.Context, kind domain.ResourceKind, sid string) (*domain.Resource, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE kind = ? AND sid = ?`, kind.String(), sid)

	res, err := scanResource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get %s %s: %w", kind, sid, err)
	}
	return res, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, kind domain.ResourceKind, sid string, status domain.Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE resources SET status = ?, updated_at = ? WHERE kind = ? AND sid = ?`,
		status.String(), time.Now().UTC(), kind.String(), sid)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating status", "error", err, "sid", sid, "status", status.String())
		return fmt.Errorf("update %s %s: %w", kind, sid, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", kind, sid, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) ListResources(ctx context.Context, kind domain.ResourceKind, limit, offset int) ([]*domain.Resource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE kind = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		kind.String(), sqliteLimit(limit), offset)
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
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_events (resource_sid, resource_kind, event_type, status, callback_sent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ResourceSID, event.ResourceKind.String(), event.EventType, event.Status.String(),
		event.CallbackSent, event.CreatedAt.UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting delivery event", "error", err, "sid", event.ResourceSID)
		return fmt.Errorf("insert delivery event for %s: %w", event.ResourceSID, err)
	}
	if event.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("delivery event id: %w", err)
	}
	return nil
}

func (r *Repository) ListDeliveryEvents(ctx context.Context, kind domain.ResourceKind, sid string) ([]*domain.DeliveryEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, resource_sid, resource_kind, event_type, status, callback_sent, created_at
		 FROM delivery_events WHERE resource_kind = ? AND resource_sid = ? ORDER BY id`,
		kind.String(), sid)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", sid, err)
	}
	defer rows.Close()

	out := []*domain.DeliveryEvent{}
	for rows.Next() {
		var (
			e                    domain.DeliveryEvent
			kindName, statusName string
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
	var status sql.NullInt64
	if log.StatusCode != nil {
		status = sql.NullInt64{Int64: int64(*log.StatusCode), Valid: true}
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO callback_logs (target_url, payload, status_code, response_body, attempt_number, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		log.TargetURL, log.Payload, status, log.ResponseBody, log.AttemptNumber, log.CreatedAt.UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting callback log", "error", err, "url", log.TargetURL)
		return fmt.Errorf("insert callback log: %w", err)
	}
	if log.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("callback log id: %w", err)
	}
	return nil
}

const callbackLogColumns = `id, target_url, payload, status_code, response_body, attempt_number, created_at`

func (r *Repository) GetCallbackLog(ctx context.Context, id int64) (*domain.CallbackLog, error) {
	l, err := scanCallbackLog(r.db.QueryRowContext(ctx,
		`SELECT `+callbackLogColumns+` FROM callback_logs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get callback log %d: %w", id, err)
	}
	return l, nil
}

func (r *Repository) ListCallbackLogs(ctx context.Context, limit, offset int) ([]*domain.CallbackLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+callbackLogColumns+` FROM callback_logs ORDER BY id DESC LIMIT ? OFFSET ?`,
		sqliteLimit(limit), offset)
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
	var stats domain.Statistics
	err := r.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM resources WHERE kind = 'message'),
		(SELECT COUNT(*) FROM resources WHERE kind = 'call'),
		(SELECT COUNT(*) FROM callback_logs)`).Scan(&stats.Messages, &stats.Calls, &stats.Callbacks)
	if err != nil {
		return stats, fmt.Errorf("statistics: %w", err)
	}
	return stats, nil
}

func (r *Repository) ClearResources(ctx context.Context, kind domain.ResourceKind) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear %s: %w", kind, err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := clearKind(ctx, tx, kind)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear %s: %w", kind, err)
	}
	return n, nil
}

func (r *Repository) ClearCallbackLogs(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM callback_logs`)
	if err != nil {
		return 0, fmt.Errorf("clear callback logs: %w", err)
	}
	return result.RowsAffected()
}

func (r *Repository) ClearAll(ctx context.Context) (domain.ClearedCounts, error) {
	var counts domain.ClearedCounts

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin clear all: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if counts.Messages, err = clearKind(ctx, tx, domain.ResourceKindMessage); err != nil {
		return counts, err
	}
	if counts.Calls, err = clearKind(ctx, tx, domain.ResourceKindCall); err != nil {
		return counts, err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM callback_logs`)
	if err != nil {
		return counts, fmt.Errorf("clear callback logs: %w", err)
	}
	if counts.Callbacks, err = result.RowsAffected(); err != nil {
		return counts, err
	}

	if err := tx.Commit(); err != nil {
		return counts, fmt.Errorf("commit clear all: %w", err)
	}
	return counts, nil
}

func clearKind(ctx context.Context, tx *sql.Tx, kind domain.ResourceKind) (int64, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM delivery_events WHERE resource_kind = ?`, kind.String()); err != nil {
		return 0, fmt.Errorf("clear %s events: %w", kind, err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE kind = ?`, kind.String())
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", kind, err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*domain.Resource, error) {
	var (
		res                         domain.Resource
		kindName, statusName        string
		body, twimlURL, callbackURL sql.NullString
	)
	err := row.Scan(&res.SID, &kindName, &res.AccountSID, &res.Provider, &res.From, &res.To,
		&body, &res.NumSegments, &twimlURL, &callbackURL, &statusName, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if res.Kind, err = domain.ParseResourceKind(kindName); err != nil {
		return nil, err
	}
	if res.Status, err = domain.ParseStatus(statusName); err != nil {
		return nil, err
	}
	res.Body = body.String
	res.TwimlURL = twimlURL.String
	res.CallbackURL = callbackURL.String
	return &res, nil
}

func scanCallbackLog(row rowScanner) (*domain.CallbackLog, error) {
	var (
		l      domain.CallbackLog
		status sql.NullInt64
	)
	if err := row.Scan(&l.ID, &l.TargetURL, &l.Payload, &status, &l.ResponseBody, &l.AttemptNumber, &l.CreatedAt); err != nil {
		return nil, err
	}
	if status.Valid {
		code := int(status.Int64)
		l.StatusCode = &code
	}
	return &l, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// sqliteLimit maps a non-positive limit to SQLite's "no limit".
func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
