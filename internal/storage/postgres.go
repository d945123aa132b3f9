package storage

import (
	"complywatch/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable store. Claims and cooldown transitions are
// single conditional statements so several daemon instances can share it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func ConnectPostgres(ctx context.Context, dsn string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() { s.pool.Close() }

const websiteColumns = `id, user_id, url, plan, monitored, last_scan_at, scan_claimed_at`

func scanWebsite(row pgx.Row) (models.Website, error) {
	var w models.Website
	var plan string
	err := row.Scan(&w.ID, &w.UserID, &w.URL, &plan, &w.Monitored, &w.LastScanAt, &w.ScanClaimedAt)
	w.Plan = models.PlanTier(plan)
	return w, err
}

func (s *PostgresStore) queryWebsites(ctx context.Context, sql string, args ...any) ([]models.Website, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListMonitoredWebsites(ctx context.Context) ([]models.Website, error) {
	return s.queryWebsites(ctx, `SELECT `+websiteColumns+` FROM websites WHERE monitored ORDER BY id`)
}

func (s *PostgresStore) ListWebsitesByUser(ctx context.Context, userID string) ([]models.Website, error) {
	return s.queryWebsites(ctx, `SELECT `+websiteColumns+` FROM websites WHERE user_id = $1 ORDER BY id`, userID)
}

func (s *PostgresStore) GetWebsite(ctx context.Context, id string) (*models.Website, error) {
	w, err := scanWebsite(s.pool.QueryRow(ctx, `SELECT `+websiteColumns+` FROM websites WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *PostgresStore) ClaimScan(ctx context.Context, websiteID string, expected *time.Time, now time.Time, claimWindow time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE websites
		SET last_scan_at = $3, scan_claimed_at = $3
		WHERE id = $1
		  AND last_scan_at IS NOT DISTINCT FROM $2
		  AND (scan_claimed_at IS NULL OR scan_claimed_at <= $4)
	`, websiteID, expected, now, now.Add(-claimWindow))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ReleaseScan(ctx context.Context, websiteID string, claimedAt time.Time, previous *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE websites
		SET last_scan_at = $3, scan_claimed_at = NULL
		WHERE id = $1 AND scan_claimed_at = $2
	`, websiteID, claimedAt, previous)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) AppendSnapshot(ctx context.Context, snapshot models.ComplianceSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO compliance_snapshots (id, website_id, score, created_at)
		VALUES ($1, $2, $3, $4)
	`, snapshot.ID, snapshot.WebsiteID, snapshot.Score, snapshot.CreatedAt)
	return err
}

func (s *PostgresStore) LatestSnapshotBefore(ctx context.Context, websiteID string, before time.Time) (*models.ComplianceSnapshot, error) {
	var snap models.ComplianceSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, website_id, score, created_at
		FROM compliance_snapshots
		WHERE website_id = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT 1
	`, websiteID, before).Scan(&snap.ID, &snap.WebsiteID, &snap.Score, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, websiteID string, from, to time.Time) ([]models.ComplianceSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, website_id, score, created_at
		FROM compliance_snapshots
		WHERE website_id = $1 AND created_at > $2 AND created_at <= $3
		ORDER BY created_at
	`, websiteID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ComplianceSnapshot
	for rows.Next() {
		var snap models.ComplianceSnapshot
		if err := rows.Scan(&snap.ID, &snap.WebsiteID, &snap.Score, &snap.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LastAlertAt(ctx context.Context, websiteID string, category models.AlertCategory) (*time.Time, error) {
	var last time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT last_alert_at FROM alert_cooldowns WHERE website_id = $1 AND category = $2
	`, websiteID, string(category)).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &last, nil
}

func (s *PostgresStore) RecordAlert(ctx context.Context, record models.AlertRecord, expected *time.Time) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO alerts (id, website_id, snapshot_id, category, previous_score, current_score,
		                    delta, severity, created_at, suppressed, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (website_id, snapshot_id) DO NOTHING
	`, record.ID, record.WebsiteID, record.SnapshotID, string(record.Category), record.PreviousScore,
		record.CurrentScore, record.Delta, string(record.Severity), record.CreatedAt, record.Suppressed, record.Acknowledged)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}

	if !record.Suppressed {
		if expected == nil {
			tag, err = tx.Exec(ctx, `
				INSERT INTO alert_cooldowns (website_id, category, last_alert_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (website_id, category) DO NOTHING
			`, record.WebsiteID, string(record.Category), record.CreatedAt)
		} else {
			tag, err = tx.Exec(ctx, `
				UPDATE alert_cooldowns SET last_alert_at = $3
				WHERE website_id = $1 AND category = $2 AND last_alert_at = $4
			`, record.WebsiteID, string(record.Category), record.CreatedAt, *expected)
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListAlerts(ctx context.Context, websiteID string, from, to time.Time) ([]models.AlertRecord, error) {
	var lower *time.Time
	if !from.IsZero() {
		lower = &from
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, website_id, snapshot_id, category, previous_score, current_score, delta,
		       severity, created_at, suppressed, acknowledged
		FROM alerts
		WHERE website_id = $1
		  AND ($2::timestamptz IS NULL OR created_at > $2)
		  AND created_at <= $3
		ORDER BY created_at
	`, websiteID, lower, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AlertRecord
	for rows.Next() {
		var a models.AlertRecord
		var category, severity string
		if err := rows.Scan(&a.ID, &a.WebsiteID, &a.SnapshotID, &category, &a.PreviousScore, &a.CurrentScore,
			&a.Delta, &severity, &a.CreatedAt, &a.Suppressed, &a.Acknowledged); err != nil {
			return nil, err
		}
		a.Category = models.AlertCategory(category)
		a.Severity = models.Severity(severity)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, alertID string) (string, error) {
	var websiteID string
	err := s.pool.QueryRow(ctx, `UPDATE alerts SET acknowledged = TRUE WHERE id = $1 RETURNING website_id`, alertID).Scan(&websiteID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return websiteID, err
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, email, plan FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		var plan string
		if err := rows.Scan(&u.ID, &u.Email, &plan); err != nil {
			return nil, err
		}
		u.Plan = models.PlanTier(plan)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	var plan string
	err := s.pool.QueryRow(ctx, `SELECT id, email, plan FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Email, &plan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Plan = models.PlanTier(plan)
	return &u, nil
}

func (s *PostgresStore) ClaimDigest(ctx context.Context, userID string, windowStart time.Time, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO digest_runs (user_id, window_start, status, claimed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, window_start) DO NOTHING
	`, userID, windowStart, string(models.DigestProcessing), now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CompleteDigest(ctx context.Context, userID string, windowStart time.Time, status models.DigestStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE digest_runs SET status = $3 WHERE user_id = $1 AND window_start = $2
	`, userID, windowStart, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ReleaseDigest(ctx context.Context, userID string, windowStart time.Time) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM digest_runs WHERE user_id = $1 AND window_start = $2 AND status = $3
	`, userID, windowStart, string(models.DigestProcessing))
	return err
}
