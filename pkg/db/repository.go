package db

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository provides database operations for provisioning attempts
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new attempt record
func (r *Repository) Create(attempt *Attempt) error {
	slog.Info("database_create_attempt", "subscriber", attempt.SubscriberNumber, "status", attempt.Status)

	query := `
		INSERT INTO attempts (subscriber_number, transaction_id, gateway_url, status, failure_kind, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query,
		attempt.SubscriberNumber, attempt.TransactionID, attempt.GatewayURL,
		attempt.Status, attempt.FailureKind, attempt.ErrorMessage)
	if err != nil {
		slog.Error("database_insert_failed", "subscriber", attempt.SubscriberNumber, "error", err)
		return errors.Wrap(err, "failed to insert attempt")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get last insert id")
	}
	attempt.ID = id

	slog.Info("database_attempt_created", "attempt_id", attempt.ID, "subscriber", attempt.SubscriberNumber)
	return nil
}

// Get retrieves an attempt by id
func (r *Repository) Get(id int64) (*Attempt, error) {
	query := `
		SELECT id, subscriber_number, transaction_id, gateway_url, status,
		       failure_kind, error_message, created_at, updated_at
		FROM attempts WHERE id = ?
	`
	var attempt Attempt
	var transactionID, gatewayURL, failureKind, errorMessage sql.NullString

	err := r.db.QueryRow(query, id).Scan(
		&attempt.ID, &attempt.SubscriberNumber, &transactionID, &gatewayURL,
		&attempt.Status, &failureKind, &errorMessage,
		&attempt.CreatedAt, &attempt.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		slog.Error("database_query_failed", "attempt_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query attempt")
	}

	attempt.TransactionID = transactionID.String
	attempt.GatewayURL = gatewayURL.String
	attempt.FailureKind = failureKind.String
	attempt.ErrorMessage = errorMessage.String

	return &attempt, nil
}

// Update updates an existing attempt record
func (r *Repository) Update(attempt *Attempt) error {
	slog.Info("database_update_attempt", "attempt_id", attempt.ID, "status", attempt.Status)

	query := `
		UPDATE attempts
		SET transaction_id = ?, gateway_url = ?, status = ?,
		    failure_kind = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		attempt.TransactionID, attempt.GatewayURL, attempt.Status,
		attempt.FailureKind, attempt.ErrorMessage, attempt.ID)
	if err != nil {
		slog.Error("database_update_failed", "attempt_id", attempt.ID, "error", err)
		return errors.Wrap(err, "failed to update attempt")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_attempt_not_found_for_update", "attempt_id", attempt.ID)
		return fmt.Errorf("attempt not found: id=%d", attempt.ID)
	}

	return nil
}

// UpdateStatus updates only the terminal-state fields
func (r *Repository) UpdateStatus(id int64, status, failureKind, errorMessage string) error {
	slog.Info("database_update_status", "attempt_id", id, "status", status)

	query := `UPDATE attempts SET status = ?, failure_kind = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.Exec(query, status, failureKind, errorMessage, id)
	if err != nil {
		slog.Error("database_status_update_failed", "attempt_id", id, "status", status, "error", err)
		return errors.Wrap(err, "failed to update status")
	}

	return nil
}

// List retrieves all attempts, newest first
func (r *Repository) List() ([]*Attempt, error) {
	query := `
		SELECT id, subscriber_number, transaction_id, gateway_url, status,
		       failure_kind, error_message, created_at, updated_at
		FROM attempts ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list attempts")
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		var attempt Attempt
		var transactionID, gatewayURL, failureKind, errorMessage sql.NullString

		err := rows.Scan(
			&attempt.ID, &attempt.SubscriberNumber, &transactionID, &gatewayURL,
			&attempt.Status, &failureKind, &errorMessage,
			&attempt.CreatedAt, &attempt.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		attempt.TransactionID = transactionID.String
		attempt.GatewayURL = gatewayURL.String
		attempt.FailureKind = failureKind.String
		attempt.ErrorMessage = errorMessage.String

		attempts = append(attempts, &attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Info("database_list_complete", "attempt_count", len(attempts))
	return attempts, nil
}

// DeleteTerminal deletes all attempts in a terminal state and returns how
// many were removed
func (r *Repository) DeleteTerminal() (int64, error) {
	query := `DELETE FROM attempts WHERE status IN (?, ?, ?)`
	result, err := r.db.Exec(query, StatusReady, StatusNew, StatusFailed)
	if err != nil {
		slog.Error("database_delete_terminal_failed", "error", err)
		return 0, errors.Wrap(err, "failed to delete terminal attempts")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	slog.Info("database_terminal_attempts_deleted", "count", rows)
	return rows, nil
}
