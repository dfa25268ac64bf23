package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/autodeploy/internal/core/deployment"
	"github.com/artpar/autodeploy/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrUnavailable)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrUnavailable)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigration)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutCredential(ctx context.Context, cred *Credential) error {
	return putCredential(ctx, s.db, cred)
}

func (s *SQLiteStore) GetCredential(ctx context.Context, provider domain.Provider) (*Credential, error) {
	return getCredential(ctx, s.db, provider)
}

func (s *SQLiteStore) ListCredentials(ctx context.Context) ([]Credential, error) {
	return listCredentials(ctx, s.db)
}

func (s *SQLiteStore) DeleteCredential(ctx context.Context, provider domain.Provider) error {
	return deleteCredential(ctx, s.db, provider)
}

func (s *SQLiteStore) DeleteAllCredentials(ctx context.Context) (int, error) {
	return deleteAllCredentials(ctx, s.db)
}

func (s *SQLiteStore) CreateDeployment(ctx context.Context, d *deployment.Deployment) error {
	return createDeployment(ctx, s.db, d)
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*deployment.Deployment, error) {
	return getDeployment(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateDeployment(ctx context.Context, d *deployment.Deployment) error {
	return updateDeployment(ctx, s.db, d)
}

func (s *SQLiteStore) ListDeployments(ctx context.Context, opts ListOptions) ([]deployment.Deployment, error) {
	return listDeployments(ctx, s.db, "", opts)
}

func (s *SQLiteStore) ListDeploymentsByStatus(ctx context.Context, status deployment.Status, opts ListOptions) ([]deployment.Deployment, error) {
	return listDeployments(ctx, s.db, status, opts)
}

func (s *SQLiteStore) ClaimDeployment(ctx context.Context, id, workerID string) (bool, error) {
	return claimDeployment(ctx, s.db, id, workerID)
}

func (s *SQLiteStore) SavePlan(ctx context.Context, id string, planJSON []byte) error {
	return savePlan(ctx, s.db, id, planJSON)
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) ([]byte, error) {
	return getPlan(ctx, s.db, id)
}

func (s *SQLiteStore) AppendLog(ctx context.Context, deploymentID, step, line string) error {
	return appendLog(ctx, s.db, deploymentID, step, line)
}

func (s *SQLiteStore) ListLogs(ctx context.Context, deploymentID string, afterSeq int64, limit int) ([]LogLine, error) {
	return listLogs(ctx, s.db, deploymentID, afterSeq, limit)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTx)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return wrapf("WithTx", "", "", ErrTx, "rollback failed: %v (after %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTx)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) PutCredential(ctx context.Context, cred *Credential) error {
	return putCredential(ctx, s.tx, cred)
}

func (s *txSQLiteStore) GetCredential(ctx context.Context, provider domain.Provider) (*Credential, error) {
	return getCredential(ctx, s.tx, provider)
}

func (s *txSQLiteStore) ListCredentials(ctx context.Context) ([]Credential, error) {
	return listCredentials(ctx, s.tx)
}

func (s *txSQLiteStore) DeleteCredential(ctx context.Context, provider domain.Provider) error {
	return deleteCredential(ctx, s.tx, provider)
}

func (s *txSQLiteStore) DeleteAllCredentials(ctx context.Context) (int, error) {
	return deleteAllCredentials(ctx, s.tx)
}

func (s *txSQLiteStore) CreateDeployment(ctx context.Context, d *deployment.Deployment) error {
	return createDeployment(ctx, s.tx, d)
}

func (s *txSQLiteStore) GetDeployment(ctx context.Context, id string) (*deployment.Deployment, error) {
	return getDeployment(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateDeployment(ctx context.Context, d *deployment.Deployment) error {
	return updateDeployment(ctx, s.tx, d)
}

func (s *txSQLiteStore) ListDeployments(ctx context.Context, opts ListOptions) ([]deployment.Deployment, error) {
	return listDeployments(ctx, s.tx, "", opts)
}

func (s *txSQLiteStore) ListDeploymentsByStatus(ctx context.Context, status deployment.Status, opts ListOptions) ([]deployment.Deployment, error) {
	return listDeployments(ctx, s.tx, status, opts)
}

func (s *txSQLiteStore) ClaimDeployment(ctx context.Context, id, workerID string) (bool, error) {
	return claimDeployment(ctx, s.tx, id, workerID)
}

func (s *txSQLiteStore) SavePlan(ctx context.Context, id string, planJSON []byte) error {
	return savePlan(ctx, s.tx, id, planJSON)
}

func (s *txSQLiteStore) GetPlan(ctx context.Context, id string) ([]byte, error) {
	return getPlan(ctx, s.tx, id)
}

func (s *txSQLiteStore) AppendLog(ctx context.Context, deploymentID, step, line string) error {
	return appendLog(ctx, s.tx, deploymentID, step, line)
}

func (s *txSQLiteStore) ListLogs(ctx context.Context, deploymentID string, afterSeq int64, limit int) ([]LogLine, error) {
	return listLogs(ctx, s.tx, deploymentID, afterSeq, limit)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just execute the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// Transaction stores don't own the connection
	return nil
}

// =============================================================================
// Credential Operations
// =============================================================================

// credentialRow represents a credential row in the database.
type credentialRow struct {
	Provider   string `db:"provider"`
	Ciphertext string `db:"ciphertext"`
	Hint       string `db:"hint"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

func putCredential(ctx context.Context, exec executor, cred *Credential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	query := `
		INSERT INTO credentials (provider, ciphertext, hint, created_at, updated_at)
		VALUES (:provider, :ciphertext, :hint, :created_at, :updated_at)
		ON CONFLICT(provider) DO UPDATE SET
			ciphertext = excluded.ciphertext,
			hint = excluded.hint,
			updated_at = excluded.updated_at`

	row := credentialRow{
		Provider:   string(cred.Provider),
		Ciphertext: cred.Ciphertext,
		Hint:       cred.Hint,
		CreatedAt:  cred.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  cred.UpdatedAt.Format(time.RFC3339),
	}
	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		return NewStoreError("PutCredential", "credential", string(cred.Provider), err.Error(), err)
	}
	return nil
}

func getCredential(ctx context.Context, exec executor, provider domain.Provider) (*Credential, error) {
	var row credentialRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM credentials WHERE provider = ?`, string(provider))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetCredential", "credential", string(provider), "credential not found", ErrNotFound)
		}
		return nil, NewStoreError("GetCredential", "credential", string(provider), err.Error(), err)
	}
	return rowToCredential(&row), nil
}

func listCredentials(ctx context.Context, exec executor) ([]Credential, error) {
	var rows []credentialRow
	if err := exec.SelectContext(ctx, &rows, `SELECT * FROM credentials ORDER BY provider`); err != nil {
		return nil, NewStoreError("ListCredentials", "credential", "", err.Error(), err)
	}
	creds := make([]Credential, 0, len(rows))
	for i := range rows {
		creds = append(creds, *rowToCredential(&rows[i]))
	}
	return creds, nil
}

func deleteCredential(ctx context.Context, exec executor, provider domain.Provider) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM credentials WHERE provider = ?`, string(provider))
	if err != nil {
		return NewStoreError("DeleteCredential", "credential", string(provider), err.Error(), err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteCredential", "credential", string(provider), "credential not found", ErrNotFound)
	}
	return nil
}

func deleteAllCredentials(ctx context.Context, exec executor) (int, error) {
	result, err := exec.ExecContext(ctx, `DELETE FROM credentials`)
	if err != nil {
		return 0, NewStoreError("DeleteAllCredentials", "credential", "", err.Error(), err)
	}
	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

func rowToCredential(row *credentialRow) *Credential {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)
	return &Credential{
		Provider:   domain.Provider(row.Provider),
		Ciphertext: row.Ciphertext,
		Hint:       row.Hint,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}

// =============================================================================
// Deployment Operations
// =============================================================================

// deploymentRow represents a deployment row in the database.
type deploymentRow struct {
	ID            string  `db:"id"`
	Description   string  `db:"description"`
	RepositoryURL string  `db:"repository_url"`
	Provider      string  `db:"provider"`
	Topology      string  `db:"topology"`
	Region        string  `db:"region"`
	InstanceType  string  `db:"instance_type"`
	EstimatedCost float64 `db:"estimated_cost"`
	Dir           string  `db:"dir"`
	Digest        string  `db:"digest"`
	DryRun        bool    `db:"dry_run"`
	Status        string  `db:"status"`
	AppURL        string  `db:"app_url"`
	ArchiveURL    string  `db:"archive_url"`
	ErrorMessage  string  `db:"error_message"`
	Outputs       *string `db:"outputs"`
	Variables     *string `db:"variables"`
	ClaimedBy     string  `db:"claimed_by"`
	CreatedAt     string  `db:"created_at"`
	UpdatedAt     string  `db:"updated_at"`
}

// deploymentColumns excludes plan_json, which is read separately.
const deploymentColumns = `id, description, repository_url, provider, topology, region,
	instance_type, estimated_cost, dir, digest, dry_run, status, app_url,
	archive_url, error_message, outputs, variables, claimed_by, created_at, updated_at`

func deploymentToRow(d *deployment.Deployment) (map[string]any, error) {
	outputs, err := jsonColumn(d.Outputs)
	if err != nil {
		return nil, err
	}
	variables, err := jsonColumn(d.Values)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":             d.ID,
		"description":    d.Description,
		"repository_url": d.RepositoryURL,
		"provider":       string(d.Provider),
		"topology":       string(d.Topology),
		"region":         d.Region,
		"instance_type":  d.InstanceType,
		"estimated_cost": d.EstimatedCost,
		"dir":            d.Dir,
		"digest":         d.Digest,
		"dry_run":        d.DryRun,
		"status":         string(d.Status),
		"app_url":        d.AppURL,
		"archive_url":    d.ArchiveURL,
		"error_message":  d.ErrorMessage,
		"outputs":        outputs,
		"variables":      variables,
		"created_at":     d.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":     d.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// jsonColumn encodes a string map as a nullable JSON column.
func jsonColumn(m map[string]string) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func parseJSONColumn(col *string) (map[string]string, error) {
	if col == nil || *col == "" || *col == "null" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(*col), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func createDeployment(ctx context.Context, exec executor, d *deployment.Deployment) error {
	row, err := deploymentToRow(d)
	if err != nil {
		return NewStoreError("CreateDeployment", "deployment", d.ID, "failed to serialize outputs or variables", ErrCorrupt)
	}

	query := `
		INSERT INTO deployments (
			id, description, repository_url, provider, topology, region,
			instance_type, estimated_cost, dir, digest, dry_run, status,
			app_url, archive_url, error_message, outputs, variables, created_at, updated_at
		) VALUES (
			:id, :description, :repository_url, :provider, :topology, :region,
			:instance_type, :estimated_cost, :dir, :digest, :dry_run, :status,
			:app_url, :archive_url, :error_message, :outputs, :variables, :created_at, :updated_at
		)`

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deployments.id") {
			return NewStoreError("CreateDeployment", "deployment", d.ID, "deployment with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateDeployment", "deployment", d.ID, err.Error(), err)
	}
	return nil
}

func getDeployment(ctx context.Context, exec executor, id string) (*deployment.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = ?`

	var row deploymentRow
	if err := exec.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDeployment", "deployment", id, "deployment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDeployment", "deployment", id, err.Error(), err)
	}
	return rowToDeployment(&row)
}

func updateDeployment(ctx context.Context, exec executor, d *deployment.Deployment) error {
	row, err := deploymentToRow(d)
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", d.ID, "failed to serialize outputs or variables", ErrCorrupt)
	}

	query := `
		UPDATE deployments SET
			repository_url = :repository_url, provider = :provider, topology = :topology, region = :region,
			instance_type = :instance_type, estimated_cost = :estimated_cost,
			dir = :dir, digest = :digest, status = :status, app_url = :app_url,
			archive_url = :archive_url, error_message = :error_message,
			outputs = :outputs, variables = :variables, updated_at = :updated_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", d.ID, err.Error(), err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateDeployment", "deployment", d.ID, "deployment not found", ErrNotFound)
	}
	return nil
}

func listDeployments(ctx context.Context, exec executor, status deployment.Status, opts ListOptions) ([]deployment.Deployment, error) {
	opts = opts.Normalize()

	var rows []deploymentRow
	var err error
	if status == "" {
		query := `SELECT ` + deploymentColumns + ` FROM deployments ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
		err = exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	} else {
		// Oldest first so queued work runs in arrival order.
		query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE status = ? ORDER BY created_at, id LIMIT ? OFFSET ?`
		err = exec.SelectContext(ctx, &rows, query, string(status), opts.Limit, opts.Offset)
	}
	if err != nil {
		return nil, NewStoreError("ListDeployments", "deployment", "", err.Error(), err)
	}

	deployments := make([]deployment.Deployment, 0, len(rows))
	for i := range rows {
		d, err := rowToDeployment(&rows[i])
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, nil
}

func claimDeployment(ctx context.Context, exec executor, id, workerID string) (bool, error) {
	query := `UPDATE deployments SET claimed_by = ? WHERE id = ? AND status = ? AND claimed_by = ''`
	result, err := exec.ExecContext(ctx, query, workerID, id, string(deployment.StatusPending))
	if err != nil {
		return false, NewStoreError("ClaimDeployment", "deployment", id, err.Error(), err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func savePlan(ctx context.Context, exec executor, id string, planJSON []byte) error {
	result, err := exec.ExecContext(ctx, `UPDATE deployments SET plan_json = ? WHERE id = ?`, string(planJSON), id)
	if err != nil {
		return NewStoreError("SavePlan", "deployment", id, err.Error(), err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("SavePlan", "deployment", id, "deployment not found", ErrNotFound)
	}
	return nil
}

func getPlan(ctx context.Context, exec executor, id string) ([]byte, error) {
	var plan *string
	if err := exec.GetContext(ctx, &plan, `SELECT plan_json FROM deployments WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetPlan", "deployment", id, "deployment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetPlan", "deployment", id, err.Error(), err)
	}
	if plan == nil {
		return nil, NewStoreError("GetPlan", "deployment", id, "deployment has no plan", ErrNotFound)
	}
	return []byte(*plan), nil
}

func rowToDeployment(row *deploymentRow) (*deployment.Deployment, error) {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	outputs, err := parseJSONColumn(row.Outputs)
	if err != nil {
		return nil, NewStoreError("rowToDeployment", "deployment", row.ID, "failed to parse outputs", ErrCorrupt)
	}
	values, err := parseJSONColumn(row.Variables)
	if err != nil {
		return nil, NewStoreError("rowToDeployment", "deployment", row.ID, "failed to parse variables", ErrCorrupt)
	}

	return &deployment.Deployment{
		ID:            row.ID,
		Description:   row.Description,
		RepositoryURL: row.RepositoryURL,
		Provider:      domain.Provider(row.Provider),
		Topology:      domain.Topology(row.Topology),
		Region:        row.Region,
		InstanceType:  row.InstanceType,
		EstimatedCost: row.EstimatedCost,
		Dir:           row.Dir,
		Digest:        row.Digest,
		DryRun:        row.DryRun,
		Status:        deployment.Status(row.Status),
		AppURL:        row.AppURL,
		ArchiveURL:    row.ArchiveURL,
		ErrorMessage:  row.ErrorMessage,
		Outputs:       outputs,
		Values:        values,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

// =============================================================================
// Log Operations
// =============================================================================

// logRow represents a deployment log row in the database.
type logRow struct {
	Seq          int64  `db:"seq"`
	DeploymentID string `db:"deployment_id"`
	Step         string `db:"step"`
	Line         string `db:"line"`
	CreatedAt    string `db:"created_at"`
}

func appendLog(ctx context.Context, exec executor, deploymentID, step, line string) error {
	query := `INSERT INTO deployment_logs (deployment_id, step, line, created_at) VALUES (?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, query, deploymentID, step, line, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("AppendLog", "deployment_log", deploymentID, "deployment not found", ErrUnknownDeployment)
		}
		return NewStoreError("AppendLog", "deployment_log", deploymentID, err.Error(), err)
	}
	return nil
}

func listLogs(ctx context.Context, exec executor, deploymentID string, afterSeq int64, limit int) ([]LogLine, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT * FROM deployment_logs WHERE deployment_id = ? AND seq > ? ORDER BY seq LIMIT ?`

	var rows []logRow
	if err := exec.SelectContext(ctx, &rows, query, deploymentID, afterSeq, limit); err != nil {
		return nil, NewStoreError("ListLogs", "deployment_log", deploymentID, err.Error(), err)
	}
	lines := make([]LogLine, 0, len(rows))
	for _, row := range rows {
		createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
		lines = append(lines, LogLine{
			Seq:          row.Seq,
			DeploymentID: row.DeploymentID,
			Step:         row.Step,
			Line:         row.Line,
			CreatedAt:    createdAt,
		})
	}
	return lines, nil
}
