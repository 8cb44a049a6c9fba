package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emailpilot/emailpilot/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) GetDefaultUser(ctx context.Context) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users WHERE name = 'default' LIMIT 1`,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default user: %w", err)
	}
	return &u, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Clients ---

func (s *PostgresStore) UpsertClient(ctx context.Context, client *models.Client) (*models.Client, error) {
	var result models.Client
	err := s.pool.QueryRow(ctx,
		`INSERT INTO clients (id, user_id, name, industry, brand_voice, klaviyo_account_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, name) DO UPDATE SET
		   industry = EXCLUDED.industry,
		   brand_voice = EXCLUDED.brand_voice,
		   klaviyo_account_id = EXCLUDED.klaviyo_account_id,
		   updated_at = NOW()
		 RETURNING id, user_id, name, industry, brand_voice, klaviyo_account_id, created_at, updated_at`,
		client.ID, client.UserID, client.Name, client.Industry, client.BrandVoice,
		client.KlaviyoAccountID, client.CreatedAt, client.UpdatedAt,
	).Scan(&result.ID, &result.UserID, &result.Name, &result.Industry, &result.BrandVoice,
		&result.KlaviyoAccountID, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert client: %w", err)
	}
	return &result, nil
}

func (s *PostgresStore) GetClientByName(ctx context.Context, userID uuid.UUID, name string) (*models.Client, error) {
	var c models.Client
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, industry, brand_voice, klaviyo_account_id, created_at, updated_at
		 FROM clients WHERE user_id = $1 AND name = $2`, userID, name,
	).Scan(&c.ID, &c.UserID, &c.Name, &c.Industry, &c.BrandVoice,
		&c.KlaviyoAccountID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client by name: %w", err)
	}
	return &c, nil
}

// --- Goal Sets ---

func (s *PostgresStore) CreateGoalSet(ctx context.Context, gs *models.GoalSet) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO goal_sets (id, user_id, job_id, client_name, start_date, end_date, goals, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		gs.ID, gs.UserID, gs.JobID, gs.ClientName, gs.StartDate, gs.EndDate, gs.Goals, gs.CreatedAt)
	if err != nil {
		return fmt.Errorf("create goal set: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListGoalSets(ctx context.Context, userID uuid.UUID, clientName string, limit int) ([]*models.GoalSet, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, job_id, client_name, start_date, end_date, goals, created_at
		 FROM goal_sets WHERE user_id = $1 AND client_name = $2
		 ORDER BY created_at DESC LIMIT $3`, userID, clientName, limit)
	if err != nil {
		return nil, fmt.Errorf("list goal sets: %w", err)
	}
	defer rows.Close()

	var sets []*models.GoalSet
	for rows.Next() {
		var gs models.GoalSet
		if err := rows.Scan(&gs.ID, &gs.UserID, &gs.JobID, &gs.ClientName,
			&gs.StartDate, &gs.EndDate, &gs.Goals, &gs.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan goal set: %w", err)
		}
		sets = append(sets, &gs)
	}
	return sets, rows.Err()
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, user_id, type, status, current_stage, client_name, start_date, end_date, prompt_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.UserID, job.Type, job.Status, job.CurrentStage,
		job.ClientName, job.StartDate, job.EndDate, job.PromptName, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, type, status, current_stage, client_name, start_date, end_date, prompt_name, results, error, created_at, updated_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.UserID, &j.Type, &j.Status, &j.CurrentStage, &j.ClientName,
		&j.StartDate, &j.EndDate, &j.PromptName, &j.Results, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// UpdateJobStatus merges the new status and any option-supplied fields into
// the job row. Transition validity is enforced by the jobs tracker, not here;
// the store is a dumb last-write-wins merge under the single-writer model.
func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, opts ...JobUpdateOption) error {
	params := &JobUpdate{}
	for _, opt := range opts {
		opt(params)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status.Terminal() {
		query += ", current_stage = NULL"
	} else if params.Stage != nil {
		query += fmt.Sprintf(", current_stage = $%d", argIdx)
		args = append(args, *params.Stage)
		argIdx++
	}
	if params.Results != nil {
		query += fmt.Sprintf(", results = $%d", argIdx)
		args = append(args, params.Results)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}

	query += " WHERE id = $1"

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
