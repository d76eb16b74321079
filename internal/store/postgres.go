package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

const jobColumns = `id, filename, total_profiles, processed_profiles, successful_profiles, failed_profiles,
	status, error_message, started_at, completed_at, created_at, updated_at`

const queueColumns = `id, job_id, linkedin_url, name, status, priority, attempts, max_attempts,
	error_message, scheduled_at, started_at, completed_at, scraped_data`

const profileColumns = `id, linkedin_url, name, current_title, current_company, industry, location, about,
	profile_picture_url, ai_summary, skills, experience, education, scraped_at, last_updated, scraping_job_id`

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

// --- Jobs ---

// CreateJobWithItems inserts the job and all of its queue items in one transaction.
// Either everything is written or nothing is.
func (s *PostgresStore) CreateJobWithItems(ctx context.Context, job *models.ScrapingJob, items []*models.QueueItem) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO scraping_jobs (id, filename, total_profiles, processed_profiles, successful_profiles,
			   failed_profiles, status, created_at, updated_at)
			 VALUES ($1, $2, $3, 0, 0, 0, $4, $5, $6)`,
			job.ID, job.Filename, job.TotalProfiles, job.Status, job.CreatedAt, job.UpdatedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("create job: %w", err)
		}

		rows := make([][]any, 0, len(items))
		for _, it := range items {
			rows = append(rows, []any{
				it.ID, it.JobID, it.LinkedInURL, it.Name, it.Status, it.Priority,
				it.Attempts, it.MaxAttempts, it.ScheduledAt,
			})
		}
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"scraping_queue"},
			[]string{"id", "job_id", "linkedin_url", "name", "status", "priority", "attempts", "max_attempts", "scheduled_at"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("create queue items: %w", err)
		}
		if int(n) != len(items) {
			return fmt.Errorf("create queue items: wrote %d of %d rows", n, len(items))
		}
		return nil
	})
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ScrapingJob, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM scraping_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.ScrapingJob, int, error) {
	where := "TRUE"
	args := []any{}
	if len(filter.Statuses) > 0 {
		where = "status = ANY($1)"
		args = append(args, filter.Statuses)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM scraping_jobs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	page, limit := NormalizePage(filter.Page, filter.Limit)
	argIdx := len(args) + 1
	query := fmt.Sprintf(`SELECT `+jobColumns+` FROM scraping_jobs WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.ScrapingJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

var validTransitions = map[string][]string{
	models.StatusPending:    {models.StatusProcessing, models.StatusFailed},
	models.StatusProcessing: {models.StatusCompleted, models.StatusFailed},
}

// UpdateJobStatus moves a job to status and returns the updated row.
// started_at and completed_at are only ever set once.
func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) (*models.ScrapingJob, error) {
	params := ApplyJobUpdateOptions(opts...)

	var updated *models.ScrapingJob
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var currentStatus string
		err := tx.QueryRow(ctx, `SELECT status FROM scraping_jobs WHERE id = $1 FOR UPDATE`, id).Scan(&currentStatus)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get job status: %w", err)
		}

		if !transitionAllowed(currentStatus, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
		}

		now := time.Now().UTC()
		query := `UPDATE scraping_jobs SET status = $2, updated_at = $3`
		args := []any{id, status, now}

		if status == models.StatusProcessing {
			query += ", started_at = COALESCE(started_at, $3)"
		}
		if models.IsTerminalStatus(status) {
			query += ", completed_at = COALESCE(completed_at, $3)"
		}
		if params.ErrorMessage != nil {
			query += ", error_message = $4"
			args = append(args, *params.ErrorMessage)
		}
		query += " WHERE id = $1 RETURNING " + jobColumns

		updated, err = scanJob(tx.QueryRow(ctx, query, args...))
		if err != nil {
			return fmt.Errorf("update job status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func transitionAllowed(from, to string) bool {
	for _, a := range validTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

// --- Queue ---

func (s *PostgresStore) ListPendingItems(ctx context.Context, jobID uuid.UUID) ([]*models.QueueItem, error) {
	return s.ListQueueItems(ctx, jobID, models.StatusPending)
}

func (s *PostgresStore) CountPendingItems(ctx context.Context, jobID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scraping_queue WHERE job_id = $1 AND status = $2`,
		jobID, models.StatusPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending items: %w", err)
	}
	return n, nil
}

// ListQueueItems returns a job's queue items in priority order. An empty status matches all.
func (s *PostgresStore) ListQueueItems(ctx context.Context, jobID uuid.UUID, status string) ([]*models.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM scraping_queue WHERE job_id = $1`
	args := []any{jobID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY priority ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	items := []*models.QueueItem{}
	for rows.Next() {
		var q models.QueueItem
		var scraped []byte
		if err := rows.Scan(&q.ID, &q.JobID, &q.LinkedInURL, &q.Name, &q.Status, &q.Priority,
			&q.Attempts, &q.MaxAttempts, &q.ErrorMessage, &q.ScheduledAt, &q.StartedAt,
			&q.CompletedAt, &scraped); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		if len(scraped) > 0 {
			q.ScrapedData = json.RawMessage(scraped)
		}
		items = append(items, &q)
	}
	return items, rows.Err()
}

// MarkItemProcessing claims a pending item and counts the attempt.
func (s *PostgresStore) MarkItemProcessing(ctx context.Context, itemID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scraping_queue SET status = $2, started_at = NOW(), attempts = attempts + 1
		 WHERE id = $1 AND status = $3`,
		itemID, models.StatusProcessing, models.StatusPending)
	if err != nil {
		return fmt.Errorf("mark item processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %s is not pending", ErrInvalidTransition, itemID)
	}
	return nil
}

// RequeueProcessingItems puts items left in processing by an interrupted run
// back to pending. Only safe while no loop is running for the job.
func (s *PostgresStore) RequeueProcessingItems(ctx context.Context, jobID uuid.UUID) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scraping_queue SET status = $2, started_at = NULL
		 WHERE job_id = $1 AND status = $3`,
		jobID, models.StatusPending, models.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("requeue processing items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CompleteItem records a successful scrape: the profile is upserted by URL, the
// item is marked completed and the job counters are incremented, all in one transaction.
func (s *PostgresStore) CompleteItem(ctx context.Context, item *models.QueueItem, fields models.ProfileFields) (*models.Profile, *models.ScrapingJob, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("encode scraped data: %w", err)
	}

	var profile *models.Profile
	var job *models.ScrapingJob
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE scraping_queue SET status = $2, completed_at = NOW(), scraped_data = $3, error_message = NULL
			 WHERE id = $1 AND status = $4`,
			item.ID, models.StatusCompleted, raw, models.StatusProcessing)
		if err != nil {
			return fmt.Errorf("complete queue item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: item %s is not processing", ErrInvalidTransition, item.ID)
		}

		profile, err = upsertProfile(ctx, tx, item, fields, raw)
		if err != nil {
			return err
		}

		job, err = scanJob(tx.QueryRow(ctx,
			`UPDATE scraping_jobs SET processed_profiles = processed_profiles + 1,
			   successful_profiles = successful_profiles + 1, updated_at = NOW()
			 WHERE id = $1 RETURNING `+jobColumns, item.JobID))
		if err != nil {
			return fmt.Errorf("increment job counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return profile, job, nil
}

// FailItem records a failed scrape and increments the job's failure counters.
func (s *PostgresStore) FailItem(ctx context.Context, item *models.QueueItem, errMsg string) (*models.ScrapingJob, error) {
	var job *models.ScrapingJob
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE scraping_queue SET status = $2, completed_at = NOW(), error_message = $3
			 WHERE id = $1 AND status = $4`,
			item.ID, models.StatusFailed, errMsg, models.StatusProcessing)
		if err != nil {
			return fmt.Errorf("fail queue item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: item %s is not processing", ErrInvalidTransition, item.ID)
		}

		job, err = scanJob(tx.QueryRow(ctx,
			`UPDATE scraping_jobs SET processed_profiles = processed_profiles + 1,
			   failed_profiles = failed_profiles + 1, updated_at = NOW()
			 WHERE id = $1 RETURNING `+jobColumns, item.JobID))
		if err != nil {
			return fmt.Errorf("increment job counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// --- Profiles ---

func upsertProfile(ctx context.Context, tx pgx.Tx, item *models.QueueItem, f models.ProfileFields, raw []byte) (*models.Profile, error) {
	name := f.Name
	if name == "" {
		name = item.DisplayName()
	}
	var picture *string
	if f.ProfilePictureURL != "" {
		picture = &f.ProfilePictureURL
	}
	skills := f.Skills
	if skills == nil {
		skills = []string{}
	}
	experience := f.Experience
	if experience == nil {
		experience = []models.Experience{}
	}
	education := f.Education
	if education == nil {
		education = []models.Education{}
	}

	p, err := scanProfile(tx.QueryRow(ctx,
		`INSERT INTO alumni_profiles (id, linkedin_url, name, current_title, current_company, industry, location,
		   about, profile_picture_url, ai_summary, skills, experience, education, scraped_at, last_updated,
		   scraping_job_id, raw_data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW(), $14, $15)
		 ON CONFLICT (linkedin_url) DO UPDATE SET
		   name = EXCLUDED.name,
		   current_title = EXCLUDED.current_title,
		   current_company = EXCLUDED.current_company,
		   industry = EXCLUDED.industry,
		   location = EXCLUDED.location,
		   about = EXCLUDED.about,
		   profile_picture_url = EXCLUDED.profile_picture_url,
		   ai_summary = EXCLUDED.ai_summary,
		   skills = EXCLUDED.skills,
		   experience = EXCLUDED.experience,
		   education = EXCLUDED.education,
		   scraped_at = EXCLUDED.scraped_at,
		   last_updated = NOW(),
		   scraping_job_id = EXCLUDED.scraping_job_id,
		   raw_data = EXCLUDED.raw_data
		 RETURNING `+profileColumns,
		uuid.New(), item.LinkedInURL, name, f.CurrentTitle, f.CurrentCompany, f.Industry, f.Location,
		f.About, picture, f.AISummary, skills, experience, education, item.JobID, raw))
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM alumni_profiles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context, filter ProfileFilter) ([]*models.Profile, int, error) {
	// Build WHERE clause dynamically
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if q := strings.TrimSpace(filter.Query); q != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(name ILIKE $%d OR current_company ILIKE $%d OR current_title ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(q)+"%")
		argIdx++
	}
	if filter.Industry != "" {
		conditions = append(conditions, fmt.Sprintf("industry ILIKE $%d", argIdx))
		args = append(args, escapeLike(filter.Industry))
		argIdx++
	}
	if filter.Location != "" {
		conditions = append(conditions, fmt.Sprintf("location ILIKE $%d", argIdx))
		args = append(args, "%"+escapeLike(filter.Location)+"%")
		argIdx++
	}
	if filter.Company != "" {
		conditions = append(conditions, fmt.Sprintf("current_company ILIKE $%d", argIdx))
		args = append(args, "%"+escapeLike(filter.Company)+"%")
		argIdx++
	}
	if filter.JobID != nil {
		conditions = append(conditions, fmt.Sprintf("scraping_job_id = $%d", argIdx))
		args = append(args, *filter.JobID)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM alumni_profiles WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	page, limit := NormalizePage(filter.Page, filter.Limit)
	dataQuery := fmt.Sprintf(
		`SELECT `+profileColumns+` FROM alumni_profiles WHERE %s ORDER BY scraped_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, total, rows.Err()
}

// --- scanning ---

func scanJob(row pgx.Row) (*models.ScrapingJob, error) {
	var j models.ScrapingJob
	err := row.Scan(&j.ID, &j.Filename, &j.TotalProfiles, &j.ProcessedProfiles, &j.SuccessfulProfiles,
		&j.FailedProfiles, &j.Status, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.LinkedInURL, &p.Name, &p.CurrentTitle, &p.CurrentCompany, &p.Industry,
		&p.Location, &p.About, &p.ProfilePictureURL, &p.AISummary, &p.Skills, &p.Experience, &p.Education,
		&p.ScrapedAt, &p.LastUpdated, &p.ScrapingJobID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
