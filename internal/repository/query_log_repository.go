package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"energy-insights/internal/models"
	"energy-insights/pkg/database"
	"energy-insights/pkg/logging"
	"energy-insights/pkg/metrics"
)

// QueryLogRepository stores the natural-language questions asked to the
// service and how each one was interpreted.
type QueryLogRepository interface {
	Record(ctx context.Context, entry *models.QueryLogEntry) error
	Get(ctx context.Context, id string) (*models.QueryLogEntry, error)
	List(ctx context.Context, filter QueryLogFilter) ([]*models.QueryLogEntry, int, error)
	HealthCheck(ctx context.Context) error
}

// QueryLogFilter defines filters for listing the query log
type QueryLogFilter struct {
	IntentKind *string
	Failed     *bool
	Since      *time.Time
	Limit      int
	Offset     int
}

// queryLogRepository implements QueryLogRepository on PostgreSQL
type queryLogRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewQueryLogRepository creates a new query log repository
func NewQueryLogRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) QueryLogRepository {
	return &queryLogRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const queryLogColumns = `id, message, intent_kind, threshold_pct, base_year, start_date, end_date,
		       result_count, failed, created_at`

// Record inserts entry, assigning an id and creation time when missing
func (r *queryLogRepository) Record(ctx context.Context, entry *models.QueryLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO query_log (
			id, message, intent_kind, threshold_pct, base_year, start_date, end_date,
			result_count, failed, created_at
		)
		VALUES (
			:id, :message, :intent_kind, :threshold_pct, :base_year, :start_date, :end_date,
			:result_count, :failed, :created_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, "insert_query_log", query, entry); err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_RECORD_QUERY] Query recorded", logging.Fields{
		"id":          entry.ID,
		"intent_kind": entry.IntentKind,
	})

	return nil
}

// Get retrieves one query log entry by id. Ids are UUIDs; anything else
// cannot name an entry and is reported as not found.
func (r *queryLogRepository) Get(ctx context.Context, id string) (*models.QueryLogEntry, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, &NotFoundError{
			Resource: "query_log",
			ID:       id,
		}
	}

	query := `
		SELECT ` + queryLogColumns + `
		FROM query_log
		WHERE id = $1
	`

	var entry models.QueryLogEntry
	err = r.db.GetContext(ctx, "get_query_log", &entry, query, parsed.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "query_log",
			ID:       id,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query: %w", err)
	}

	return &entry, nil
}

// List retrieves query log entries, newest first, with the total number of
// entries matching the filter.
func (r *queryLogRepository) List(ctx context.Context, filter QueryLogFilter) ([]*models.QueryLogEntry, int, error) {
	query, countQuery, args := buildListQuery(filter)

	var totalCount int
	if err := r.db.GetContext(ctx, "count_query_log", &totalCount, countQuery, args[:len(args)-2]...); err != nil {
		return nil, 0, fmt.Errorf("failed to count queries: %w", err)
	}

	var entries []*models.QueryLogEntry
	if err := r.db.SelectContext(ctx, "list_query_log", &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list queries: %w", err)
	}

	return entries, totalCount, nil
}

// buildListQuery renders the filtered select and its count query. The last
// two args are the LIMIT and OFFSET of the select; the count query uses the
// others.
func buildListQuery(filter QueryLogFilter) (string, string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.IntentKind != nil {
		where += fmt.Sprintf(" AND intent_kind = $%d", argNum)
		args = append(args, *filter.IntentKind)
		argNum++
	}

	if filter.Failed != nil {
		where += fmt.Sprintf(" AND failed = $%d", argNum)
		args = append(args, *filter.Failed)
		argNum++
	}

	if filter.Since != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, *filter.Since)
		argNum++
	}

	countQuery := "SELECT COUNT(*) FROM query_log" + where

	query := "SELECT " + queryLogColumns + " FROM query_log" + where
	query += " ORDER BY created_at DESC, id"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	return query, countQuery, args
}

// HealthCheck performs a repository health check
func (r *queryLogRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
