package repository

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-insights/pkg/logging"
	"energy-insights/pkg/metrics"
)

func TestBuildListQuery(t *testing.T) {
	kind := "outlier_search"
	failed := true
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		filter      QueryLogFilter
		wantWhere   []string
		wantArgs    []interface{}
		wantLimitAt string
	}{
		{
			name:        "no filters",
			filter:      QueryLogFilter{Limit: 20, Offset: 0},
			wantArgs:    []interface{}{20, 0},
			wantLimitAt: "LIMIT $1 OFFSET $2",
		},
		{
			name:        "intent kind",
			filter:      QueryLogFilter{IntentKind: &kind, Limit: 10, Offset: 30},
			wantWhere:   []string{"intent_kind = $1"},
			wantArgs:    []interface{}{kind, 10, 30},
			wantLimitAt: "LIMIT $2 OFFSET $3",
		},
		{
			name:        "all filters",
			filter:      QueryLogFilter{IntentKind: &kind, Failed: &failed, Since: &since, Limit: 5, Offset: 5},
			wantWhere:   []string{"intent_kind = $1", "failed = $2", "created_at >= $3"},
			wantArgs:    []interface{}{kind, failed, since, 5, 5},
			wantLimitAt: "LIMIT $4 OFFSET $5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, countQuery, args := buildListQuery(tt.filter)

			assert.Equal(t, tt.wantArgs, args)
			assert.True(t, strings.HasPrefix(countQuery, "SELECT COUNT(*) FROM query_log WHERE 1=1"))
			assert.NotContains(t, countQuery, "LIMIT")
			assert.Contains(t, query, "ORDER BY created_at DESC, id")
			assert.True(t, strings.HasSuffix(query, tt.wantLimitAt), query)

			for _, clause := range tt.wantWhere {
				assert.Contains(t, query, clause)
				assert.Contains(t, countQuery, clause)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Resource: "query_log", ID: "abc"}
	assert.Equal(t, "query_log not found: abc", err.Error())
	assert.False(t, err.IsTransient())
}

func TestQueryLogRepository_GetMalformedID(t *testing.T) {
	logger := logging.NewStructuredLogger("repository-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)

	// Malformed ids are rejected before any statement is sent, so no
	// database is needed.
	repo := NewQueryLogRepository(nil, logger, metrics.NewCollector("test", prometheus.NewRegistry()))

	for _, id := range []string{"not-a-uuid", "1", "' OR 1=1 --", ""} {
		t.Run(id, func(t *testing.T) {
			entry, err := repo.Get(context.Background(), id)
			assert.Nil(t, entry)

			var notFound *NotFoundError
			require.True(t, errors.As(err, &notFound), "got %v", err)
			assert.Equal(t, id, notFound.ID)
		})
	}
}
