package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	rowsAffected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type mockExecutor struct {
	calls int
	query string
	args  []interface{}
	rows  int64
	err   error
}

func (m *mockExecutor) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.calls++
	m.query = query
	m.args = args
	if m.err != nil {
		return nil, m.err
	}
	return fakeResult{rowsAffected: m.rows}, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// lastLogEntry は最後に出力されたJSONログ行を返す。
func lastLogEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry), "raw: %s", buf.String())
	return entry
}

func TestNewCleanupJob_SetsDefaults(t *testing.T) {
	job := NewCleanupJob(&mockExecutor{}, newTestLogger(&bytes.Buffer{}))

	require.NotNil(t, job)
	assert.Equal(t, 30, job.RetentionDays)
	assert.Equal(t, 20, job.MaxAttempts)
}

func TestCleanupJob_Run_BuildsDeleteQuery(t *testing.T) {
	tests := []struct {
		name          string
		maxAttempts   int
		retentionDays int
		wantInterval  string
	}{
		{"defaults", 20, 30, "30 days"},
		{"custom retention", 20, 90, "90 days"},
		{"custom attempts", 5, 7, "7 days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockExecutor{}
			job := NewCleanupJob(mock, newTestLogger(&bytes.Buffer{}))
			job.MaxAttempts = tt.maxAttempts
			job.RetentionDays = tt.retentionDays

			require.NoError(t, job.Run(context.Background()))

			assert.Equal(t, 1, mock.calls)
			assert.Equal(t,
				"DELETE FROM storage_deletions WHERE attempts >= $1 AND created_at < now() - $2::interval",
				mock.query,
			)
			require.Len(t, mock.args, 2)
			assert.Equal(t, tt.maxAttempts, mock.args[0])
			assert.Equal(t, tt.wantInterval, mock.args[1])
		})
	}
}

func TestCleanupJob_Run_LogLevelDependsOnDiscardedRows(t *testing.T) {
	tests := []struct {
		name      string
		rows      int64
		wantLevel string
	}{
		{"nothing discarded", 0, "INFO"},
		{"rows discarded", 42, "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			job := NewCleanupJob(&mockExecutor{rows: tt.rows}, newTestLogger(&buf))

			require.NoError(t, job.Run(context.Background()))

			entry := lastLogEntry(t, &buf)
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, float64(tt.rows), entry["deleted_count"])
			assert.Equal(t, float64(30), entry["retention_days"])
			assert.Equal(t, float64(20), entry["max_attempts"])
			assert.Contains(t, entry, "duration_ms")
		})
	}
}

func TestCleanupJob_Run_DBFailure(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockExecutor{err: sql.ErrConnDone}, newTestLogger(&buf))

	err := job.Run(context.Background())

	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.Equal(t, "ERROR", lastLogEntry(t, &buf)["level"])
}
