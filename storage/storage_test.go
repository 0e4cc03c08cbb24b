package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

func newSQLite(t *testing.T) Store {
	t.Helper()
	st, err := New(context.Background(), &Config{
		Driver:      "sqlite",
		AutoMigrate: true,
		Trace:       true,
		SQLite:      SQLiteConfig{Path: filepath.Join(t.TempDir(), "paygate.db")},
	}, WithLogger(clog.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": newSQLite(t),
	}
}

func TestAppendAndListAttempts(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			start := time.Now().UTC().Truncate(time.Millisecond)

			require.NoError(t, st.AppendAttempt(ctx, AttemptRecord{
				OrchestrationID: "orch-1", Provider: "paypal", AttemptNumber: 2, Tries: 3,
				StartedAt: start, DurationMs: 30, Outcome: OutcomeTemporaryFailure, ErrorMessage: "timeout",
			}))
			require.NoError(t, st.AppendAttempt(ctx, AttemptRecord{
				OrchestrationID: "orch-1", Provider: "stripe", AttemptNumber: 1,
				StartedAt: start, Outcome: OutcomeSkippedCircuitOpen,
			}))
			require.NoError(t, st.AppendAttempt(ctx, AttemptRecord{
				OrchestrationID: "orch-2", Provider: "adyen", AttemptNumber: 1, Tries: 1,
				StartedAt: start, Outcome: OutcomeSuccess,
			}))

			got, err := st.Attempts(ctx, "orch-1")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "stripe", got[0].Provider)
			assert.Equal(t, OutcomeSkippedCircuitOpen, got[0].Outcome)
			assert.Equal(t, "paypal", got[1].Provider)
			assert.Equal(t, 3, got[1].Tries)
			assert.Equal(t, "timeout", got[1].ErrorMessage)
			assert.True(t, start.Equal(got[1].StartedAt))

			none, err := st.Attempts(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestOrchestrationLog(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log := OrchestrationLog{
				OrchestrationID:       "orch-9",
				CorrelationID:         "corr-9",
				TenantID:              "school-a",
				Kind:                  KindPayment,
				State:                 "COMPLETED",
				Success:               true,
				Provider:              "adyen",
				ProviderTransactionID: "tx-1",
				Amount:                42.5,
				Currency:              "EUR",
				ProcessingTimeMs:      120,
				CreatedAt:             time.Now().UTC().Truncate(time.Millisecond),
			}
			require.NoError(t, st.AppendOrchestrationLog(ctx, log))

			got, err := st.Orchestration(ctx, "orch-9")
			require.NoError(t, err)
			assert.Equal(t, "adyen", got.Provider)
			assert.Equal(t, KindPayment, got.Kind)
			assert.True(t, got.Success)
			assert.InDelta(t, 42.5, got.Amount, 1e-9)

			err = st.AppendOrchestrationLog(ctx, log)
			assert.ErrorIs(t, err, ErrDuplicate)

			_, err = st.Orchestration(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))
		})
	}
}

func TestNewDefaultsToMemory(t *testing.T) {
	st, err := New(context.Background(), nil)
	require.NoError(t, err)
	_, ok := st.(*memoryStore)
	assert.True(t, ok)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), &Config{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestMySQLConfig(t *testing.T) {
	c := &Config{Driver: "mysql"}
	c.setDefaults()
	assert.Error(t, c.MySQL.validate())

	c.MySQL.Host = "db"
	c.MySQL.Username = "pay"
	c.MySQL.Password = "pw"
	c.MySQL.Database = "paygate"
	require.NoError(t, c.MySQL.validate())
	assert.Equal(t, "pay:pw@tcp(db:3306)/paygate?charset=utf8mb4&parseTime=True&loc=UTC", c.MySQL.dsn())

	c.MySQL.DSN = "custom"
	assert.Equal(t, "custom", c.MySQL.dsn())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
}
