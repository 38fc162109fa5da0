package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupTestDB creates a PostgreSQL testcontainer and returns the migrated connection pool
func setupTestDB(t *testing.T) *pgxpool.Pool {
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("pilly_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	return pool
}

// truncate empties the tables between subtests sharing one container
func truncate(t *testing.T, pool *pgxpool.Pool) {
	_, err := pool.Exec(context.Background(), `TRUNCATE medications, dose_events`)
	require.NoError(t, err)
}

func TestPostgresStores(t *testing.T) {
	pool := setupTestDB(t)
	logger := zap.NewNop()

	t.Run("dose log", func(t *testing.T) {
		testDoseLogContract(t, func(t *testing.T) doseLog {
			truncate(t, pool)
			return NewDoseLogRepository(pool, logger)
		})
	})

	t.Run("medication store", func(t *testing.T) {
		testMedicationStoreContract(t, func(t *testing.T) medicationStore {
			truncate(t, pool)
			return NewMedicationRepository(pool, logger)
		})
	})

	t.Run("last write wins", func(t *testing.T) {
		truncate(t, pool)
		repo := NewDoseLogRepository(pool, logger)
		statuses := []model.DoseStatus{model.StatusTaken, model.StatusLate, model.StatusMissed}

		parameters := gopter.DefaultTestParameters()
		parameters.MinSuccessfulTests = 50
		properties := gopter.NewProperties(parameters)

		properties.Property("statusOf returns the second of two writes", prop.ForAll(
			func(first, second int) bool {
				ctx := context.Background()
				id := uuid.New().String()
				if err := repo.Record(ctx, event(id, "2025-10-01", "08:00", statuses[first])); err != nil {
					t.Logf("Failed to record first event: %v", err)
					return false
				}
				if err := repo.Record(ctx, event(id, "2025-10-01", "08:00", statuses[second])); err != nil {
					t.Logf("Failed to record second event: %v", err)
					return false
				}

				status, ok, err := repo.StatusOf(ctx, id, model.MustParseDate("2025-10-01"), model.MustParseTimeOfDay("08:00"))
				return err == nil && ok && status == statuses[second]
			},
			gen.IntRange(0, 2),
			gen.IntRange(0, 2),
		))

		properties.TestingRun(t)
	})
}
