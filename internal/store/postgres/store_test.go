package postgres

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

// setupTestDB starts a throwaway Postgres container and applies migrations
func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgresStore(dsn, "../../../migrations")
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		s.Close()
		container.Terminate(ctx)
	}

	return s, cleanup
}

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() || os.Getenv("PG_INTEGRATION") == "" {
		log.Println("Skipping Postgres integration tests. Set PG_INTEGRATION=1 and drop -short to run them.")
		os.Exit(0)
	}
	log.Println("Starting Postgres store tests...")
	code := m.Run()
	log.Println("Finished Postgres store tests")
	os.Exit(code)
}

func TestConcurrentSubmissionsForSameDay(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	class := &models.ClassRoom{Name: "7А"}
	require.NoError(t, s.CreateClassRoom(ctx, class))

	day := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)

	const writers = 4
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(tx store.AttendanceTx) error {
				return tx.InsertSummary(&models.AttendanceSummary{
					ClassRoomID: class.ID, Date: day, CreatedAt: now, UpdatedAt: now,
				})
			})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrDuplicate):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, dup)
}

func TestStudentsAndTokens(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	class := &models.ClassRoom{Name: "3Б"}
	require.NoError(t, s.CreateClassRoom(ctx, class))
	student := &models.Student{FullName: "Пётр Сидоров", ClassRoomID: class.ID, IsActive: true,
		Privileges: []models.PrivilegeType{models.PrivilegeLowIncome}}
	require.NoError(t, s.CreateStudent(ctx, student))

	t.Run("roster count", func(t *testing.T) {
		got, err := s.GetClassRoom(ctx, class.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.StudentCount)
	})

	t.Run("duplicate student in class", func(t *testing.T) {
		err := s.CreateStudent(ctx, &models.Student{FullName: "Пётр Сидоров", ClassRoomID: class.ID, IsActive: true})
		assert.True(t, errors.Is(err, store.ErrDuplicate))
	})

	t.Run("token lifecycle", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		token := &models.SubstituteToken{
			ClassRoomID: class.ID,
			TokenHash:   "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0",
			TTLSeconds:  600,
			CreatedAt:   now,
			ExpiresAt:   now.Add(10 * time.Minute),
		}
		require.NoError(t, s.CreateToken(ctx, token))

		got, err := s.GetTokenByHash(ctx, token.TokenHash)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.IsActive(now))

		require.NoError(t, s.DeleteToken(ctx, token.ID))
		got, err = s.GetToken(ctx, token.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
