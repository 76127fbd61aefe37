// Integration tests for the leaderboard transaction coordinator.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package service

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"typing-test-backend/internal/model"
	"typing-test-backend/internal/pkg/db"
	"typing-test-backend/internal/repository"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupBoardService creates a PostgreSQL container and returns a coordinator
// backed by it. Skips the test if Docker is not available
func setupBoardService(t *testing.T) (*LeaderboardService, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS leaderboards (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			mode2 INT NOT NULL,
			type TEXT NOT NULL,
			size INT NOT NULL,
			board JSONB NOT NULL DEFAULT '[]'::jsonb
		)
	`)
	require.NoError(t, err)

	dbPool := &db.Pool{Pool: pool}
	svc := NewLeaderboardService(dbPool, repository.NewLeaderboardRepository(pool), 20)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return svc, cleanup
}

func eligibleUser(uid, name string) *model.User {
	return &model.User{UID: uid, Name: name, EmailVerified: true}
}

func rankedResult(uid string, wpm float64, ts int64) *model.Result {
	return &model.Result{
		UID:       uid,
		Mode:      model.ModeTime,
		Mode2:     60,
		Language:  "english",
		WPM:       wpm,
		RawWPM:    wpm + 5,
		Acc:       95,
		Timestamp: ts,
	}
}

func TestLeaderboardServiceApply_ConcurrentFirstSubmissions(t *testing.T) {
	svc, cleanup := setupBoardService(t)
	defer cleanup()

	ctx := context.Background()

	// All submissions race on the lazy creation of the same board document;
	// none may be dropped. With four writers every transaction commits
	// within the coordinator's retry bound.
	const submitters = 4
	outcomes := make([]*LeaderboardOutcome, submitters)
	var wg sync.WaitGroup
	wg.Add(submitters)
	for i := 0; i < submitters; i++ {
		go func(i int) {
			defer wg.Done()
			uid := fmt.Sprintf("uid%d", i)
			result := rankedResult(uid, 100+float64(i), int64(1600000000000+i))
			outcomes[i] = svc.Apply(ctx, result, eligibleUser(uid, fmt.Sprintf("user%d", i)), model.BoardTypeGlobal)
		}(i)
	}
	wg.Wait()

	for i, out := range outcomes {
		require.NotNil(t, out.Placement, "submission %d was dropped", i)
		assert.True(t, out.Placement.Inserted(), "submission %d not inserted", i)
		assert.True(t, out.Placement.NewBest)
	}

	view, err := svc.Get(ctx, "time", 60, model.BoardTypeGlobal, "")
	require.NoError(t, err)
	require.Len(t, view.Board, submitters)
	for i := 1; i < len(view.Board); i++ {
		assert.GreaterOrEqual(t, view.Board[i-1].WPM, view.Board[i].WPM, "board out of order at %d", i)
	}
	assert.Equal(t, 103.0, view.Board[0].WPM)
}

func TestLeaderboardServiceApply_ConcurrentSameUser(t *testing.T) {
	svc, cleanup := setupBoardService(t)
	defer cleanup()

	ctx := context.Background()
	user := eligibleUser("uid1", "speedy")

	const attempts = 4
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			result := rankedResult("uid1", 80+float64(i), int64(1600000000000+i))
			svc.Apply(ctx, result, user, model.BoardTypeGlobal)
		}(i)
	}
	wg.Wait()

	view, err := svc.Get(ctx, "time", 60, model.BoardTypeGlobal, "uid1")
	require.NoError(t, err)
	require.Len(t, view.Board, 1, "a user holds at most one entry per board")
	assert.Equal(t, 83.0, view.Board[0].WPM)
	assert.True(t, view.Board[0].CurrentUser)
	assert.Nil(t, view.Board[0].UID)
}

func TestLeaderboardServiceApply_WriteSkippedWhenNotInserted(t *testing.T) {
	svc, cleanup := setupBoardService(t)
	defer cleanup()

	ctx := context.Background()

	// fill a small board, then submit below the cut
	svc.boardSize = 2
	for i := 0; i < 2; i++ {
		uid := fmt.Sprintf("uid%d", i)
		out := svc.Apply(ctx, rankedResult(uid, 100+float64(i), 1600000000000), eligibleUser(uid, uid), model.BoardTypeGlobal)
		require.NotNil(t, out.Placement)
		require.True(t, out.Placement.Inserted())
	}

	out := svc.Apply(ctx, rankedResult("slow", 50, 1600000000001), eligibleUser("slow", "slow"), model.BoardTypeGlobal)
	require.NotNil(t, out.Placement)
	assert.False(t, out.Placement.Inserted())

	view, err := svc.Get(ctx, "time", 60, model.BoardTypeGlobal, "")
	require.NoError(t, err)
	require.Len(t, view.Board, 2)
	assert.Equal(t, 101.0, view.Board[0].WPM)
	assert.Equal(t, 100.0, view.Board[1].WPM)
}

func TestLeaderboardServiceGet_DailyResetTime(t *testing.T) {
	svc, cleanup := setupBoardService(t)
	defer cleanup()

	ctx := context.Background()

	out := svc.Apply(ctx, rankedResult("uid1", 100, 1600000000000), eligibleUser("uid1", "speedy"), model.BoardTypeDaily)
	require.NotNil(t, out.Placement)
	require.True(t, out.Placement.Inserted())

	view, err := svc.Get(ctx, "time", 60, model.BoardTypeDaily, "")
	require.NoError(t, err)
	require.NotNil(t, view.ResetTime)
	now := time.Now()
	reset := time.UnixMilli(*view.ResetTime)
	assert.True(t, reset.After(now), "reset instant must be in the future")
	assert.LessOrEqual(t, reset.Sub(now), 24*time.Hour)
}
