package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/pkg/database"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getPostgresPool connects to the test database and applies the schema
func getPostgresPool(t *testing.T) *pgxpool.Pool {
	skipIfNoIntegration(t)

	cfg := database.DefaultPostgresConfig()
	cfg.Host = envOr("TEST_POSTGRES_HOST", "localhost")
	cfg.User = envOr("TEST_POSTGRES_USER", "postgres")
	cfg.Password = envOr("TEST_POSTGRES_PASSWORD", "postgres")
	cfg.Database = envOr("TEST_POSTGRES_DB", "concert_booking_test")

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx, Migrations()))
	return db.Pool()
}

func getRedisClient(t *testing.T) *pkgredis.Client {
	skipIfNoIntegration(t)

	cfg := pkgredis.DefaultConfig()
	cfg.Host = envOr("TEST_REDIS_HOST", "localhost")
	client, err := pkgredis.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPostgresRepositories_ReserveAndConfirm(t *testing.T) {
	pool := getPostgresPool(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	schedules := NewPostgresScheduleRepository(pool)
	seats := NewPostgresSeatRepository(pool)
	reservations := NewPostgresReservationRepository(pool)

	concert := &domain.Concert{ID: uuid.New().String(), Title: "Test", Artist: "Band", Venue: "Hall", CreatedAt: now}
	require.NoError(t, schedules.SaveConcert(ctx, concert))

	schedule, seatList, err := domain.NewSchedule(concert.ID, now.Add(24*time.Hour), now.Add(-time.Hour), domain.SeatSpec{Count: 3, Price: 1000}, now)
	require.NoError(t, err)
	require.NoError(t, schedules.Save(ctx, schedule))
	require.NoError(t, seats.SaveAll(ctx, seatList))

	seat, err := seats.GetByID(ctx, seatList[0].ID)
	require.NoError(t, err)
	read := seat.Version()
	require.NoError(t, seat.Hold("user-it", now, time.Minute))
	require.NoError(t, seats.SaveIfUnchanged(ctx, seat, read))

	// a second writer holding the pre-hold snapshot loses
	stale, _ := seats.GetByID(ctx, seatList[0].ID)
	stale.Release(now)
	assert.ErrorIs(t, seats.SaveIfUnchanged(ctx, stale, read), domain.ErrSeatChanged)
	require.NoError(t, schedules.AdjustAvailableSeats(ctx, schedule.ID, -1))

	res, err := domain.NewTemporaryReservation("user-it", seat, seat.Price, now)
	require.NoError(t, err)
	require.NoError(t, reservations.Save(ctx, res))

	expired, err := seats.FindExpiredHolds(ctx, now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	found := false
	for _, s := range expired {
		found = found || s.ID == seat.ID
	}
	assert.True(t, found)

	held := seat.Version()
	require.NoError(t, seat.Confirm(now.Add(time.Second)))
	require.NoError(t, seats.SaveIfUnchanged(ctx, seat, held))
	assert.ErrorIs(t, seats.SaveIfUnchanged(ctx, seat, held), domain.ErrSeatChanged, "already confirmed")

	require.NoError(t, res.Confirm(now.Add(time.Second), "pay-"+res.ID[:8]))
	require.NoError(t, reservations.Save(ctx, res))

	got, err := reservations.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, got.Status)
	assert.Nil(t, got.ExpiresAt)

	sch, err := schedules.GetByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sch.AvailableSeats)

	_, err = seats.GetByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, domain.ErrSeatNotFound)
}

func TestPostgresBalanceRepository(t *testing.T) {
	pool := getPostgresPool(t)
	ctx := context.Background()
	repo := NewPostgresBalanceRepository(pool)
	userID := fmt.Sprintf("user-it-%d", time.Now().UnixNano())

	_, err := repo.Debit(ctx, userID, 10)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	b, err := repo.Credit(ctx, userID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), b.Balance)

	b, err = repo.Debit(ctx, userID, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), b.Balance)
}

func TestRedisTokenRepository(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	repo := NewRedisTokenRepository(client)
	require.NoError(t, repo.LoadScripts(ctx))

	now := time.Now().UTC()
	tok, err := domain.NewAdmissionToken("user-"+uuid.New().String(), 1, now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, tok))

	got, err := repo.GetByID(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenStatusWaiting, got.Status)
	assert.True(t, got.IssuedAt.Equal(tok.IssuedAt))

	rank, err := repo.WaitingRank(ctx, tok.ID)
	require.NoError(t, err)
	assert.Positive(t, rank)

	require.NoError(t, tok.Activate(now, time.Second))
	require.NoError(t, repo.Save(ctx, tok))

	rank, _ = repo.WaitingRank(ctx, tok.ID)
	assert.Zero(t, rank)

	lapsed, err := repo.FindLapsedActive(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, l := range lapsed {
		ids[l.ID] = true
	}
	assert.True(t, ids[tok.ID])

	sweepCopy := *tok
	require.NoError(t, tok.Complete())
	require.NoError(t, repo.Save(ctx, tok))
	require.NoError(t, sweepCopy.Expire())
	assert.ErrorIs(t, repo.Save(ctx, &sweepCopy), domain.ErrInvalidTransition)

	got, err = repo.GetByID(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenStatusCompleted, got.Status)
	assert.Nil(t, got.ExpiresAt)

	latest, err := repo.GetLatestByUserID(ctx, tok.UserID)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, latest.ID)

	_, err = repo.GetByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}
