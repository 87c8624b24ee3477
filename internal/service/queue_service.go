package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/lock"
	"github.com/prohmpiriya/concert-booking/internal/metrics"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// QueueService defines the interface for the admission queue
type QueueService interface {
	// IssueToken returns the user's live token or puts them at the back of the queue
	IssueToken(ctx context.Context, userID string) (*domain.AdmissionToken, error)

	// GetStatus returns a token with its current waiting position
	GetStatus(ctx context.Context, tokenID string) (*domain.AdmissionToken, error)

	// Sweep expires lapsed tokens, admits waiting ones up to capacity and
	// renumbers the rest. Only one instance sweeps at a time; a busy sweep
	// lock returns a result with Skipped set.
	Sweep(ctx context.Context) (*domain.SweepResult, error)

	// CompleteToken marks an active token as used up after payment
	CompleteToken(ctx context.Context, tokenID string) error

	// ValidateActiveToken checks the token belongs to userID and is admitted
	ValidateActiveToken(ctx context.Context, tokenID, userID string) (*domain.AdmissionToken, error)

	// GetStatistics returns waiting and active counts
	GetStatistics(ctx context.Context) (*domain.QueueStatistics, error)

	// WaitPerSlot is the estimated wait per position ahead
	WaitPerSlot() time.Duration
}

// QueueServiceConfig contains configuration for queue service
type QueueServiceConfig struct {
	Capacity    int64         // max concurrently active tokens (default: 100)
	ActiveLease time.Duration // how long an admitted token stays active (default: 10 minutes)
	WaitPerSlot time.Duration // estimated wait per position (default: 6 seconds)
	SweepLease  time.Duration // lease of the sweep lock (default: 30 seconds)
}

type queueService struct {
	tokens      repository.TokenRepository
	locker      lock.Locker
	clock       clockwork.Clock
	capacity    int64
	activeLease time.Duration
	waitPerSlot time.Duration
	sweepLease  time.Duration
}

// NewQueueService creates a new queue service
func NewQueueService(
	tokens repository.TokenRepository,
	locker lock.Locker,
	clock clockwork.Clock,
	cfg *QueueServiceConfig,
) QueueService {
	capacity := int64(100)
	activeLease := 10 * time.Minute
	waitPerSlot := 6 * time.Second
	sweepLease := 30 * time.Second

	if cfg != nil {
		if cfg.Capacity > 0 {
			capacity = cfg.Capacity
		}
		if cfg.ActiveLease > 0 {
			activeLease = cfg.ActiveLease
		}
		if cfg.WaitPerSlot > 0 {
			waitPerSlot = cfg.WaitPerSlot
		}
		if cfg.SweepLease > 0 {
			sweepLease = cfg.SweepLease
		}
	}

	return &queueService{
		tokens:      tokens,
		locker:      locker,
		clock:       clock,
		capacity:    capacity,
		activeLease: activeLease,
		waitPerSlot: waitPerSlot,
		sweepLease:  sweepLease,
	}
}

func (s *queueService) WaitPerSlot() time.Duration {
	return s.waitPerSlot
}

// IssueToken returns the user's live token or puts them at the back of the queue
func (s *queueService) IssueToken(ctx context.Context, userID string) (*domain.AdmissionToken, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.issue_token")
	defer span.End()

	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	span.SetAttributes(attribute.String("user_id", userID))

	token, err := withLock(ctx, s.locker, lock.AdmissionIssueKey(userID), "issue_token", lock.DefaultOptions,
		func(ctx context.Context) (*domain.AdmissionToken, error) {
			return s.issueLocked(ctx, userID)
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("token_id", token.ID),
		attribute.String("status", string(token.Status)),
		attribute.Int64("position", token.Position),
	)
	span.SetStatus(codes.Ok, "")
	return token, nil
}

func (s *queueService) issueLocked(ctx context.Context, userID string) (*domain.AdmissionToken, error) {
	now := s.clock.Now()

	latest, err := s.tokens.GetLatestByUserID(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrTokenNotFound) {
		return nil, err
	}

	if latest != nil {
		if latest.IsActiveAt(now) {
			return latest, nil
		}
		if latest.IsWaiting() {
			return s.refreshPosition(ctx, latest)
		}
	}

	waiting, err := s.tokens.CountWaiting(ctx)
	if err != nil {
		return nil, err
	}
	token, err := domain.NewAdmissionToken(userID, waiting+1, now)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	metrics.RecordTokenIssued(ctx)
	return token, nil
}

// refreshPosition stores the current rank of a waiting token. The sweep may
// admit the token meanwhile; the store then refuses the write and the
// admitted token is returned instead.
func (s *queueService) refreshPosition(ctx context.Context, token *domain.AdmissionToken) (*domain.AdmissionToken, error) {
	rank, err := s.tokens.WaitingRank(ctx, token.ID)
	if err != nil {
		return nil, err
	}
	if rank == 0 || rank == token.Position {
		return token, nil
	}
	if err := token.UpdatePosition(rank); err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return s.tokens.GetByID(ctx, token.ID)
		}
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return token, nil
}

// GetStatus returns a token with its current waiting position
func (s *queueService) GetStatus(ctx context.Context, tokenID string) (*domain.AdmissionToken, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.get_status")
	defer span.End()

	span.SetAttributes(attribute.String("token_id", tokenID))

	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if token.IsWaiting() {
		rank, err := s.tokens.WaitingRank(ctx, token.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if rank > 0 {
			token.Position = rank
		}
	}

	span.SetAttributes(
		attribute.String("status", string(token.Status)),
		attribute.Int64("position", token.Position),
	)
	span.SetStatus(codes.Ok, "")
	return token, nil
}

// Sweep runs one admission cycle under the sweep lock
func (s *queueService) Sweep(ctx context.Context) (*domain.SweepResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.sweep")
	defer span.End()

	start := time.Now()
	opts := lock.Options{WaitTimeout: 0, LeaseTime: s.sweepLease}

	result, err := withLock(ctx, s.locker, lock.KeyAdmissionSweep, "sweep", opts, s.sweepLocked)
	if errors.Is(err, lock.ErrTimeout) {
		metrics.RecordSweepSkipped(ctx)
		span.SetAttributes(attribute.Bool("skipped", true))
		span.SetStatus(codes.Ok, "sweep already running")
		return &domain.SweepResult{Skipped: true}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordSweep(ctx, result.Expired, result.Activated, time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("expired", result.Expired),
		attribute.Int("activated", result.Activated),
		attribute.Int("waiting", result.Waiting),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (s *queueService) sweepLocked(ctx context.Context) (*domain.SweepResult, error) {
	now := s.clock.Now()
	result := &domain.SweepResult{}

	// 1. expire active tokens whose lease elapsed
	lapsed, err := s.tokens.FindLapsedActive(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, t := range lapsed {
		if err := t.Expire(); err != nil {
			continue
		}
		if err := s.tokens.Save(ctx, t); err != nil {
			// completed since the lapsed read
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			return result, fmt.Errorf("failed to expire token %s: %w", t.ID, err)
		}
		result.Expired++
	}

	// 2. admit the oldest waiting tokens into the free slots
	active, err := s.tokens.CountActive(ctx)
	if err != nil {
		return result, err
	}
	if free := s.capacity - active; free > 0 {
		admit, err := s.tokens.FindWaiting(ctx, int(free))
		if err != nil {
			return result, err
		}
		for _, t := range admit {
			if err := t.Activate(now, s.activeLease); err != nil {
				continue
			}
			if err := s.tokens.Save(ctx, t); err != nil {
				return result, fmt.Errorf("failed to activate token %s: %w", t.ID, err)
			}
			result.Activated++
		}
	}

	// 3. renumber everyone still waiting from 1
	waiting, err := s.tokens.FindWaiting(ctx, 0)
	if err != nil {
		return result, err
	}
	for i, t := range waiting {
		position := int64(i + 1)
		if t.Position == position {
			continue
		}
		if err := t.UpdatePosition(position); err != nil {
			continue
		}
		if err := s.tokens.Save(ctx, t); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
			return result, fmt.Errorf("failed to renumber token %s: %w", t.ID, err)
		}
	}
	result.Waiting = len(waiting)

	return result, nil
}

// CompleteToken marks an active token as used up after payment
func (s *queueService) CompleteToken(ctx context.Context, tokenID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.complete_token")
	defer span.End()

	span.SetAttributes(attribute.String("token_id", tokenID))

	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := token.Complete(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save token: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ValidateActiveToken checks the token belongs to userID and is admitted
func (s *queueService) ValidateActiveToken(ctx context.Context, tokenID, userID string) (*domain.AdmissionToken, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.validate_token")
	defer span.End()

	span.SetAttributes(
		attribute.String("token_id", tokenID),
		attribute.String("user_id", userID),
	)

	if tokenID == "" {
		span.SetStatus(codes.Error, "missing token")
		return nil, domain.ErrInvalidToken
	}

	token, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			span.SetStatus(codes.Error, "unknown token")
			return nil, domain.ErrInvalidToken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if token.UserID != userID {
		span.SetStatus(codes.Error, "token owned by another user")
		return nil, domain.ErrInvalidToken
	}
	if !token.IsActiveAt(s.clock.Now()) {
		span.SetStatus(codes.Error, "token not active")
		return nil, domain.ErrTokenNotActive
	}

	span.SetStatus(codes.Ok, "")
	return token, nil
}

// GetStatistics returns waiting and active counts
func (s *queueService) GetStatistics(ctx context.Context) (*domain.QueueStatistics, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.statistics")
	defer span.End()

	waiting, err := s.tokens.CountWaiting(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	active, err := s.tokens.CountActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &domain.QueueStatistics{
		WaitingCount:   waiting,
		ActiveCount:    active,
		MaxActiveCount: s.capacity,
	}, nil
}
