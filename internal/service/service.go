package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/actuallystonmai/dineright-service/internal/domain"
	"github.com/actuallystonmai/dineright-service/internal/model"
	"github.com/actuallystonmai/dineright-service/internal/resolver"
)

const (
	defaultBatchConcurrency = 10
	defaultBreakerThreshold = 5
	defaultBreakerTimeout   = 30 * time.Second

	reasonCircuitOpen = "circuit_open"
)

type UserRepository interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	GetUserIDsPaginated(ctx context.Context, page, limit int) ([]int64, error)
	CountUsers(ctx context.Context) (int, error)
}

type RecommendationCache interface {
	Get(ctx context.Context, userID int64) ([]domain.RecommendedRestaurant, bool, error)
	Set(ctx context.Context, userID int64, recs []domain.RecommendedRestaurant) error
	ClearUserCache(ctx context.Context, userID int64) error
}

type Aggregator interface {
	Aggregate(ctx context.Context, userID int64) domain.RecommendationRequest
}

type Recommender interface {
	GetRecommendations(ctx context.Context, req domain.RecommendationRequest) ([]int64, error)
}

type Resolver interface {
	Resolve(ctx context.Context, ids []int64) ([]domain.RecommendedRestaurant, error)
}

type Dependencies struct {
	Users       UserRepository
	Cache       RecommendationCache
	Aggregator  Aggregator
	Recommender Recommender
	Resolver    Resolver
}

type Options struct {
	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration
	BatchConcurrency        int
}

type Service struct {
	deps    Dependencies
	breaker *gobreaker.CircuitBreaker[[]int64]
	batch   int
	logger  *zap.Logger
}

func NewService(deps Dependencies, opts Options, logger *zap.Logger) *Service {
	if opts.BreakerFailureThreshold == 0 {
		opts.BreakerFailureThreshold = defaultBreakerThreshold
	}
	if opts.BreakerOpenTimeout <= 0 {
		opts.BreakerOpenTimeout = defaultBreakerTimeout
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = defaultBatchConcurrency
	}

	logger = logger.Named("service")
	threshold := opts.BreakerFailureThreshold

	breaker := gobreaker.NewCircuitBreaker[[]int64](gobreaker.Settings{
		Name:    "recommendation-worker",
		Timeout: opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only worker failures count against the breaker; caller cancellations do not.
		IsSuccessful: func(err error) bool {
			return !model.IsModelInferenceError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &Service{
		deps:    deps,
		breaker: breaker,
		batch:   opts.BatchConcurrency,
		logger:  logger,
	}
}

// GetRecommendations returns the resolved recommendations for a user.
// A worker that cannot be reached produces an empty, degraded result rather
// than an error; refresh bypasses and clears the cached entry.
func (s *Service) GetRecommendations(ctx context.Context, userID int64, refresh bool) (*domain.RecommendationResult, error) {
	exists, err := s.deps.Users.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	if refresh {
		if err := s.deps.Cache.ClearUserCache(ctx, userID); err != nil {
			s.logger.Warn("cache invalidation error", zap.Int64("user_id", userID), zap.Error(err))
		}
	} else {
		cached, found, err := s.deps.Cache.Get(ctx, userID)
		if err != nil {
			s.logger.Warn("cache get error", zap.Int64("user_id", userID), zap.Error(err))
		}
		if found {
			return &domain.RecommendationResult{
				Restaurants: cached,
				CacheHit:    true,
			}, nil
		}
	}

	req := s.deps.Aggregator.Aggregate(ctx, userID)

	ids, err := s.breaker.Execute(func() ([]int64, error) {
		return s.deps.Recommender.GetRecommendations(ctx, req)
	})
	if err != nil {
		reason, degrade := degradedReason(err)
		if !degrade {
			return nil, err
		}
		s.logger.Warn("recommendations unavailable, returning empty result",
			zap.Int64("user_id", userID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return &domain.RecommendationResult{
			Restaurants:    []domain.RecommendedRestaurant{},
			Degraded:       true,
			DegradedReason: reason,
		}, nil
	}

	recs, err := s.deps.Resolver.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve recommendations: %w", err)
	}

	if len(recs) > 0 {
		if err := s.deps.Cache.Set(ctx, userID, recs); err != nil {
			s.logger.Warn("cache set error", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	return &domain.RecommendationResult{Restaurants: recs}, nil
}

func (s *Service) GetBatchRecommendations(ctx context.Context, page, limit int) (*domain.BatchResponse, error) {
	start := time.Now()

	userIDs, err := s.deps.Users.GetUserIDsPaginated(ctx, page, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch user ids: %w", err)
	}

	totalUsers, err := s.deps.Users.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	// Bounded fan-out; the worker itself still serves one user at a time.
	results := make([]domain.BatchUserResult, len(userIDs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.batch)

	for i, userID := range userIDs {
		wg.Add(1)
		go func(idx int, uid int64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = s.processUserForBatch(ctx, uid)
		}(i, userID)
	}
	wg.Wait()

	summary := domain.BatchSummary{}
	for _, r := range results {
		if r.Status == domain.StatusSuccess {
			summary.SuccessCount++
		} else {
			summary.FailedCount++
		}
		if r.Degraded {
			summary.DegradedCount++
		}
	}
	summary.ProcessingTimeMs = time.Since(start).Milliseconds()

	return &domain.BatchResponse{
		Page:       page,
		Limit:      limit,
		TotalUsers: totalUsers,
		Results:    results,
		Summary:    summary,
		Metadata: domain.BatchMeta{
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// Generates recommendations for a single user, capturing errors.
func (s *Service) processUserForBatch(ctx context.Context, userID int64) domain.BatchUserResult {
	result, err := s.GetRecommendations(ctx, userID, false)
	if err != nil {
		s.logger.Warn("batch: recommendation failed", zap.Int64("user_id", userID), zap.Error(err))
		code, msg := CategorizeError(err)
		return domain.BatchUserResult{
			UserID:  userID,
			Status:  domain.StatusFailed,
			Error:   code,
			Message: msg,
		}
	}

	return domain.BatchUserResult{
		UserID:          userID,
		Recommendations: result.Restaurants,
		Degraded:        result.Degraded,
		Status:          domain.StatusSuccess,
	}
}

func degradedReason(err error) (string, bool) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return reasonCircuitOpen, true
	}
	if model.IsModelInferenceError(err) {
		return model.KindOf(err).String(), true
	}
	return "", false
}

// CategorizeError maps an error to a response code and message.
func CategorizeError(err error) (string, string) {
	var missing *resolver.MissingRestaurantError
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found", "user not found"
	case errors.As(err, &missing):
		return "restaurant_not_found", "a recommended restaurant is no longer available"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "request_timeout", "request timed out, please try again"
	case model.IsModelInferenceError(err):
		return "model_unavailable", "recommendation model failed to generate a response"
	}
	return "internal_error", "an unexpected error occurred"
}
