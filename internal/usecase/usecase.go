package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/url-shortening-service/internal/entity"
	"github.com/vadimbarashkov/url-shortening-service/internal/metrics"
	"github.com/vadimbarashkov/url-shortening-service/internal/shortcode"
)

const defaultMaxRetries = 5

var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

type urlRepository interface {
	FindByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	ExistsByShortCode(ctx context.Context, shortCode string) (bool, error)
	Save(ctx context.Context, url *entity.URL) (*entity.URL, error)
	Update(ctx context.Context, url *entity.URL) (*entity.URL, error)
	Delete(ctx context.Context, shortCode string) error
	IncrementAccessCount(ctx context.Context, shortCode string) (*entity.URL, error)
}

type Option func(*URLUseCase)

// WithMaxRetries bounds the number of short code generation attempts per shortened URL.
func WithMaxRetries(n int) Option {
	return func(uc *URLUseCase) {
		if n > 0 {
			uc.maxRetries = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *URLUseCase) {
		uc.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *URLUseCase) {
		uc.metrics = m
	}
}

type URLUseCase struct {
	urlRepo    urlRepository
	generator  shortcode.Generator
	validate   *validator.Validate
	maxRetries int
	now        func() time.Time
	metrics    *metrics.Metrics
}

func NewURLUseCase(urlRepo urlRepository, generator shortcode.Generator, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:    urlRepo,
		generator:  generator,
		validate:   validator.New(),
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// validateURL rejects blank URLs and URLs longer than entity.MaxURLLength characters.
func (uc *URLUseCase) validateURL(originalURL string) error {
	if strings.TrimSpace(originalURL) == "" {
		return entity.ErrInvalidURL
	}

	if err := uc.validate.Var(originalURL, fmt.Sprintf("max=%d", entity.MaxURLLength)); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInvalidURL, err)
	}

	return nil
}

func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if err := uc.validateURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := 0; i < uc.maxRetries; i++ {
		shortCode, err := uc.generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		exists, err := uc.urlRepo.ExistsByShortCode(ctx, shortCode)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to check short code: %w", op, err)
		}
		if exists {
			uc.observeCollision()
			continue
		}

		now := uc.now()

		url, err := uc.urlRepo.Save(ctx, &entity.URL{
			ShortCode:   shortCode,
			OriginalURL: originalURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			// Another writer took the code between the check and the insert.
			if errors.Is(err, entity.ErrShortCodeExists) {
				uc.observeCollision()
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		if uc.metrics != nil {
			uc.metrics.URLsShortened.Inc()
		}

		return url, nil
	}

	if uc.metrics != nil {
		uc.metrics.RetriesExhausted.Inc()
	}

	return nil, fmt.Errorf("%s: %w: %w", op, ErrMaxRetriesExceeded, entity.ErrShortCodeExists)
}

func (uc *URLUseCase) observeCollision() {
	if uc.metrics != nil {
		uc.metrics.CodeCollisions.Inc()
	}
}

func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	url, err := uc.urlRepo.FindByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) ModifyURL(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ModifyURL"

	url, err := uc.urlRepo.FindByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to find url: %w", op, err)
	}

	if err := uc.validateURL(originalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url.OriginalURL = originalURL
	if now := uc.now(); now.After(url.UpdatedAt) {
		url.UpdatedAt = now
	}

	url, err = uc.urlRepo.Update(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to modify url: %w", op, err)
	}

	if uc.metrics != nil {
		uc.metrics.URLsModified.Inc()
	}

	return url, nil
}

func (uc *URLUseCase) DeactivateURL(ctx context.Context, shortCode string) error {
	const op = "usecase.URLUseCase.DeactivateURL"

	if err := uc.urlRepo.Delete(ctx, shortCode); err != nil {
		return fmt.Errorf("%s: failed to deactivate url: %w", op, err)
	}

	if uc.metrics != nil {
		uc.metrics.URLsDeactivated.Inc()
	}

	return nil
}

// GetURLStats returns the URL with its access count incremented by one:
// every statistics read is counted as an access.
func (uc *URLUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	url, err := uc.urlRepo.IncrementAccessCount(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	if uc.metrics != nil {
		uc.metrics.StatsRequested.Inc()
	}

	return url, nil
}
