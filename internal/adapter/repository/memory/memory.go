// Package memory provides an in-memory URL repository. It keeps the same
// guarantees as the PostgreSQL repository (unique short codes, atomic access
// counting) and is used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/url-shortening-service/internal/entity"
)

type URLRepository struct {
	mu   sync.RWMutex
	urls map[string]*entity.URL // keyed by short code
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		urls: make(map[string]*entity.URL),
	}
}

func clone(url *entity.URL) *entity.URL {
	c := *url
	return &c
}

func (r *URLRepository) FindByShortCode(_ context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.FindByShortCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	url, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return clone(url), nil
}

func (r *URLRepository) ExistsByShortCode(_ context.Context, shortCode string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.urls[shortCode]
	return ok, nil
}

func (r *URLRepository) Save(_ context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Save"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[url.ShortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	stored := clone(url)
	stored.ID = uuid.NewString()
	stored.AccessCount = 0
	r.urls[stored.ShortCode] = stored

	return clone(stored), nil
}

func (r *URLRepository) Update(_ context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Update"

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.urls[url.ShortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	stored.OriginalURL = url.OriginalURL
	stored.UpdatedAt = url.UpdatedAt

	return clone(stored), nil
}

func (r *URLRepository) Delete(_ context.Context, shortCode string) error {
	const op = "adapter.repository.memory.URLRepository.Delete"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[shortCode]; !ok {
		return fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	delete(r.urls, shortCode)

	return nil
}

func (r *URLRepository) IncrementAccessCount(_ context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.IncrementAccessCount"

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	stored.AccessCount++

	return clone(stored), nil
}

func (r *URLRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.urls)), nil
}

// List returns all URLs ordered by creation time.
func (r *URLRepository) List(_ context.Context) ([]*entity.URL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	urls := make([]*entity.URL, 0, len(r.urls))
	for _, url := range r.urls {
		urls = append(urls, clone(url))
	}

	sort.Slice(urls, func(i, j int) bool {
		if urls[i].CreatedAt.Equal(urls[j].CreatedAt) {
			return urls[i].ShortCode < urls[j].ShortCode
		}
		return urls[i].CreatedAt.Before(urls[j].CreatedAt)
	})

	return urls, nil
}
