//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vadimbarashkov/url-shortening-service/internal/config"
	"github.com/vadimbarashkov/url-shortening-service/internal/entity"

	pgdb "github.com/vadimbarashkov/url-shortening-service/pkg/postgres"
)

const migrationsPath = "file://../../../../migrations"

func setupPostgres(t testing.TB) config.Postgres {
	t.Helper()

	ctx := context.Background()

	pgUser := "test"
	pgPassword := "test"
	pgDB := "url_shortener"

	pgCont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDB,
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgCont.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate postgres container: %v", err)
		}
	})

	pgHost, err := pgCont.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	pgPort, err := pgCont.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return config.Postgres{
		User:     pgUser,
		Password: pgPassword,
		Host:     pgHost,
		Port:     pgPort.Int(),
		DB:       pgDB,
		SSLMode:  "disable",
	}
}

type URLRepositoryIntegrationTestSuite struct {
	suite.Suite
	cfg  config.Postgres
	db   *sqlx.DB
	repo *URLRepository
	now  time.Time
}

func (suite *URLRepositoryIntegrationTestSuite) SetupSuite() {
	suite.cfg = setupPostgres(suite.T())
	suite.now = time.Now().UTC().Truncate(time.Microsecond)

	version, err := pgdb.RunMigrations(migrationsPath, suite.cfg.DSN())
	if err != nil {
		suite.T().Fatalf("Failed to run migrations: %v", err)
	}
	suite.Equal(uint(1), version)

	suite.db, err = pgdb.New(context.Background(), suite.cfg.DSN())
	if err != nil {
		suite.T().Fatalf("Failed to connect to database: %v", err)
	}

	suite.repo = NewURLRepository(suite.db)
}

func (suite *URLRepositoryIntegrationTestSuite) TearDownSuite() {
	suite.db.Close()

	if err := pgdb.RollbackMigrations(migrationsPath, suite.cfg.DSN()); err != nil {
		suite.T().Errorf("Failed to rollback migrations: %v", err)
	}
}

func (suite *URLRepositoryIntegrationTestSuite) TearDownSubTest() {
	if _, err := suite.db.Exec(`TRUNCATE TABLE urls`); err != nil {
		suite.T().Fatalf("Failed to clean urls table: %v", err)
	}
}

func (suite *URLRepositoryIntegrationTestSuite) save(shortCode string) *entity.URL {
	url, err := suite.repo.Save(context.Background(), &entity.URL{
		ShortCode:   shortCode,
		OriginalURL: "https://example.com",
		CreatedAt:   suite.now,
		UpdatedAt:   suite.now,
	})
	suite.Require().NoError(err)

	return url
}

func (suite *URLRepositoryIntegrationTestSuite) TestLifecycle() {
	suite.Run("save, find, update, delete", func() {
		saved := suite.save("abc123")

		suite.NotEmpty(saved.ID)
		suite.Zero(saved.AccessCount)
		suite.True(saved.CreatedAt.Equal(suite.now))

		exists, err := suite.repo.ExistsByShortCode(context.Background(), "abc123")
		suite.NoError(err)
		suite.True(exists)

		found, err := suite.repo.FindByShortCode(context.Background(), "abc123")
		suite.NoError(err)
		suite.Equal(saved.ID, found.ID)

		later := suite.now.Add(time.Minute)
		found.OriginalURL = "https://new-example.com"
		found.UpdatedAt = later

		updated, err := suite.repo.Update(context.Background(), found)
		suite.NoError(err)
		suite.Equal("https://new-example.com", updated.OriginalURL)
		suite.True(updated.CreatedAt.Equal(suite.now))
		suite.True(updated.UpdatedAt.Equal(later))

		suite.NoError(suite.repo.Delete(context.Background(), "abc123"))

		_, err = suite.repo.FindByShortCode(context.Background(), "abc123")
		suite.ErrorIs(err, entity.ErrURLNotFound)

		err = suite.repo.Delete(context.Background(), "abc123")
		suite.ErrorIs(err, entity.ErrURLNotFound)
	})

	suite.Run("duplicate short code", func() {
		suite.save("abc123")

		url, err := suite.repo.Save(context.Background(), &entity.URL{
			ShortCode:   "abc123",
			OriginalURL: "https://other.com",
			CreatedAt:   suite.now,
			UpdatedAt:   suite.now,
		})

		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(url)
	})
}

func (suite *URLRepositoryIntegrationTestSuite) TestConcurrency() {
	suite.Run("concurrent access count increments", func() {
		const n = 100

		suite.save("abc123")

		var wg sync.WaitGroup
		wg.Add(n)

		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				_, _ = suite.repo.IncrementAccessCount(context.Background(), "abc123")
			}()
		}

		wg.Wait()

		url, err := suite.repo.FindByShortCode(context.Background(), "abc123")
		suite.NoError(err)
		suite.Equal(int64(n), url.AccessCount)
	})

	suite.Run("concurrent saves of the same short code", func() {
		const n = 20

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		wg.Add(n)

		for i := 0; i < n; i++ {
			go func(i int) {
				defer wg.Done()

				_, err := suite.repo.Save(context.Background(), &entity.URL{
					ShortCode:   "race01",
					OriginalURL: fmt.Sprintf("https://example.com/%d", i),
					CreatedAt:   suite.now,
					UpdatedAt:   suite.now,
				})

				mu.Lock()
				defer mu.Unlock()

				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, entity.ErrShortCodeExists):
					conflicts++
				}
			}(i)
		}

		wg.Wait()

		suite.Equal(1, succeeded)
		suite.Equal(n-1, conflicts)

		count, err := suite.repo.Count(context.Background())
		suite.NoError(err)
		suite.Equal(int64(1), count)
	})

	suite.Run("list", func() {
		suite.save("aaa111")
		suite.save("bbb222")

		urls, err := suite.repo.List(context.Background())
		suite.NoError(err)
		suite.Len(urls, 2)
		suite.Equal("aaa111", urls[0].ShortCode)
		suite.Equal("bbb222", urls[1].ShortCode)
	})
}

func TestURLRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite.Run(t, new(URLRepositoryIntegrationTestSuite))
}
