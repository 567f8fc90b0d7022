package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/url-shortening-service/internal/entity"
	"github.com/vadimbarashkov/url-shortening-service/internal/metrics"

	httpMock "github.com/vadimbarashkov/url-shortening-service/mocks/http"
)

type HandlersTestSuite struct {
	suite.Suite
	logger         *httplog.Logger
	reg            *prometheus.Registry
	metrics        *metrics.Metrics
	urlUseCaseMock *httpMock.MockUrlUseCase
	server         *httptest.Server
	e              *httpexpect.Expect
	now            time.Time
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
	suite.now = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.urlUseCaseMock = httpMock.NewMockUrlUseCase(suite.T())
	suite.reg = prometheus.NewRegistry()
	suite.metrics = metrics.New(suite.reg)

	router := NewRouter(suite.logger, suite.urlUseCaseMock, WithMetrics(suite.metrics, suite.reg))
	suite.server = httptest.NewServer(router)
	suite.T().Cleanup(func() {
		suite.server.Close()
	})

	suite.e = httpexpect.Default(suite.T(), suite.server.URL)
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.urlUseCaseMock.AssertExpectations(suite.T())
}

func (suite *HandlersTestSuite) url() *entity.URL {
	return &entity.URL{
		ID:          "0b9f3a4e-6a2b-4a57-9a52-3f1f2b8c1d11",
		ShortCode:   "abc123",
		OriginalURL: "https://example.com",
		CreatedAt:   suite.now,
		UpdatedAt:   suite.now,
	}
}

func (suite *HandlersTestSuite) TestPing() {
	const path = "/ping"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong")
	})
}

func (suite *HandlersTestSuite) TestShortenURL() {
	const path = "/shorten"

	suite.Run("empty request body", func() {
		suite.e.POST(path).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", "error").
			HasValue("message", "empty request body")
	})

	suite.Run("invalid request body", func() {
		suite.e.POST(path).
			WithJSON("invalid body").
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", "error").
			HasValue("message", "invalid request body")
	})

	suite.Run("missing url", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]string{"url": ""}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.HasValue("message", "validation error")
		resp.Value("errors").Array().Value(0).Object().
			HasValue("field", "url").
			HasValue("message", "this field is required")
	})

	suite.Run("url too long", func() {
		resp := suite.e.POST(path).
			WithJSON(map[string]string{"url": strings.Repeat("a", entity.MaxURLLength+1)}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.Value("errors").Array().Value(0).Object().
			HasValue("field", "url").
			HasValue("message", "value is too long")
	})

	suite.Run("blank url rejected by use case", func() {
		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, "   ").
			Once().
			Return(nil, entity.ErrInvalidURL)

		resp := suite.e.POST(path).
			WithJSON(map[string]string{"url": "   "}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object()

		resp.HasValue("status", "error")
		resp.Value("errors").Array().Value(0).Object().HasValue("field", "url")
	})

	suite.Run("short code conflict", func() {
		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, "https://example.com").
			Once().
			Return(nil, fmt.Errorf("usecase.URLUseCase.ShortenURL: %w", entity.ErrShortCodeExists))

		suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusConflict).
			JSON().Object().
			HasValue("status", "error").
			ContainsKey("message")
	})

	suite.Run("server error", func() {
		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, "https://example.com").
			Once().
			Return(nil, errors.New("unknown error"))

		suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("status", "error").
			HasValue("message", "server error occurred")
	})

	suite.Run("success", func() {
		suite.urlUseCaseMock.
			On("ShortenURL", mock.Anything, "https://example.com").
			Once().
			Return(suite.url(), nil)

		resp := suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object()

		resp.HasValue("id", "0b9f3a4e-6a2b-4a57-9a52-3f1f2b8c1d11")
		resp.HasValue("url", "https://example.com")
		resp.HasValue("shortCode", "abc123")
		resp.HasValue("createdAt", "2024-10-01T12:00:00Z")
		resp.HasValue("updatedAt", "2024-10-01T12:00:00Z")
		resp.NotContainsKey("accessCount")
	})
}

func (suite *HandlersTestSuite) TestResolveShortCode() {
	path := "/shorten/%s"

	suite.Run("malformed short code", func() {
		suite.e.GET(fmt.Sprintf(path, "a.b")).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", "error")

		suite.e.GET(fmt.Sprintf(path, "abcdefghijk")).
			Expect().
			Status(http.StatusNotFound)
	})

	suite.Run("url not found", func() {
		suite.urlUseCaseMock.
			On("ResolveShortCode", mock.Anything, "abc123").
			Once().
			Return(nil, entity.ErrURLNotFound)

		suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", "error").
			HasValue("message", "url not found")
	})

	suite.Run("server error", func() {
		suite.urlUseCaseMock.
			On("ResolveShortCode", mock.Anything, "abc123").
			Once().
			Return(nil, errors.New("unknown error"))

		suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("status", "error")
	})

	suite.Run("success", func() {
		url := suite.url()
		url.AccessCount = 3

		suite.urlUseCaseMock.
			On("ResolveShortCode", mock.Anything, "abc123").
			Once().
			Return(url, nil)

		resp := suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.HasValue("shortCode", "abc123")
		resp.HasValue("url", "https://example.com")
		resp.NotContainsKey("accessCount")
	})
}

func (suite *HandlersTestSuite) TestModifyURL() {
	path := "/shorten/%s"

	suite.Run("malformed short code", func() {
		suite.e.PUT(fmt.Sprintf(path, "abc")).
			WithJSON(map[string]string{"url": "https://new-example.com"}).
			Expect().
			Status(http.StatusNotFound)
	})

	suite.Run("empty request body", func() {
		suite.e.PUT(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("message", "empty request body")
	})

	suite.Run("missing url", func() {
		suite.e.PUT(fmt.Sprintf(path, "abc123")).
			WithJSON(map[string]string{}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			Value("errors").Array().Value(0).Object().
			HasValue("field", "url")
	})

	suite.Run("url not found", func() {
		suite.urlUseCaseMock.
			On("ModifyURL", mock.Anything, "abc123", "https://new-example.com").
			Once().
			Return(nil, entity.ErrURLNotFound)

		suite.e.PUT(fmt.Sprintf(path, "abc123")).
			WithJSON(map[string]string{"url": "https://new-example.com"}).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", "error")
	})

	suite.Run("server error", func() {
		suite.urlUseCaseMock.
			On("ModifyURL", mock.Anything, "abc123", "https://new-example.com").
			Once().
			Return(nil, errors.New("unknown error"))

		suite.e.PUT(fmt.Sprintf(path, "abc123")).
			WithJSON(map[string]string{"url": "https://new-example.com"}).
			Expect().
			Status(http.StatusInternalServerError)
	})

	suite.Run("success", func() {
		url := suite.url()
		url.OriginalURL = "https://new-example.com"
		url.UpdatedAt = suite.now.Add(time.Minute)

		suite.urlUseCaseMock.
			On("ModifyURL", mock.Anything, "abc123", "https://new-example.com").
			Once().
			Return(url, nil)

		resp := suite.e.PUT(fmt.Sprintf(path, "abc123")).
			WithJSON(map[string]string{"url": "https://new-example.com"}).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.HasValue("url", "https://new-example.com")
		resp.HasValue("createdAt", "2024-10-01T12:00:00Z")
		resp.HasValue("updatedAt", "2024-10-01T12:01:00Z")
	})
}

func (suite *HandlersTestSuite) TestDeactivateURL() {
	path := "/shorten/%s"

	suite.Run("url not found", func() {
		suite.urlUseCaseMock.
			On("DeactivateURL", mock.Anything, "abc123").
			Once().
			Return(entity.ErrURLNotFound)

		suite.e.DELETE(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", "error")
	})

	suite.Run("server error", func() {
		suite.urlUseCaseMock.
			On("DeactivateURL", mock.Anything, "abc123").
			Once().
			Return(errors.New("unknown error"))

		suite.e.DELETE(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusInternalServerError)
	})

	suite.Run("success", func() {
		suite.urlUseCaseMock.
			On("DeactivateURL", mock.Anything, "abc123").
			Once().
			Return(nil)

		suite.e.DELETE(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusNoContent).
			NoContent()
	})
}

func (suite *HandlersTestSuite) TestGetURLStats() {
	path := "/shorten/%s/stats"

	suite.Run("url not found", func() {
		suite.urlUseCaseMock.
			On("GetURLStats", mock.Anything, "abc123").
			Once().
			Return(nil, entity.ErrURLNotFound)

		suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusNotFound)
	})

	suite.Run("server error", func() {
		suite.urlUseCaseMock.
			On("GetURLStats", mock.Anything, "abc123").
			Once().
			Return(nil, errors.New("unknown error"))

		suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusInternalServerError)
	})

	suite.Run("success", func() {
		url := suite.url()
		url.AccessCount = 10

		suite.urlUseCaseMock.
			On("GetURLStats", mock.Anything, "abc123").
			Once().
			Return(url, nil)

		resp := suite.e.GET(fmt.Sprintf(path, "abc123")).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		resp.HasValue("id", "0b9f3a4e-6a2b-4a57-9a52-3f1f2b8c1d11")
		resp.HasValue("shortCode", "abc123")
		resp.HasValue("url", "https://example.com")
		resp.HasValue("accessCount", 10)
		resp.ContainsKey("createdAt")
		resp.ContainsKey("updatedAt")
	})
}

func (suite *HandlersTestSuite) TestMetrics() {
	suite.Run("requests are labeled by route", func() {
		suite.urlUseCaseMock.
			On("ResolveShortCode", mock.Anything, "abc123").
			Once().
			Return(suite.url(), nil)

		suite.e.GET("/shorten/abc123").
			Expect().
			Status(http.StatusOK)

		suite.Equal(1, testutil.CollectAndCount(suite.metrics.RequestsTotal))
		suite.Equal(1, testutil.CollectAndCount(suite.metrics.RequestDuration))

		suite.e.GET("/metrics").
			Expect().
			Status(http.StatusOK).
			Body().Contains("url_shortener_http_requests_total")
	})
}

func TestHandlers(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
