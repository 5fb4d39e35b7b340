package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/mwhitford/reddit-profiler/ingest"
	"github.com/mwhitford/reddit-profiler/models"
	"github.com/mwhitford/reddit-profiler/pipeline"
	"github.com/mwhitford/reddit-profiler/stats"
	"github.com/mwhitford/reddit-profiler/utils"
)

// server exposes the analysis pipeline as a JSON API for the presentation
// layer. The lookup pipeline is guarded by runMu: only one run may touch
// the cache at a time, concurrent requests get a 409.
type server struct {
	config   *utils.Config
	cache    cacheReader
	pipeline *pipeline.Pipeline
	log      *logrus.Logger
	runMu    sync.Mutex
}

// cacheReader is the slice of the cache the handlers need directly.
type cacheReader interface {
	SkipSet() map[string]struct{}
	Size() int
}

func newServer(config *utils.Config, cache cacheReader, p *pipeline.Pipeline, log *logrus.Logger) *server {
	return &server{
		config:   config,
		cache:    cache,
		pipeline: p,
		log:      log,
	}
}

// start runs the echo server until the context is cancelled.
func (s *server) start(ctx context.Context) {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(10),
				Burst:     5,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded, please try again later",
			})
		},
	}))

	e.POST("/api/analyze/subreddit", func(c echo.Context) error {
		return s.handleAnalyze(c, models.ModeSubreddit)
	})
	e.POST("/api/analyze/user", func(c echo.Context) error {
		return s.handleAnalyze(c, models.ModeUser)
	})
	e.POST("/api/overlap", s.handleOverlap)
	e.POST("/api/creation-years", s.handleCreationYears)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	go func() {
		serverAddr := fmt.Sprintf(":%d", s.config.Server.Port)
		s.log.WithField("port", s.config.Server.Port).Info("Starting API server")
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Fatal("API server failed")
		}
	}()

	<-ctx.Done()
	s.log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		s.log.WithError(err).Error("API server shutdown failed")
	}
}

type analyzeRequest struct {
	PostsFile    string `json:"posts_file"`
	CommentsFile string `json:"comments_file"`
	Year         int    `json:"year"`
	Timezone     string `json:"timezone"`
}

func (s *server) handleAnalyze(c echo.Context, mode models.AnalysisMode) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	if req.Timezone == "" {
		req.Timezone = s.config.Analysis.DefaultTimezone
	}
	if req.Year == 0 {
		req.Year = time.Now().Year()
	}

	zone, err := stats.ZoneByName(req.Timezone)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	posts, err := ingest.ParseFile(req.PostsFile, s.log)
	if err != nil {
		return s.requestError(c, err)
	}
	comments, err := ingest.ParseFile(req.CommentsFile, s.log)
	if err != nil {
		return s.requestError(c, err)
	}

	recordSet, err := ingest.ValidatePair(posts, comments, mode, s.log)
	if err != nil {
		return s.requestError(c, err)
	}

	agg := stats.Aggregate(recordSet, req.Year, zone, s.log)
	return c.JSON(http.StatusOK, map[string]any{
		"analysis": agg,
		"files":    recordSet.Files,
	})
}

type overlapRequest struct {
	Files  []string `json:"files"`
	Lookup bool     `json:"lookup"`
}

func (s *server) handleOverlap(c echo.Context) error {
	var req overlapRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	lists := make([]*models.UsernameList, 0, len(req.Files))
	for _, path := range req.Files {
		list, err := ingest.LoadUsernameList(path)
		if err != nil {
			return s.requestError(c, err)
		}
		lists = append(lists, list)
	}

	result, err := stats.Overlap(lists)
	if err != nil {
		return s.requestError(c, err)
	}

	if req.Lookup && len(result.Entries) > 0 {
		if !s.runMu.TryLock() {
			return c.JSON(http.StatusConflict, map[string]string{
				"error": "a lookup pipeline run is already in progress",
			})
		}
		defer s.runMu.Unlock()

		names := make([]string, 0, len(result.Entries))
		for _, entry := range result.Entries {
			names = append(names, entry.Username)
		}
		records, err := s.pipeline.Run(c.Request().Context(), names, s.logProgress)
		if err != nil && !errors.Is(err, context.Canceled) {
			return c.JSON(http.StatusInternalServerError, errorBody(err))
		}
		pipeline.EnrichOverlap(result, records)
	}

	return c.JSON(http.StatusOK, result)
}

type creationYearsRequest struct {
	File     string `json:"file"`
	SkipBots bool   `json:"skip_bots"`
}

func (s *server) handleCreationYears(c echo.Context) error {
	var req creationYearsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	list, err := ingest.LoadUsernameList(req.File)
	if err != nil {
		return s.requestError(c, err)
	}

	names := ingest.FilterUsernames(list.Names, req.SkipBots, s.cache.SkipSet())
	if len(names) == 0 {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{
			"error": "no usernames left after applying skip rules",
		})
	}

	if !s.runMu.TryLock() {
		return c.JSON(http.StatusConflict, map[string]string{
			"error": "a lookup pipeline run is already in progress",
		})
	}
	defer s.runMu.Unlock()

	var progress []models.PageProgress
	records, err := s.pipeline.Run(c.Request().Context(), names, func(p models.PageProgress) {
		s.logProgress(p)
		progress = append(progress, p)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusInternalServerError, errorBody(err))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"records":      records,
		"distribution": pipeline.YearDistribution(records),
		"progress":     progress,
		"cache_size":   s.cache.Size(),
	})
}

func (s *server) logProgress(p models.PageProgress) {
	s.log.WithFields(logrus.Fields{
		"page":        p.Page,
		"total_pages": p.TotalPages,
		"skip_listed": p.Summary.SkipListed,
		"cache_hits":  p.Summary.CacheHits,
		"fetched":     p.Summary.Fetched,
		"errors":      p.Summary.Errors,
	}).Info("Pipeline progress")
}

// requestError maps the validation taxonomy to 422 responses with the
// offending values named; anything else is a 500.
func (s *server) requestError(c echo.Context, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	var (
		emptyFile *ingest.EmptyOrUnparsableError
		roleErr   *ingest.RoleMismatchError
		subErr    *ingest.SubredditMismatchError
		userErr   *ingest.UserMismatchError
		emptyList *ingest.EmptyUsernameListError
		countErr  *stats.InvalidFileCountError
	)
	switch {
	case errors.As(err, &emptyFile),
		errors.As(err, &roleErr),
		errors.As(err, &subErr),
		errors.As(err, &userErr),
		errors.As(err, &emptyList),
		errors.As(err, &countErr):
		return c.JSON(http.StatusUnprocessableEntity, errorBody(err))
	}
	s.log.WithError(err).Error("Analysis request failed")
	return c.JSON(http.StatusInternalServerError, errorBody(err))
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
