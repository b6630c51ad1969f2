// Package predict runs one analysis: load draws, count frequencies, ask the
// model, parse its answer and assemble the result.
//
// Failures of the collaborators never escape as errors. A missing history
// becomes an error result; a missing model answer becomes a successful result
// without recommended sets.
package predict

import (
	"context"
	"time"

	"github.com/rewired-gh/lottoracle/internal/frequency"
	"github.com/rewired-gh/lottoracle/internal/logger"
	"github.com/rewired-gh/lottoracle/internal/models"
	"github.com/rewired-gh/lottoracle/internal/prompt"
)

// User-visible messages.
const (
	MsgNoHistory        = "無法取得大樂透歷史資料"
	MsgModelUnavailable = "AI 預測服務暫時無法使用"
)

// DefaultMonths is the analysis window.
const DefaultMonths = 6

// DrawSource fetches recent draws of a game.
type DrawSource interface {
	FetchRecent(ctx context.Context, game models.Game, months int, now time.Time) ([]models.DrawRecord, error)
}

// Generator turns a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Store persists draws and results.
type Store interface {
	SaveDraws(draws []models.DrawRecord) error
	GetDraws(game string, since time.Time) ([]models.DrawRecord, error)
	SavePrediction(result *models.AnalysisResult) error
}

// Notifier publishes a finished result.
type Notifier interface {
	Send(result *models.AnalysisResult) error
}

// Service orchestrates an analysis run. Generator, store and notifier are optional.
type Service struct {
	source    DrawSource
	generator Generator
	store     Store
	notifier  Notifier
	months    int
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator sets the model client.
func WithGenerator(g Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithStore sets the persistence layer.
func WithStore(st Store) Option {
	return func(s *Service) { s.store = st }
}

// WithNotifier sets where successful results are pushed.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMonths sets the analysis window in months.
func WithMonths(months int) Option {
	return func(s *Service) {
		if months > 0 {
			s.months = months
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service reading draws from source.
func New(source DrawSource, opts ...Option) *Service {
	s := &Service{
		source: source,
		months: DefaultMonths,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Draws loads the analysis window of game, falling back to stored draws when
// the fetch fails or returns nothing.
func (s *Service) Draws(ctx context.Context, game models.Game) []models.DrawRecord {
	now := s.now()
	draws, err := s.source.FetchRecent(ctx, game, s.months, now)
	if err != nil {
		logger.Warn("Failed to fetch %s draws: %v", game.ID, err)
	}
	if len(draws) > 0 {
		if s.store != nil {
			if err := s.store.SaveDraws(draws); err != nil {
				logger.Warn("Failed to cache %d draws: %v", len(draws), err)
			}
		}
		return draws
	}

	if s.store == nil {
		return nil
	}
	cached, err := s.store.GetDraws(game.ID, models.WindowStart(now, s.months))
	if err != nil {
		logger.Warn("Failed to read cached %s draws: %v", game.ID, err)
		return nil
	}
	if len(cached) > 0 {
		logger.Info("Using %d cached %s draws", len(cached), game.ID)
	}
	return cached
}

// Predict runs a full Lotto 6/49 analysis.
func (s *Service) Predict(ctx context.Context) *models.AnalysisResult {
	return s.Analyze(ctx, s.Draws(ctx, models.Lotto649))
}

// Analyze runs the Lotto 6/49 pipeline on draws that were already loaded.
func (s *Service) Analyze(ctx context.Context, draws []models.DrawRecord) *models.AnalysisResult {
	game := models.Lotto649
	start := time.Now()

	if len(draws) == 0 {
		res := Failed(game, MsgNoHistory)
		s.persist(res)
		return res
	}
	logger.Info("Analyzing %d %s draws", len(draws), game.ID)

	a := frequency.Analyze(draws)
	raw := s.generate(ctx, prompt.Compose(draws, a))

	res := Assemble(game, draws, a, raw)
	if raw == "" {
		res.Notice = MsgModelUnavailable
	}
	logger.Info("Model answer: %d bytes, %d recommended sets", len(raw), len(res.RecommendedSets))
	for i := range res.RecommendedSets {
		if err := res.RecommendedSets[i].Validate(); err != nil {
			logger.Warn("Recommended set %d (%s) breaks the draw rules: %v", i+1, res.RecommendedSets[i].Label, err)
		}
	}

	s.persist(res)
	if s.notifier != nil && len(res.RecommendedSets) > 0 {
		if err := s.notifier.Send(res); err != nil {
			logger.Warn("Failed to send prediction %s: %v", res.ID, err)
		}
	}

	logger.Debug("Prediction %s completed in %v", res.ID, time.Since(start))
	return res
}

func (s *Service) generate(ctx context.Context, text string) string {
	if s.generator == nil {
		logger.Warn("No model client configured, skipping generation")
		return ""
	}
	raw, err := s.generator.Generate(ctx, text)
	if err != nil {
		logger.Error("Model generation failed: %v", err)
		return ""
	}
	return raw
}

func (s *Service) persist(res *models.AnalysisResult) {
	if s.store == nil {
		return
	}
	if err := s.store.SavePrediction(res); err != nil {
		logger.Warn("Failed to save prediction %s: %v", res.ID, err)
	}
}
