package predict

import (
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/lottoracle/internal/frequency"
	"github.com/rewired-gh/lottoracle/internal/models"
	"github.com/rewired-gh/lottoracle/internal/parser"
)

// TopN is how many hot and cold numbers the statistics report.
const TopN = 10

const dateLayout = "2006-01-02"

// Assemble combines draws, their frequency analysis and the raw model text into
// one result. The raw text is parsed here; an empty parse is still a success.
func Assemble(game models.Game, draws []models.DrawRecord, a frequency.Analysis, rawText string) *models.AnalysisResult {
	return &models.AnalysisResult{
		ID:              uuid.New().String(),
		Game:            game.ID,
		Status:          models.StatusSuccess,
		Statistics:      BuildStatistics(draws, a),
		AIPrediction:    rawText,
		RecommendedSets: parser.Parse(rawText),
		CreatedAt:       time.Now(),
	}
}

// BuildStatistics reduces the analysis to what callers see: hot and cold
// top-N lists, the full ranked tables and the period range.
func BuildStatistics(draws []models.DrawRecord, a frequency.Analysis) *models.Statistics {
	stats := &models.Statistics{
		TotalPeriods:         len(draws),
		HotNumbers:           a.Main.Top(TopN),
		ColdNumbers:          a.Main.Bottom(TopN),
		NumberFrequency:      a.Main.Ranked(),
		SpecialFrequency:     a.Special.Ranked(),
		NeverAppeared:        a.NeverAppeared,
		NeverAppearedSpecial: a.NeverAppearedSpecial,
	}
	if len(draws) == 0 {
		return stats
	}

	latest, oldest := draws[0], draws[0]
	for _, d := range draws[1:] {
		if d.Period > latest.Period {
			latest = d
		}
		if d.Period < oldest.Period {
			oldest = d
		}
	}
	stats.LatestPeriod = latest.Period
	stats.OldestPeriod = oldest.Period
	stats.DateRange = models.DateRange{
		Start: oldest.DrawDate.Format(dateLayout),
		End:   latest.DrawDate.Format(dateLayout),
	}
	return stats
}

// Failed builds an error result.
func Failed(game models.Game, msg string) *models.AnalysisResult {
	return &models.AnalysisResult{
		ID:              uuid.New().String(),
		Game:            game.ID,
		Status:          models.StatusError,
		RecommendedSets: []models.RecommendedSet{},
		Error:           msg,
		CreatedAt:       time.Now(),
	}
}
