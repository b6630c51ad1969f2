package models

import (
	"errors"
	"time"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// NumberCount is one row of a frequency table.
type NumberCount struct {
	Number int `json:"number"`
	Count  int `json:"count"`
}

// DateRange is the span of draw dates covered by an analysis.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Statistics summarizes the draws an analysis was built from.
type Statistics struct {
	TotalPeriods         int           `json:"total_periods"`
	DateRange            DateRange     `json:"date_range"`
	LatestPeriod         int64         `json:"latest_period"`
	OldestPeriod         int64         `json:"oldest_period"`
	HotNumbers           []NumberCount `json:"hot_numbers"`
	ColdNumbers          []NumberCount `json:"cold_numbers"`
	NumberFrequency      []NumberCount `json:"number_frequency"`
	SpecialFrequency     []NumberCount `json:"special_frequency"`
	NeverAppeared        []int         `json:"never_appeared"`
	NeverAppearedSpecial []int         `json:"never_appeared_special"`
}

// AnalysisResult is the terminal object of one analysis run.
type AnalysisResult struct {
	ID              string           `json:"id"`
	Game            string           `json:"game"`
	Status          string           `json:"status"`
	Statistics      *Statistics      `json:"data,omitempty"`
	AIPrediction    string           `json:"ai_prediction,omitempty"`
	RecommendedSets []RecommendedSet `json:"recommended_sets"`
	Notice          string           `json:"notice,omitempty"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Validate checks that the result is internally consistent.
func (a *AnalysisResult) Validate() error {
	if a.ID == "" {
		return errors.New("result ID must not be empty")
	}
	switch a.Status {
	case StatusSuccess:
		if a.Statistics == nil {
			return errors.New("successful result must carry statistics")
		}
	case StatusError:
		if a.Error == "" {
			return errors.New("error result must carry an error message")
		}
	default:
		return errors.New("status must be 'success' or 'error'")
	}
	if a.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	return nil
}
