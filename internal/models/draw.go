// Package models defines the core domain entities for the lottoracle application.
// These models represent lottery games, historical draws, recommended number sets
// and the analysis result handed back to callers.
// All models include built-in validation to ensure data integrity throughout the application.
//
// Terminology (matching Taiwan Lottery's own naming):
//   - Period: the draw identifier (期別), unique and increasing over time.
//   - Main numbers: the primary selection of a draw (獎號).
//   - Special number: the extra number drawn separately (特別號 / 第二區).
package models

import (
	"errors"
	"fmt"
	"time"
)

// MaxNumber is the largest number of the Lotto 6/49 pool.
const MaxNumber = 49

// MainCount is the number of main numbers in a Lotto 6/49 draw or recommended set.
const MainCount = 6

// Game describes the number rules of a lottery game.
type Game struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MainCount  int    `json:"main_count"`
	MainMax    int    `json:"main_max"`
	SpecialMax int    `json:"special_max"` // 0 when the game has no special number
	// SpecialDistinct requires the special number to differ from every main number.
	// False for games that draw the special number from a separate pool.
	SpecialDistinct bool `json:"special_distinct"`
}

var (
	// Lotto649 is 大樂透: 6 of 49 plus a special number from the same pool.
	Lotto649 = Game{ID: "lotto649", Name: "大樂透", MainCount: 6, MainMax: 49, SpecialMax: 49, SpecialDistinct: true}
	// SuperLotto638 is 威力彩: 6 of 38 in the first zone plus 1 of 8 in the second zone.
	SuperLotto638 = Game{ID: "superlotto638", Name: "威力彩", MainCount: 6, MainMax: 38, SpecialMax: 8}
	// Daily539 is 今彩539: 5 of 39 without a special number.
	Daily539 = Game{ID: "daily539", Name: "今彩539", MainCount: 5, MainMax: 39}
)

// Games lists every supported game.
func Games() []Game {
	return []Game{Lotto649, SuperLotto638, Daily539}
}

// GameByID looks up a supported game.
func GameByID(id string) (Game, bool) {
	for _, g := range Games() {
		if g.ID == id {
			return g, true
		}
	}
	return Game{}, false
}

// HasSpecial reports whether the game draws a special number.
func (g Game) HasSpecial() bool {
	return g.SpecialMax > 0
}

// WindowStart returns the first instant of an analysis window of the given
// number of calendar months ending with the month of now. months < 1 is
// treated as 1.
func WindowStart(now time.Time, months int) time.Time {
	if months < 1 {
		months = 1
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -(months - 1), 0)
}

// DrawRecord is one historical draw. It is immutable once fetched;
// use NewDrawRecord to build one so the shape is checked at the boundary.
type DrawRecord struct {
	Game     string    `json:"game"`
	Period   int64     `json:"period"`
	DrawDate time.Time `json:"draw_date"`
	Numbers  []int     `json:"numbers"`
	Special  int       `json:"special_number,omitempty"`
}

// NewDrawRecord validates and builds a draw record for the given game.
// The numbers slice is copied so later changes by the caller do not leak in.
func NewDrawRecord(game Game, period int64, drawDate time.Time, numbers []int, special int) (DrawRecord, error) {
	d := DrawRecord{
		Game:     game.ID,
		Period:   period,
		DrawDate: drawDate,
		Numbers:  append([]int(nil), numbers...),
		Special:  special,
	}
	if err := d.ValidateFor(game); err != nil {
		return DrawRecord{}, err
	}
	return d, nil
}

// Validate checks the record against the rules of its own game.
func (d *DrawRecord) Validate() error {
	game, ok := GameByID(d.Game)
	if !ok {
		return fmt.Errorf("unknown game %q", d.Game)
	}
	return d.ValidateFor(game)
}

// ValidateFor checks the record against the rules of game.
func (d *DrawRecord) ValidateFor(game Game) error {
	if d.Period <= 0 {
		return errors.New("period must be positive")
	}
	if d.DrawDate.IsZero() {
		return errors.New("draw date must be set")
	}
	if len(d.Numbers) != game.MainCount {
		return fmt.Errorf("expected %d main numbers, got %d", game.MainCount, len(d.Numbers))
	}
	seen := make(map[int]bool, len(d.Numbers))
	for _, n := range d.Numbers {
		if n < 1 || n > game.MainMax {
			return fmt.Errorf("main number %d out of range 1-%d", n, game.MainMax)
		}
		if seen[n] {
			return fmt.Errorf("duplicate main number %d", n)
		}
		seen[n] = true
	}
	if !game.HasSpecial() {
		if d.Special != 0 {
			return fmt.Errorf("%s has no special number", game.ID)
		}
		return nil
	}
	if d.Special < 1 || d.Special > game.SpecialMax {
		return fmt.Errorf("special number %d out of range 1-%d", d.Special, game.SpecialMax)
	}
	if game.SpecialDistinct && seen[d.Special] {
		return fmt.Errorf("special number %d repeats a main number", d.Special)
	}
	return nil
}
