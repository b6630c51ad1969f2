package models

import (
	"errors"
	"fmt"
)

// RecommendedSet is one number combination recovered from the model's answer.
type RecommendedSet struct {
	Label   string `json:"type"`
	Numbers []int  `json:"regular_numbers"`
	Special int    `json:"special_number"`
	Reason  string `json:"reason,omitempty"`
}

// Validate checks the full Lotto 6/49 rule: six distinct numbers in range and a
// special number in range that is not one of them.
//
// The response parser deliberately does not call this; it only requires six
// numbers per bracket group. Consumers that need the strict rule re-validate here.
func (r *RecommendedSet) Validate() error {
	if len(r.Numbers) != MainCount {
		return fmt.Errorf("expected %d numbers, got %d", MainCount, len(r.Numbers))
	}
	seen := make(map[int]bool, MainCount)
	for _, n := range r.Numbers {
		if n < 1 || n > MaxNumber {
			return fmt.Errorf("number %d out of range 1-%d", n, MaxNumber)
		}
		if seen[n] {
			return fmt.Errorf("duplicate number %d", n)
		}
		seen[n] = true
	}
	if r.Special < 1 || r.Special > MaxNumber {
		return fmt.Errorf("special number %d out of range 1-%d", r.Special, MaxNumber)
	}
	if seen[r.Special] {
		return errors.New("special number must not repeat a main number")
	}
	return nil
}
