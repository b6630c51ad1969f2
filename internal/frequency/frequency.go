// Package frequency counts how often each Lotto 6/49 number was drawn.
//
// Tables are built fresh for every analysis run and are plain values; nothing
// here keeps state between calls.
package frequency

import (
	"sort"

	"github.com/rewired-gh/lottoracle/internal/models"
)

// Table maps a number in 1..49 to its occurrence count. It also remembers the
// order in which numbers were first observed so rankings break ties the same
// way every time.
type Table struct {
	counts [models.MaxNumber + 1]int
	order  []int
}

func (t *Table) add(n int) {
	if n < 1 || n > models.MaxNumber {
		return
	}
	if t.counts[n] == 0 {
		t.order = append(t.order, n)
	}
	t.counts[n]++
}

// Count returns how often n was observed.
func (t Table) Count(n int) int {
	if n < 1 || n > models.MaxNumber {
		return 0
	}
	return t.counts[n]
}

// Total returns the sum of all counts.
func (t Table) Total() int {
	total := 0
	for _, c := range t.counts {
		total += c
	}
	return total
}

// Appeared returns the observed numbers in ascending order.
func (t Table) Appeared() []int {
	out := make([]int, 0, len(t.order))
	for n := 1; n <= models.MaxNumber; n++ {
		if t.counts[n] > 0 {
			out = append(out, n)
		}
	}
	return out
}

// NeverAppeared returns the numbers of 1..49 that were never observed, ascending.
func (t Table) NeverAppeared() []int {
	out := make([]int, 0, models.MaxNumber-len(t.order))
	for n := 1; n <= models.MaxNumber; n++ {
		if t.counts[n] == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Ranked returns the observed numbers by descending count. Ties keep the order
// in which the numbers were first encountered.
func (t Table) Ranked() []models.NumberCount {
	ranked := make([]models.NumberCount, len(t.order))
	for i, n := range t.order {
		ranked[i] = models.NumberCount{Number: n, Count: t.counts[n]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	return ranked
}

// Top returns the n most frequent entries of Ranked.
func (t Table) Top(n int) []models.NumberCount {
	ranked := t.Ranked()
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// Bottom returns the n least frequent entries of Ranked, in ranked order.
func (t Table) Bottom(n int) []models.NumberCount {
	ranked := t.Ranked()
	if n < len(ranked) {
		ranked = ranked[len(ranked)-n:]
	}
	return ranked
}

// Analysis holds the two frequency tables of one run and their complements.
type Analysis struct {
	Main                 Table
	Special              Table
	NeverAppeared        []int
	NeverAppearedSpecial []int
}

// Analyze counts main and special numbers over draws. Every record is visited
// exactly once; an empty input yields zero tables with every number never seen.
func Analyze(draws []models.DrawRecord) Analysis {
	var a Analysis
	for _, d := range draws {
		for _, n := range d.Numbers {
			a.Main.add(n)
		}
		a.Special.add(d.Special)
	}
	a.NeverAppeared = a.Main.NeverAppeared()
	a.NeverAppearedSpecial = a.Special.NeverAppeared()
	return a
}
