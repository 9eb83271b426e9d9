// Package selector implements greedy assembly of a fixed-duration playlist.
//
// Selection fills one slot at a time: the candidate pool is reshuffled, the
// first candidate satisfying every constraint is accepted, and the target
// key/mode advance according to the modulation strategy. The loop ends the
// first time no candidate fits, so an under-filled playlist is a valid
// outcome rather than an error.
//
// The selector is pure: it never mutates the input pool, performs no I/O, and
// produces identical output for identical input and an identically seeded
// random source.
package selector

import (
	"fmt"
	"math/rand"

	"github.com/pomokey/pomokey/internal/models"
)

// Request carries the constraints for one generation run.
type Request struct {
	Key              int // starting key, or models.Any
	Mode             int // starting mode, or models.Any
	Strategy         models.Strategy
	ToggleMajorMinor bool
	TargetDurationMS int
	MinTrackMS       int
	MaxTrackMS       int
	MinEnergy        float64
	MaxEnergy        float64
}

// Pick records one accepted track along with the key/mode target it satisfied.
type Pick struct {
	URI        string
	DurationMS int
	Key        int
	Mode       int
}

// Result is the assembled track sequence.
type Result struct {
	URIs       []string
	Picks      []Pick
	DurationMS int
}

// KeyLabel names a key target, using "ALL" for the unconstrained sentinel.
func KeyLabel(key int) string {
	if key < 0 || key >= len(models.KeyNames) {
		return "ALL"
	}
	return models.KeyNames[key]
}

// ModeLabel names a mode target, using "ALL" for the unconstrained sentinel.
func ModeLabel(mode int) string {
	if mode < 0 || mode >= len(models.ModeNames) {
		return "ALL"
	}
	return models.ModeNames[mode]
}

// Build assembles a playlist from the candidate pool.
//
// Each slot reshuffles the pool to randomize search order, then scans for the
// first unused candidate that fits the duration, key, mode, and energy
// constraints without pushing the accumulated duration past the target.
// notify, when non-nil, receives the key/mode label of each acceptance.
func Build(rng *rand.Rand, pool []models.Track, req Request, notify func(text string)) Result {
	candidates := make([]models.Track, len(pool))
	copy(candidates, pool)
	for i := range candidates {
		candidates[i].Used = false
	}

	key := req.Key
	mode := req.Mode
	toggle := false

	var res Result
	for fillSlot(rng, candidates, req, &res, &key, &mode, &toggle, notify) {
	}
	return res
}

// fillSlot attempts to accept exactly one more track. Returns false when no
// candidate qualifies, which terminates selection.
func fillSlot(rng *rand.Rand, candidates []models.Track, req Request, res *Result, key, mode *int, toggle *bool, notify func(string)) bool {
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	if req.Strategy == models.StrategyExplicit {
		km := models.ExplicitSequence[len(res.URIs)%len(models.ExplicitSequence)]
		*key, *mode = km.Key, km.Mode
	}

	for i := range candidates {
		t := &candidates[i]
		if t.Used {
			continue
		}
		if t.DurationMS < req.MinTrackMS || t.DurationMS > req.MaxTrackMS {
			continue
		}
		if res.DurationMS+t.DurationMS > req.TargetDurationMS {
			continue
		}
		if *key != models.Any && t.Key != *key {
			continue
		}
		if *mode != models.Any && t.Mode != *mode {
			continue
		}
		if t.Energy < req.MinEnergy || t.Energy > req.MaxEnergy {
			continue
		}

		t.Used = true
		res.URIs = append(res.URIs, t.URI)
		res.Picks = append(res.Picks, Pick{URI: t.URI, DurationMS: t.DurationMS, Key: *key, Mode: *mode})
		res.DurationMS += t.DurationMS

		if notify != nil {
			notify(fmt.Sprintf("%s %s", KeyLabel(*key), ModeLabel(*mode)))
		}

		modulate(req, key, mode, toggle)
		return true
	}

	return false
}

// modulate advances the key/mode targets after an acceptance.
//
// With toggle modulation enabled, acceptances alternate between applying the
// strategy's key shift and flipping Major/minor; with it disabled the shift
// applies every time. The explicit strategy shifts nothing here since its
// targets are overwritten per slot.
func modulate(req Request, key, mode *int, toggle *bool) {
	if req.ToggleMajorMinor {
		if *toggle && (*mode == 0 || *mode == 1) {
			*mode = 1 - *mode
		}
		*toggle = !*toggle
	}

	if !req.ToggleMajorMinor || *toggle {
		switch req.Strategy {
		case models.StrategyPlusFive:
			*key = (*key + 5) % 12
		case models.StrategyPlusSix:
			*key = (*key + 6) % 12
		}
	}
}
