package models

import (
	"fmt"
	"strings"
)

// Sentinel values for absent audio features and unconstrained request fields.
const (
	KeyUnknown  = -1
	ModeUnknown = -1
	Any         = -1

	// EnergyUnknown marks a track whose analysis was null in the
	// audio-features response. It sits far outside [0, 1] so energy range
	// filters always reject it.
	EnergyUnknown = 1000.0
)

// KeyNames maps pitch classes 0..11 to display names.
var KeyNames = []string{"C", "C#", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

// ModeNames maps mode values to display names.
var ModeNames = []string{"Major", "minor"}

// Track is one saved track with the audio features used for selection.
//
// Key, Mode, and Energy are populated by a separate audio-features pass and
// merged positionally: the feature response for a batch of ids lands at the
// same offsets the ids were taken from. Used is transient selection state and
// never persisted.
type Track struct {
	ID         string  `json:"id"`
	URI        string  `json:"uri"`
	DurationMS int     `json:"duration_ms"`
	Key        int     `json:"key"`
	Mode       int     `json:"mode"`
	Energy     float64 `json:"energy"`
	Used       bool    `json:"-"`
}

// KeyName returns the display name for the track's key and mode, e.g. "Eb minor".
func (t Track) KeyName() string {
	if t.Key < 0 || t.Key >= len(KeyNames) || t.Mode < 0 || t.Mode >= len(ModeNames) {
		return "unknown"
	}
	return fmt.Sprintf("%s %s", KeyNames[t.Key], ModeNames[t.Mode])
}

// AudioFeature is the slice of a track's audio analysis consumed by the selector.
type AudioFeature struct {
	Key    int     `json:"key"`
	Mode   int     `json:"mode"`
	Energy float64 `json:"energy"`
}

// Apply merges a feature into the track. A nil feature means the analysis was
// absent and the sentinels are stored instead.
func (t *Track) Apply(f *AudioFeature) {
	if f == nil {
		t.Key = KeyUnknown
		t.Mode = ModeUnknown
		t.Energy = EnergyUnknown
		return
	}
	t.Key = f.Key
	t.Mode = f.Mode
	t.Energy = f.Energy
}

// Library is the persisted cache record for one user: the full ordered track
// set and the revalidation token (ETag) from the saved-tracks resource.
type Library struct {
	Tracks []Track `json:"tracks"`
	ETag   string  `json:"etag"`
}

// Strategy selects how the target key shifts after each accepted track.
type Strategy int

const (
	StrategyPlusFive Strategy = iota // key advances +5 semitones per acceptance
	StrategyPlusSix                  // key advances +6 semitones per acceptance
	StrategyNone                     // key stays fixed
	StrategyExplicit                 // key/mode follow ExplicitSequence per slot
)

var strategyNames = []string{"+5", "+6", "+0", "explicit"}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return "unknown"
	}
	return strategyNames[s]
}

// ParseStrategy resolves a strategy from its display name.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", name)
}

// KeyMode is one entry of the explicit modulation sequence.
type KeyMode struct {
	Key  int
	Mode int
}

// ExplicitSequence is the fixed repeating key/mode progression used by
// [StrategyExplicit], indexed by the number of tracks already chosen.
var ExplicitSequence = mustParseSequence(
	"E minor", "E minor", "C Major", "C minor", "E Major",
)

func mustParseSequence(names ...string) []KeyMode {
	seq := make([]KeyMode, len(names))
	for i, name := range names {
		km, err := ParseKeyMode(name)
		if err != nil {
			panic(err)
		}
		seq[i] = km
	}
	return seq
}

// ParseKeyMode parses a "<key> <mode>" display name such as "C# minor".
func ParseKeyMode(name string) (KeyMode, error) {
	parts := strings.SplitN(name, " ", 2)
	if len(parts) != 2 {
		return KeyMode{}, fmt.Errorf("invalid key/mode name %q", name)
	}

	km := KeyMode{Key: -1, Mode: -1}
	for i, k := range KeyNames {
		if k == parts[0] {
			km.Key = i
			break
		}
	}
	for i, m := range ModeNames {
		if m == parts[1] {
			km.Mode = i
			break
		}
	}

	if km.Key == -1 || km.Mode == -1 {
		return KeyMode{}, fmt.Errorf("invalid key/mode name %q", name)
	}
	return km, nil
}
