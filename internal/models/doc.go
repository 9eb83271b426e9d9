// Package models defines the domain entities for the pomodoro playlist generator.
//
// The central types are:
//   - [Track] : a saved Spotify track annotated with audio features (key, mode, energy)
//   - [Library] : a user's complete saved-track set plus the revalidation token
//     returned by the saved-tracks endpoint, persisted as one cache record
//   - [AudioFeature] : the per-track analysis slice merged into tracks positionally
//   - [Strategy] : the key-modulation rule applied between accepted tracks
//
// Keys 0..11 map to pitch classes C..B and mode 0/1 to Major/minor. Unknown
// values are carried as -1 sentinels, and a missing energy analysis is the
// out-of-range sentinel [EnergyUnknown].
package models
