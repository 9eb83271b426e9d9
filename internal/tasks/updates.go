package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Authenticate Phase = iota
	FetchTracks
	FetchFeatures
	SelectTracks
	PublishPlaylist
)

func (p Phase) String() string {
	switch p {
	case Authenticate:
		return "authenticate"
	case FetchTracks:
		return "fetch_tracks"
	case FetchFeatures:
		return "fetch_features"
	case SelectTracks:
		return "select_tracks"
	case PublishPlaylist:
		return "publish_playlist"
	default:
		return ""
	}
}

func authenticatingUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Authenticate,
		Step:    1,
		Total:   2,
		Message: "Authenticating with Spotify...",
	}
}

func authenticatedUpdate(displayName string, cachedTracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Authenticate,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Authenticated as %s (%d cached tracks)", displayName, cachedTracks),
	}
}

func fetchUpdate(phase Phase, text string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Message: text,
	}
}

func cachedLibraryUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Message: fmt.Sprintf("Library unchanged, using %d cached tracks", count),
	}
}

func libraryLoadedUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFeatures,
		Message: fmt.Sprintf("Loaded %d tracks with audio features", count),
	}
}

func selectionUpdate(step int, text string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SelectTracks,
		Step:    step,
		Message: text,
	}
}

func publishingUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PublishPlaylist,
		Step:    1,
		Total:   2,
		Message: fmt.Sprintf("Publishing playlist: %s...", name),
	}
}

func publishedUpdate(result *GenerateResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PublishPlaylist,
		Step:    2,
		Total:   2,
		Message: fmt.Sprintf("Published %s: %d tracks, %s of %s", result.PlaylistName, result.TrackCount, formatDuration(result.ActualDurationMS), formatDuration(result.TargetDurationMS)),
		Data:    result,
	}
}

// formatDuration renders milliseconds as m:ss for progress messages.
func formatDuration(ms int) string {
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
