// Package tasks orchestrates the playlist generation pipeline with real-time progress reporting.
//
// # Core Operations
//
// An [Engine] holds the long-lived dependencies (Spotify client, cache
// repositories, fetch tuning) and creates one [Session] per run:
//
//  1. [Engine.Authenticate] : Establish an authenticated session
//     - Reuses the cached access token when it has not expired
//     - Otherwise exchanges an authorization code for a fresh token
//     - Fetches the user profile and loads the cached library
//
//  2. [Session.LoadTracks] : Fetch and cache the saved-track library
//     - Pulls saved-track pages and audio-feature batches concurrently
//     - Revalidates against the cached library via conditional requests
//     - Merges features into tracks positionally and persists the result
//
//  3. [Session.Generate] : Assemble and publish a playlist
//     - Runs the seeded track selector over the cached library
//     - Finds or creates the target playlist by name
//     - Replaces its contents with the selected track sequence
//
// # Progress Reporting
//
// All operations send [ProgressUpdate] values over a caller-supplied channel.
// Updates use select with default so reporting never blocks execution.
package tasks
