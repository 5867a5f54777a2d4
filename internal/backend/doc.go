// Package backend defines the audio device primitives the playback engine drives:
// PCM buffers, hardware voices with a small input queue, and a master gain.
// It ships a deterministic Fake used by tests and headless runs, and an oto/v3
// implementation for real output.
package backend
