// Package models defines the data structures shared by the dictation pipeline.
package models

import "time"

// TranscriptSegment is one event from a streaming transcription source.
// Interim segments (IsFinal=false) may still be revised by the source.
type TranscriptSegment struct {
	Text       string    `json:"text"`
	IsFinal    bool      `json:"isFinal"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence,omitempty"`
}

// RunningTranscript is the aggregated view of a dictation.
// Finalized is append-only; Pending holds the latest interim guess.
type RunningTranscript struct {
	Finalized string `json:"finalized"`
	Pending   string `json:"pending"`
}
