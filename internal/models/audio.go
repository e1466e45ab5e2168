package models

import "time"

// AudioClip is a complete recording handed to a fallback transcriber.
type AudioClip struct {
	Data         []byte
	MIMEType     string // e.g. "audio/wav", "audio/webm"
	SampleRateHz int    // zero when the container carries it
	LanguageCode string // BCP-47 hint, e.g. "en-US"
}

// Empty reports whether the clip carries no audio.
func (c AudioClip) Empty() bool {
	return len(c.Data) == 0
}

// PCMDuration estimates the length of 16-bit mono PCM audio. It returns zero
// when the sample rate is unknown.
func (c AudioClip) PCMDuration() time.Duration {
	if c.SampleRateHz <= 0 {
		return 0
	}
	samples := len(c.Data) / 2
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRateHz)
}
