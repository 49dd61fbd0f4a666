// Package speech defines the boundary to the platform speech engine.
// The pipeline hands over plain utterance text; playback mechanics,
// audio focus, and voices belong to the surrounding application.
package speech

import (
	"context"
	"log/slog"
)

// Speaker accepts plain utterance text. No structured markup.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// LogSpeaker writes utterances to the log instead of an audio device.
// The default sink for headless deployments.
type LogSpeaker struct{}

func (LogSpeaker) Speak(_ context.Context, text string) error {
	slog.Info("[Speech] Speaking", "text", text)
	return nil
}
