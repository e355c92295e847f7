// Package tts turns text into spoken audio files.
package tts

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	htgotts "github.com/hegedustibor/htgo-tts"
)

// ErrEmptyText is returned before any network activity when there is
// nothing to say.
var ErrEmptyText = errors.New("message text is empty")

// Synthesizer produces a playable audio file from text.
type Synthesizer interface {
	// Synthesize writes spoken audio for text in the given language and
	// returns the file path. The caller owns the file.
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// Google synthesizes speech through the Google Translate TTS endpoint. No
// API key is involved; the single attempt fails without network access.
type Google struct {
	// Dir receives the generated files; defaults to the system temp dir.
	Dir string
}

func (g *Google) Synthesize(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if lang == "" {
		lang = "en"
	}

	dir := g.Dir
	if dir == "" {
		dir = os.TempDir()
	}

	speech := htgotts.Speech{Folder: dir, Language: lang}
	path, err := speech.CreateSpeechFile(text, artifactName(text))
	if err != nil {
		return "", fmt.Errorf("speech synthesis: %w", err)
	}
	return path, nil
}

// artifactName builds a unique base name for the artifact.
// Format: sonos_say_{unix_millis}_{8char_hash}
func artifactName(text string) string {
	millis := time.Now().UnixMilli()
	hash := sha256.Sum256(fmt.Appendf(nil, "%d_%s", millis, text))
	return fmt.Sprintf("sonos_say_%d_%x", millis, hash[:4])
}
