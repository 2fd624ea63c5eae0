package speech

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/config"
)

const (
	defaultVoice = "af"
	cacheExpiry  = 24 * time.Hour
)

// Synthesizer converts character lines to audio through an external TTS
// service. It is stateless from the game's perspective; synthesized WAVs
// are cached on disk keyed by an md5 of text and voice. Failures degrade
// to silence and never block a turn.
type Synthesizer struct {
	baseURL    string
	cacheDir   string
	httpClient *http.Client
	voices     map[string]string // character display name -> voice id
	logger     *zap.Logger
}

// New creates a Synthesizer, building the per-character voice table from
// the roster and ensuring the cache directory exists.
func New(cfg *config.Config, gameCfg *config.GameConfig, logger *zap.Logger) (*Synthesizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.SpeechCacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio cache directory '%s': %w", cfg.SpeechCacheDir, err)
	}

	voices := make(map[string]string, len(gameCfg.Characters))
	for _, charCfg := range gameCfg.Characters {
		if charCfg.Voice != "" {
			voices[charCfg.Name] = charCfg.Voice
		}
	}

	return &Synthesizer{
		baseURL:    strings.TrimSuffix(cfg.SpeechBaseURL, "/"),
		cacheDir:   cfg.SpeechCacheDir,
		httpClient: &http.Client{Timeout: cfg.SpeechTimeout},
		voices:     voices,
		logger:     logger.Named("Speech"),
	}, nil
}

func (s *Synthesizer) voiceFor(characterName string) string {
	if voice, ok := s.voices[characterName]; ok {
		return voice
	}
	return defaultVoice
}

func (s *Synthesizer) cachePath(text, voice string) string {
	sum := md5.Sum([]byte(text + "_" + voice))
	return filepath.Join(s.cacheDir, fmt.Sprintf("%x.wav", sum))
}

// Synthesize returns the path of a WAV file for the given line, serving
// from cache when possible. The returned path is empty on failure; callers
// treat missing audio as silence.
func (s *Synthesizer) Synthesize(ctx context.Context, characterName string, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	voice := s.voiceFor(characterName)
	path := s.cachePath(text, voice)

	if info, err := os.Stat(path); err == nil && time.Since(info.ModTime()) < cacheExpiry {
		return path
	}

	body, err := json.Marshal(map[string]any{
		"input": text,
		"voice": voice,
	})
	if err != nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("Failed to build TTS request", zap.Error(err))
		return ""
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("TTS request failed", zap.String("character", characterName), zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("TTS service returned non-OK status",
			zap.String("character", characterName), zap.Int("status", resp.StatusCode))
		return ""
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Warn("Failed to read TTS response", zap.Error(err))
		return ""
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		s.logger.Warn("Failed to cache TTS audio", zap.Error(err))
		return ""
	}
	return path
}

// CleanupCache removes cached audio older than the expiry window. Meant to
// be called periodically from a background loop.
func (s *Synthesizer) CleanupCache() {
	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		s.logger.Warn("Failed to read audio cache directory", zap.Error(err))
		return
	}
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".wav") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > cacheExpiry {
			_ = os.Remove(filepath.Join(s.cacheDir, entry.Name()))
		}
	}
}
