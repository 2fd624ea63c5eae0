package prompts

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var ErrPromptNotFound = errors.New("prompt template not found")

// Template keys used by the core operations.
const (
	KeyCharacterResponse = "character_response"
	KeyDevelopment       = "development"
	KeyDramaAnalysis     = "drama_analysis"
	KeyDramaEnhancement  = "drama_enhancement"
)

// Built-in templates used when the game config does not override a key.
// Placeholders use the {{NAME}} form.
var defaultTemplates = map[string]string{
	KeyCharacterResponse: `You are roleplaying a character in an interactive story.

{{CHARACTER_INFO}}

Current situation:
{{SITUATION}}

Respond in character to the following input. Stay concise and in voice.

Input: {{INPUT}}`,

	KeyDevelopment: `Generate story development #{{NUMBER}} for an interactive narrative.

Current story state:
{{STORY_STATE}}

Character actions:
{{CHARACTER_ACTIONS}}

Theme: {{THEME}}

Story so far:
{{HISTORY}}

Dramatic analysis:
{{ANALYSIS}}

Reply using exactly this line format:
DESCRIPTION: <one-sentence summary of the development>
SITUATION: <the new situation after this development>
TWIST: <optional plot twist, omit the line if none>
ACTION1: <a possible player action>
ACTION2: <another possible player action>`,

	KeyDramaAnalysis: `Analyze character responses for dramatic elements:

Current State:
{{CURRENT_STATE}}

Character Responses:
{{RESPONSES}}

Identify:
1. Key conflicts and tensions
2. Character motivations/emotions
3. Potential plot twists
4. Dramatic themes

Respond with JSON:
{"conflicts": ["..."], "emotions": {"...": "..."}, "plot_opportunities": ["..."], "themes": ["..."]}`,

	KeyDramaEnhancement: `Enhance the following character response with more dramatic elements:

Character: {{CHARACTER}}
Original Response: {{RESPONSE}}
Dramatic Analysis: {{ANALYSIS}}

Make the response more dramatic by:
1. Emphasizing emotional undertones
2. Adding subtle hints at hidden motives
3. Including dramatic gestures or actions
4. Referencing underlying tensions

Respond with the enhanced dialogue only.`,
}

// Provider serves prompt templates, preferring game-config overrides over
// the built-in defaults, and fills {{VAR}} placeholders.
type Provider struct {
	mu        sync.RWMutex
	overrides map[string]string
	logger    *zap.Logger
}

// NewProvider creates a Provider with the given config-supplied overrides
// (may be nil).
func NewProvider(overrides map[string]string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	cp := make(map[string]string, len(overrides))
	for k, v := range overrides {
		cp[k] = v
	}
	return &Provider{
		overrides: cp,
		logger:    logger.Named("PromptProvider"),
	}
}

// Get returns the raw template for a key.
func (p *Provider) Get(key string) (string, error) {
	p.mu.RLock()
	content, ok := p.overrides[key]
	p.mu.RUnlock()
	if ok && strings.TrimSpace(content) != "" {
		return content, nil
	}
	if content, ok = defaultTemplates[key]; ok {
		return content, nil
	}
	p.logger.Error("Prompt template not found", zap.String("key", key))
	return "", fmt.Errorf("%w: key='%s'", ErrPromptNotFound, key)
}

// Render returns the template for key with every {{VAR}} placeholder
// replaced from vars. Unknown placeholders are left in place.
func (p *Provider) Render(key string, vars map[string]string) (string, error) {
	content, err := p.Get(key)
	if err != nil {
		return "", err
	}
	for name, value := range vars {
		content = strings.ReplaceAll(content, "{{"+name+"}}", value)
	}
	return content, nil
}
