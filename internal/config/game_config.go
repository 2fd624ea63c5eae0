package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/SparxCinTech/InteractiveStoryGame/internal/models"
)

// CharacterConfig describes one roster entry of the game config. Conflict,
// motivation and secret are optional; absent values render as empty trait
// lines, not omitted ones.
type CharacterConfig struct {
	Name        string `yaml:"name"`
	Personality string `yaml:"personality"`
	Background  string `yaml:"background"`
	Conflict    string `yaml:"conflict"`
	Motivation  string `yaml:"motivation"`
	Secret      string `yaml:"secret"`
	Voice       string `yaml:"voice"`
}

// GameSettings holds the tunable constants of a session.
type GameSettings struct {
	MaxChoices       int      `yaml:"max_choices" env-default:"3"`
	DefaultTheme     string   `yaml:"default_theme" env-default:"mystery"`
	AutosaveInterval int      `yaml:"autosave_interval" env-default:"5"`
	CharacterOrder   []string `yaml:"character_order"`
}

// InitialState describes the opening scene.
type InitialState struct {
	Location         string `yaml:"location"`
	Time             string `yaml:"time"`
	Situation        string `yaml:"situation"`
	CharacterActions string `yaml:"character_actions"`
}

// FallbackDevelopment is the development substituted when a whole
// generation batch fails.
type FallbackDevelopment struct {
	Description  string   `yaml:"description" env-default:"The story continues along its current path."`
	NewSituation string   `yaml:"new_situation" env-default:"The scene remains tense but unchanged."`
	Actions      []string `yaml:"actions"`
}

// Development converts the fallback into the domain type. The fallback
// batch always contains exactly one development.
func (f FallbackDevelopment) Development() models.Development {
	actions := make([]models.ActionImpact, 0, len(f.Actions))
	for _, a := range f.Actions {
		actions = append(actions, models.ActionImpact{Text: a, Impact: 0.5})
	}
	return models.Development{
		Description:     f.Description,
		NewSituation:    f.NewSituation,
		PossibleActions: actions,
		Tags:            []string{"fallback"},
	}
}

// GameConfig is the static game content: character roster, prompt
// templates per operation, settings, fallbacks and the initial state.
type GameConfig struct {
	Characters   map[string]CharacterConfig `yaml:"characters"`
	Templates    map[string]string          `yaml:"templates"`
	Settings     GameSettings               `yaml:"game_settings"`
	Fallback     FallbackDevelopment        `yaml:"fallback_development"`
	InitialState InitialState               `yaml:"initial_state"`
}

// LoadGameConfig reads the YAML game config from path.
func LoadGameConfig(path string) (*GameConfig, error) {
	var cfg GameConfig
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read game config '%s': %w", path, err)
	}
	if len(cfg.Characters) == 0 {
		return nil, fmt.Errorf("game config '%s' defines no characters", path)
	}
	if cfg.Settings.MaxChoices <= 0 {
		cfg.Settings.MaxChoices = 3
	}
	if cfg.InitialState.Situation == "" {
		cfg.InitialState.Situation = "The story is about to begin."
	}
	return &cfg, nil
}

// FormatInitialState renders the opening scene text.
func (c *GameConfig) FormatInitialState() string {
	return fmt.Sprintf("Location: %s\nTime: %s\nCurrent situation: %s",
		c.InitialState.Location, c.InitialState.Time, c.InitialState.Situation)
}
