package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionImpact is a single player-selectable follow-up action inside a
// development. Impact is scaled by the narrative engine's branching factor
// at generation time and stays within [0.2, 1.0].
type ActionImpact struct {
	Text   string  `json:"text"`
	Impact float64 `json:"impact"`
}

// Development is one candidate next-story-beat offered to the player.
type Development struct {
	Description     string         `json:"description"`
	NewSituation    string         `json:"new_situation"`
	PossibleActions []ActionImpact `json:"possible_actions"`
	Twist           string         `json:"twist,omitempty"`
	Tags            []string       `json:"tags"`
}

// HasTag reports whether the development carries the given tag.
func (d *Development) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DevelopmentBatch is the result of one generation turn.
type DevelopmentBatch struct {
	Developments []Development `json:"developments"`
}

// DramaticAnalysis is the structured summary derived from a batch of
// character utterances.
type DramaticAnalysis struct {
	Conflicts         []string          `json:"conflicts"`
	Emotions          map[string]string `json:"emotions"`
	PlotOpportunities []string          `json:"plot_opportunities"`
	Themes            []string          `json:"themes"`
}

// Exchange is one (input, output) dialogue pair in a character's memory.
// On the wire it is the two-element array used by the save format.
type Exchange struct {
	Input  string
	Output string
}

// MarshalJSON renders the exchange as ["input", "output"].
func (e Exchange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.Input, e.Output})
}

// UnmarshalJSON accepts the two-element array form.
func (e *Exchange) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("failed to parse exchange pair: %w", err)
	}
	e.Input = pair[0]
	e.Output = pair[1]
	return nil
}

// StoryState is the story portion of a save record.
type StoryState struct {
	CurrentScene string    `json:"current_scene"`
	Timestamp    time.Time `json:"timestamp"`
}

// CharacterState is the persisted portion of a single character.
type CharacterState struct {
	Personality string     `json:"personality"`
	Background  string     `json:"background"`
	Memory      []Exchange `json:"memory"`
}

// NarrativeState is the persisted portion of the narrative engine.
type NarrativeState struct {
	Developments []Development `json:"developments"`
}

// SaveRecord is a persisted game snapshot. Records are immutable once
// written; a subsequent save with the same id supersedes the whole record.
type SaveRecord struct {
	SaveID          string                    `json:"save_id"`
	Timestamp       time.Time                 `json:"timestamp"`
	StoryState      StoryState                `json:"story_state"`
	CharacterStates map[string]CharacterState `json:"character_states"`
	NarrativeState  NarrativeState            `json:"narrative_state"`
	Metadata        map[string]any            `json:"metadata"`
}

// SaveSummary is the listing view of a save record.
type SaveSummary struct {
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// Snapshot is the in-memory form a session hands to the save store.
type Snapshot struct {
	StoryState      StoryState                `json:"story_state"`
	CharacterStates map[string]CharacterState `json:"character_states"`
	NarrativeState  NarrativeState            `json:"narrative_state"`
}

// Save type markers stored in record metadata.
const (
	SaveTypeManual    = "manual"
	SaveTypeQuicksave = "quicksave"
	SaveTypeAutosave  = "autosave"
)
