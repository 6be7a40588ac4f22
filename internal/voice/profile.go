package voice

import (
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Precision is the speed/quality tier requested from the Orpheus deployment.
type Precision string

const (
	PrecisionSpeed   Precision = "fp8"
	PrecisionQuality Precision = "fp16"
)

func (p Precision) Valid() bool {
	return p == PrecisionSpeed || p == PrecisionQuality
}

// Tier returns the human name of the precision tier.
func (p Precision) Tier() string {
	if p == PrecisionQuality {
		return "quality"
	}
	return "speed"
}

// PatternRecord is the structured form of a profile's speaking patterns.
type PatternRecord struct {
	Pace                 float64  `yaml:"pace" json:"pace,omitempty"`
	PitchShift           float64  `yaml:"pitch_shift" json:"pitch_shift,omitempty"`
	PitchVariation       float64  `yaml:"pitch_variation" json:"pitch_variation,omitempty"`
	EmphasisWords        []string `yaml:"emphasis_words" json:"emphasis_words,omitempty"`
	PausePatterns        []string `yaml:"pause_patterns" json:"pause_patterns,omitempty"`
	VocalCharacteristics []string `yaml:"vocal_characteristics" json:"vocal_characteristics,omitempty"`
}

// SpeakingPatterns is either a set of pattern tags or a structured record.
// At most one of Tags and Record is set.
type SpeakingPatterns struct {
	Tags   []string
	Record *PatternRecord
}

// Has reports whether tag is one of the pattern tags. Structured records
// carry no tags.
func (s SpeakingPatterns) Has(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

func (s SpeakingPatterns) IsZero() bool {
	return len(s.Tags) == 0 && s.Record == nil
}

func (s *SpeakingPatterns) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		return value.Decode(&s.Tags)
	case yaml.MappingNode:
		var rec PatternRecord
		if err := value.Decode(&rec); err != nil {
			return err
		}
		s.Record = &rec
		return nil
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			return nil
		}
	}
	return fmt.Errorf("line %d: speaking_patterns must be a list or a mapping", value.Line)
}

func (s SpeakingPatterns) MarshalJSON() ([]byte, error) {
	if s.Record != nil {
		return json.Marshal(s.Record)
	}
	if s.Tags == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Tags)
}

// Profile describes how to request one selectable voice from the TTS backend.
type Profile struct {
	ID                   string             `yaml:"id" json:"id"`
	Description          string             `yaml:"description" json:"description,omitempty"`
	Voice                string             `yaml:"voice" json:"orpheus_voice"`
	Precision            Precision          `yaml:"precision" json:"precision"`
	MaxTokens            int                `yaml:"max_tokens" json:"max_tokens"`
	TemperaturePresets   map[string]float64 `yaml:"temperature_presets" json:"temperature_presets"`
	Archetype            string             `yaml:"archetype" json:"archetype,omitempty"`
	Gender               string             `yaml:"gender" json:"gender,omitempty"`
	PersonalityTraits    []string           `yaml:"personality_traits" json:"personality_traits,omitempty"`
	EmotionalRange       []string           `yaml:"emotional_range" json:"emotional_range,omitempty"`
	SpeakingPatterns     SpeakingPatterns   `yaml:"speaking_patterns" json:"speaking_patterns,omitzero"`
	VocalCharacteristics []string           `yaml:"vocal_characteristics" json:"vocal_characteristics,omitempty"`
	SupportedEmotions    []string           `yaml:"supported_emotions" json:"supported_emotions,omitempty"`
}

// Temperature returns the preset for mode, or the "natural" preset when the
// mode is unknown.
func (p Profile) Temperature(mode string) float64 {
	if t, ok := p.TemperaturePresets[mode]; ok {
		return t
	}
	return p.TemperaturePresets[ModeNatural]
}

// HasTrait reports whether trait appears in the personality traits or the
// emotional range of the profile.
func (p Profile) HasTrait(trait string) bool {
	return slices.Contains(p.PersonalityTraits, trait) || slices.Contains(p.EmotionalRange, trait)
}

// Expressive reports whether the profile is marked for heavy emotional
// expressiveness.
func (p Profile) Expressive() bool {
	return p.HasTrait("expressive") || p.HasTrait("dramatic")
}

// PerformanceProfile is the latency annotation exposed by the voices listing.
type PerformanceProfile struct {
	Precision           Precision `json:"precision"`
	MaxTokens           int       `json:"max_tokens"`
	StreamingCompatible bool      `json:"streaming_compatible"`
	TargetLatency       string    `json:"target_latency"`
}

func (p Profile) PerformanceProfile() PerformanceProfile {
	latency := "1-3s"
	if p.Precision == PrecisionQuality {
		latency = "2-4s"
	}
	return PerformanceProfile{
		Precision:     p.Precision,
		MaxTokens:     p.MaxTokens,
		TargetLatency: latency,
	}
}

func (p Profile) validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidProfile)
	}
	if p.Voice == "" {
		return fmt.Errorf("%w: %s: empty voice", ErrInvalidProfile, p.ID)
	}
	if !p.Precision.Valid() {
		return fmt.Errorf("%w: %s: unknown precision %q", ErrInvalidProfile, p.ID, p.Precision)
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("%w: %s: max_tokens must be positive", ErrInvalidProfile, p.ID)
	}
	if _, ok := p.TemperaturePresets[ModeNatural]; !ok {
		return fmt.Errorf("%w: %s: temperature presets need a %q entry", ErrInvalidProfile, p.ID, ModeNatural)
	}
	for mode, t := range p.TemperaturePresets {
		if t <= 0 {
			return fmt.Errorf("%w: %s: temperature for %q must be positive", ErrInvalidProfile, p.ID, mode)
		}
	}
	return nil
}
