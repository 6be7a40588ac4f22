// Package enhance rewrites text before it is sent to the Orpheus TTS model,
// injecting archetype-specific prosody markers and emotion cue tags.
package enhance

import (
	"regexp"
	"slices"
	"strings"

	"github.com/nikhilbhutani/orpheusvoice/internal/voice"
)

var (
	dotRun      = regexp.MustCompile(`\.{3,}`)
	bangRun     = regexp.MustCompile(`!{2,}`)
	questionRun = regexp.MustCompile(`\?{2,}`)
	spaceRun    = regexp.MustCompile(`\s+`)

	wordFinalIng  = regexp.MustCompile(`ing\b`)
	sentenceBreak = regexp.MustCompile(`[.!?]+\s+`)
)

// Normalize collapses punctuation and whitespace runs.
func Normalize(text string) string {
	text = dotRun.ReplaceAllString(text, "...")
	text = bangRun.ReplaceAllString(text, "!")
	text = questionRun.ReplaceAllString(text, "?")
	text = spaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Enhance normalizes text and, when addTags is set, applies the profile's
// archetype transform, emotion cues, speaking patterns and vocal
// characteristic cues in that order. Applying it twice may transform twice.
//
// emotionMode selects the temperature downstream and does not alter text.
func Enhance(text string, profile voice.Profile, emotionMode string, addTags bool) string {
	text = Normalize(text)
	if !addTags || text == "" {
		return text
	}

	if profile.Archetype != "" {
		text = transformArchetype(text, profile.Archetype, profile.Gender)
	}
	if profile.Expressive() {
		text = addEmotionCues(text, profile.Archetype)
	}
	text = applySpeakingPatterns(text, profile.SpeakingPatterns)
	text = addVocalCues(text, profile.VocalCharacteristics)
	return text
}

type archetypeTransform struct {
	upper  bool
	period string
	bang   string
	wrap   [2]string
}

func (t archetypeTransform) apply(text string) string {
	if t.upper {
		text = strings.ToUpper(text)
	}
	text = strings.ReplaceAll(text, ".", t.period)
	text = strings.ReplaceAll(text, "!", t.bang)
	return t.wrap[0] + strings.TrimSpace(text) + t.wrap[1]
}

// Archetypes missing from this table are left lexically unchanged; their
// character comes from the generation parameters only. Keys are
// "archetype" or "archetype/gender".
var archetypeTransforms = map[string]archetypeTransform{
	"angel": {
		period: "... blessed be... ",
		bang:   "... divine grace!",
		wrap:   [2]string{"✧ ", " ✧"},
	},
	"devil": {
		period: "... so tempting... ",
		bang:   "... wickedly delicious!",
		wrap:   [2]string{"♦ ", " ♦"},
	},
	"rocker/male": {
		upper:  true,
		period: "... BRUTAL RAGE... ",
		bang:   "!!! SAVAGE DESTROY!!!",
		wrap:   [2]string{"🔥💀 ", " 💀🔥"},
	},
}

func transformArchetype(text, archetype, gender string) string {
	if t, ok := archetypeTransforms[archetype+"/"+gender]; ok {
		return t.apply(text)
	}
	if t, ok := archetypeTransforms[archetype]; ok {
		return t.apply(text)
	}
	return text
}

type cueRule struct {
	archetypes []string
	keywords   []string
	cue        string
	prepend    bool
}

var emotionCues = []cueRule{
	{
		archetypes: []string{"clown", "sprite", "mad_professor"},
		keywords:   []string{"funny", "joke", "amusing", "silly"},
		cue:        "<laugh>",
	},
	{
		archetypes: []string{"mystic", "fortune_teller", "wizard", "witch"},
		keywords:   []string{"ancient", "mystical", "power", "magic"},
		cue:        "<sigh>",
		prepend:    true,
	},
	{
		archetypes: []string{"vampire", "devil"},
		keywords:   []string{"tempting", "desire", "want"},
		cue:        "<gasp>",
	},
}

func addEmotionCues(text, archetype string) string {
	for _, rule := range emotionCues {
		if !slices.Contains(rule.archetypes, archetype) {
			continue
		}
		lower := strings.ToLower(text)
		if !slices.ContainsFunc(rule.keywords, func(k string) bool { return strings.Contains(lower, k) }) {
			continue
		}
		if rule.prepend {
			text = rule.cue + " " + text
		} else {
			text = text + " " + rule.cue
		}
	}
	return text
}

func applySpeakingPatterns(text string, patterns voice.SpeakingPatterns) string {
	if patterns.Has("deliberate_pacing") {
		text = strings.ReplaceAll(text, ".", "... ")
		text = strings.ReplaceAll(text, ",", ", ")
	}
	if patterns.Has("rapid_delivery") || patterns.Has("fast_paced") {
		text = strings.ReplaceAll(text, "...", ".")
		text = strings.ReplaceAll(text, ", ", ",")
	}
	if patterns.Has("drawling_delivery") {
		text = wordFinalIng.ReplaceAllString(text, "in'")
	}
	if patterns.Has("hypnotic_rhythm") {
		text = strings.ReplaceAll(text, ".", "... ")
	}
	return text
}

var vocalCues = map[string]string{
	"raspy_edge":        "<groan>",
	"ethereal_softness": "<sigh>",
	"playful_energy":    "<chuckle>",
	"seductive_warmth":  "<gasp>",
	"hypnotic_quality":  "<yawn>",
	"mysterious_depth":  "<sigh>",
}

// addVocalCues inserts the cue tags for the profile's vocal characteristics
// at the start of the second sentence. Single-sentence text is unchanged.
func addVocalCues(text string, characteristics []string) string {
	var tags []string
	for _, c := range characteristics {
		if tag, ok := vocalCues[c]; ok {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return text
	}

	loc := sentenceBreak.FindStringIndex(text)
	if loc == nil || loc[1] >= len(text) {
		return text
	}
	return text[:loc[1]] + strings.Join(tags, " ") + " " + text[loc[1]:]
}
