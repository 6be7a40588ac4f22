// Package emotion estimates the emotional state of a user message from
// keyword matches and picks a matching reply style.
package emotion

import "strings"

// State is a detected emotional state.
type State string

const (
	Joyful     State = "joyful"
	Sad        State = "sad"
	Angry      State = "angry"
	Excited    State = "excited"
	Frustrated State = "frustrated"
	Calm       State = "calm"
	Worried    State = "worried"
	Surprised  State = "surprised"
	Confident  State = "confident"
	Empathetic State = "empathetic"
)

type keywordTable struct {
	state    State
	keywords []string
}

// Ties are broken by position in this table.
var keywordTables = []keywordTable{
	{Joyful, []string{"happy", "excited", "great", "awesome", "wonderful", "love", "amazing", "fantastic", "thrilled", "delighted"}},
	{Sad, []string{"sad", "upset", "down", "depressed", "disappointed", "hurt", "lonely", "miserable", "unhappy"}},
	{Angry, []string{"angry", "mad", "furious", "annoyed", "irritated", "frustrated", "pissed", "rage", "outraged"}},
	{Excited, []string{"excited", "pumped", "energetic", "enthusiastic", "eager", "thrilled", "hyped", "stoked"}},
	{Frustrated, []string{"frustrated", "annoyed", "stuck", "blocked", "irritated", "fed up", "exasperated"}},
	{Calm, []string{"calm", "peaceful", "relaxed", "serene", "tranquil", "composed", "zen", "centered"}},
	{Worried, []string{"worried", "anxious", "concerned", "nervous", "stressed", "troubled", "uneasy"}},
	{Surprised, []string{"surprised", "shocked", "amazed", "astonished", "stunned", "wow", "incredible"}},
	{Confident, []string{"confident", "sure", "certain", "determined", "strong", "capable", "ready"}},
	{Empathetic, []string{"understand", "feel", "sorry", "empathize", "relate", "compassion", "care"}},
}

// Analysis is the result of scoring one message.
type Analysis struct {
	Emotion    State   `json:"primary_emotion"`
	Intensity  float64 `json:"intensity"`
	Confidence float64 `json:"confidence"`
	// Triggers lists every matched keyword across all tables.
	Triggers []string `json:"triggers"`
	// ContextWords lists the matched keywords of the primary emotion.
	ContextWords []string `json:"context_words"`
}

// Analyze scores text against every keyword table. Keywords match as
// substrings of the lowercased text, so "downtown" counts for "down".
func Analyze(text string) Analysis {
	lower := strings.ToLower(text)

	a := Analysis{Emotion: Calm, Intensity: 0.2, Confidence: 0.7, Triggers: []string{}, ContextWords: []string{}}
	best := 0
	matchesByTable := make([][]string, len(keywordTables))

	for i, table := range keywordTables {
		for _, kw := range table.keywords {
			if strings.Contains(lower, kw) {
				matchesByTable[i] = append(matchesByTable[i], kw)
			}
		}
		a.Triggers = append(a.Triggers, matchesByTable[i]...)
		if n := len(matchesByTable[i]); n > best {
			best = n
			a.Emotion = table.state
			a.ContextWords = matchesByTable[i]
		}
	}

	if best > 0 {
		a.Intensity = min(float64(best)*0.3, 1.0)
		a.Confidence = min(float64(best)*0.2+0.5, 1.0)
	}
	return a
}

// Template describes how to answer a user in a given state.
type Template struct {
	VoiceTone            string `json:"voice_tone"`
	ResponseStyle        string `json:"response_style"`
	ConversationApproach string `json:"conversation_approach"`
}

var templates = map[State]Template{
	Joyful:     {"warm", "enthusiastic and supportive", "share in the excitement, be encouraging"},
	Sad:        {"gentle", "compassionate and understanding", "offer comfort and support, validate feelings"},
	Angry:      {"calm", "patient and de-escalating", "acknowledge frustration, help find solutions"},
	Excited:    {"energetic", "match energy level, build on excitement", "match energy level, build on excitement"},
	Frustrated: {"patient", "helpful problem-solving approach", "focus on solutions, break down problems"},
	Calm:       {"neutral", "balanced and informative", "respond naturally and supportively"},
	Worried:    {"reassuring", "calming and supportive", "provide reassurance, offer practical help"},
	Surprised:  {"engaged", "curious and responsive", "explore the surprise, ask follow-up questions"},
	Confident:  {"assured", "supportive, reinforce positive feelings", "be supportive, reinforce positive feelings"},
	Empathetic: {"warm", "understanding and connecting", "validate emotions, create connection"},
}

// TemplateFor returns the reply template of s. Unknown states get the calm
// template.
func TemplateFor(s State) Template {
	if t, ok := templates[s]; ok {
		return t
	}
	return templates[Calm]
}
