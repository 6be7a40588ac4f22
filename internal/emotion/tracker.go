package emotion

import "sync"

const maxHistory = 10

// UserProfile is the rolling emotional record of one user.
type UserProfile struct {
	CurrentEmotion State      `json:"current_emotion"`
	History        []Analysis `json:"-"`
	// SentimentTrend and Volatility are reported but not yet derived from
	// the history; both stay at zero.
	SentimentTrend float64 `json:"sentiment_trend"`
	Volatility     float64 `json:"emotional_volatility"`
	PreferredStyle string  `json:"preferred_response_style"`
}

// Assessment is the analysis of one message combined with its reply
// template and the user's profile after the update.
type Assessment struct {
	DetectedEmotion      State       `json:"detected_emotion"`
	EmotionIntensity     float64     `json:"emotion_intensity"`
	Confidence           float64     `json:"confidence"`
	VoiceTone            string      `json:"voice_tone"`
	ResponseStyle        string      `json:"response_style"`
	ConversationApproach string      `json:"conversation_approach"`
	EmotionalSubtext     string      `json:"emotional_subtext"`
	Triggers             []string    `json:"triggers"`
	UserProfile          UserProfile `json:"user_profile"`
}

// Tracker keeps one UserProfile per user id.
type Tracker struct {
	mu       sync.Mutex
	profiles map[string]*UserProfile
}

func NewTracker() *Tracker {
	return &Tracker{profiles: make(map[string]*UserProfile)}
}

// Assess analyzes text and records the result on userID's profile.
func (t *Tracker) Assess(userID, text string) Assessment {
	a := Analyze(text)
	tmpl := TemplateFor(a.Emotion)

	t.mu.Lock()
	p, ok := t.profiles[userID]
	if !ok {
		p = &UserProfile{PreferredStyle: "balanced"}
		t.profiles[userID] = p
	}
	p.CurrentEmotion = a.Emotion
	p.History = append(p.History, a)
	if len(p.History) > maxHistory {
		p.History = append([]Analysis(nil), p.History[len(p.History)-maxHistory:]...)
	}
	snapshot := *p
	snapshot.History = append([]Analysis(nil), p.History...)
	t.mu.Unlock()

	return Assessment{
		DetectedEmotion:      a.Emotion,
		EmotionIntensity:     a.Intensity,
		Confidence:           a.Confidence,
		VoiceTone:            tmpl.VoiceTone,
		ResponseStyle:        tmpl.ResponseStyle,
		ConversationApproach: tmpl.ConversationApproach,
		EmotionalSubtext:     string(a.Emotion) + " state",
		Triggers:             a.Triggers,
		UserProfile:          snapshot,
	}
}

// Profile returns a copy of userID's profile.
func (t *Tracker) Profile(userID string) (UserProfile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.profiles[userID]
	if !ok {
		return UserProfile{}, false
	}
	cp := *p
	cp.History = append([]Analysis(nil), p.History...)
	return cp, true
}

// Forget drops userID's profile.
func (t *Tracker) Forget(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.profiles, userID)
}
