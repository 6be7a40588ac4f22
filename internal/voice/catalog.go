package voice

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// Emotion modes with a temperature preset in every tier default.
const (
	ModeCalm       = "calm"
	ModeNatural    = "natural"
	ModeExpressive = "expressive"
	ModeDramatic   = "dramatic"
)

const (
	qualitySuffix   = "_fp16"
	characterPrefix = "archetype_"

	// DefaultVoice is used whenever a caller supplies an unknown or empty id.
	DefaultVoice = "orpheus_leah"
)

var ErrInvalidProfile = errors.New("invalid voice profile")

type tierDefaults struct {
	maxTokens   int
	temperature map[string]float64
}

var defaultsByTier = map[Precision]tierDefaults{
	PrecisionSpeed: {
		maxTokens:   2200,
		temperature: map[string]float64{ModeCalm: 0.3, ModeNatural: 0.7, ModeExpressive: 1.0, ModeDramatic: 1.3},
	},
	PrecisionQuality: {
		maxTokens:   2200,
		temperature: map[string]float64{ModeCalm: 0.3, ModeNatural: 0.7, ModeExpressive: 1.0, ModeDramatic: 1.3},
	},
}

// Catalog is the immutable registry of voice profiles.
type Catalog struct {
	profiles  map[string]Profile
	order     []string
	defaultID string
}

// New validates profiles, fills tier defaults for omitted token ceilings and
// temperature tables, and builds a catalog. defaultID must name one of the
// profiles.
func New(profiles []Profile, defaultID string) (*Catalog, error) {
	c := &Catalog{
		profiles:  make(map[string]Profile, len(profiles)),
		order:     make([]string, 0, len(profiles)),
		defaultID: defaultID,
	}
	for _, p := range profiles {
		if _, dup := c.profiles[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidProfile, p.ID)
		}
		p = withTierDefaults(p)
		if err := p.validate(); err != nil {
			return nil, err
		}
		c.profiles[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	if _, ok := c.profiles[defaultID]; !ok {
		return nil, fmt.Errorf("%w: default voice %q not in catalog", ErrInvalidProfile, defaultID)
	}
	return c, nil
}

func withTierDefaults(p Profile) Profile {
	d, ok := defaultsByTier[p.Precision]
	if !ok {
		return p
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = d.maxTokens
	}
	if p.TemperaturePresets == nil {
		p.TemperaturePresets = maps.Clone(d.temperature)
	}
	return p
}

// Lookup returns the profile registered under id.
func (c *Catalog) Lookup(id string) (Profile, bool) {
	p, ok := c.profiles[id]
	return p, ok
}

// Default returns the fallback profile.
func (c *Catalog) Default() Profile {
	return c.profiles[c.defaultID]
}

func (c *Catalog) DefaultID() string { return c.defaultID }

// LookupOrDefault returns the profile for id, or the default profile when id
// is empty or unknown.
func (c *Catalog) LookupOrDefault(id string) Profile {
	if p, ok := c.profiles[id]; ok {
		return p
	}
	return c.Default()
}

// ResolvePrecisionVariant resolves an id that may carry the quality suffix.
//
// "X_fp16" resolves to profile X with quality precision when X exists.
// Otherwise the id is looked up as is, and named-character ids without the
// suffix are forced to speed precision. The suffix rule is checked first.
func (c *Catalog) ResolvePrecisionVariant(id string) (Profile, bool) {
	if base, found := strings.CutSuffix(id, qualitySuffix); found {
		if p, ok := c.profiles[base]; ok {
			p.Precision = PrecisionQuality
			return p, true
		}
	}

	p, ok := c.profiles[id]
	if !ok {
		return Profile{}, false
	}
	if strings.HasPrefix(id, characterPrefix) && !strings.HasSuffix(id, qualitySuffix) {
		p.Precision = PrecisionSpeed
	}
	return p, true
}

// IDs returns all voice ids in catalog order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Catalog) Len() int { return len(c.order) }

// Merge returns a new catalog with overlay profiles added. Overlay entries
// replace same-id entries in place; new ids are appended. An empty defaultID
// keeps the current default.
func (c *Catalog) Merge(overlay []Profile, defaultID string) (*Catalog, error) {
	if defaultID == "" {
		defaultID = c.defaultID
	}

	replaced := make(map[string]Profile, len(overlay))
	var added []Profile
	for _, p := range overlay {
		if _, exists := c.profiles[p.ID]; exists {
			replaced[p.ID] = p
		} else {
			added = append(added, p)
		}
	}

	merged := make([]Profile, 0, len(c.order)+len(added))
	for _, id := range c.order {
		if p, ok := replaced[id]; ok {
			merged = append(merged, p)
			continue
		}
		merged = append(merged, c.profiles[id])
	}
	merged = append(merged, added...)
	return New(merged, defaultID)
}
