package vocabulary

import "encoding/json"

// Source records how a role in a Pair was filled.
type Source int

const (
	// SourceNone means nothing matched.
	SourceNone Source = iota
	// SourceOverride means a definition was explicitly flagged.
	SourceOverride
	// SourceSynonym means a name matched the role's synonym list.
	SourceSynonym
	// SourceFallback means a name matched the shared fallback list.
	SourceFallback
)

// String returns the lowercase label used in logs and JSON.
func (s Source) String() string {
	switch s {
	case SourceOverride:
		return "override"
	case SourceSynonym:
		return "synonym"
	case SourceFallback:
		return "fallback"
	default:
		return "none"
	}
}

// MarshalJSON encodes the source as its label.
func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a label. Unknown labels decode to SourceNone.
func (s *Source) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	switch label {
	case "override":
		*s = SourceOverride
	case "synonym":
		*s = SourceSynonym
	case "fallback":
		*s = SourceFallback
	default:
		*s = SourceNone
	}
	return nil
}

// Definition is the slice of a configured command the resolver cares about.
type Definition struct {
	Name       string
	OnCommand  bool
	OffCommand bool
}

// Pair is the resolved on/off command for one device. An empty name means
// the role could not be resolved.
type Pair struct {
	On        string `json:"on,omitempty"`
	Off       string `json:"off,omitempty"`
	OnSource  Source `json:"on_source"`
	OffSource Source `json:"off_source"`
}

// HasOn reports whether an on-command was resolved.
func (p Pair) HasOn() bool { return p.OnSource != SourceNone }

// HasOff reports whether an off-command was resolved.
func (p Pair) HasOff() bool { return p.OffSource != SourceNone }

// FindCommand returns the first name in commands that vocab matches.
// commands is scanned in order; vocab order does not matter.
func FindCommand(commands []string, vocab Vocabulary) (string, bool) {
	for _, cmd := range commands {
		if vocab.Matches(cmd) {
			return cmd, true
		}
	}
	return "", false
}

// FindCommandFallback tries synonyms first and consults fallbacks only when
// no synonym matched.
func FindCommandFallback(commands []string, synonyms, fallbacks Vocabulary) (string, bool) {
	name, _, ok := findWithSource(commands, synonyms, fallbacks)
	return name, ok
}

// OnCommand resolves the power-on command for commands.
func OnCommand(commands []string) (string, bool) {
	return FindCommandFallback(commands, PowerOn, PowerFallback)
}

// OffCommand resolves the power-off command for commands.
func OffCommand(commands []string) (string, bool) {
	return FindCommandFallback(commands, PowerOff, PowerFallback)
}

func findWithSource(commands []string, synonyms, fallbacks Vocabulary) (string, Source, bool) {
	if name, ok := FindCommand(commands, synonyms); ok {
		return name, SourceSynonym, true
	}
	if name, ok := FindCommand(commands, fallbacks); ok {
		return name, SourceFallback, true
	}
	return "", SourceNone, false
}

// Names returns the command names of defs in order.
func Names(defs []Definition) []string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Resolve picks the on/off pair for a device. An explicitly flagged
// definition takes its role outright; otherwise the role is resolved from
// the names with OnCommand or OffCommand. The roles are independent, so one
// name may fill both.
func Resolve(defs []Definition) Pair {
	var p Pair
	names := Names(defs)

	for _, d := range defs {
		if d.OnCommand && p.OnSource == SourceNone {
			p.On, p.OnSource = d.Name, SourceOverride
		}
		if d.OffCommand && p.OffSource == SourceNone {
			p.Off, p.OffSource = d.Name, SourceOverride
		}
	}

	if p.OnSource == SourceNone {
		if name, src, ok := findWithSource(names, PowerOn, PowerFallback); ok {
			p.On, p.OnSource = name, src
		}
	}
	if p.OffSource == SourceNone {
		if name, src, ok := findWithSource(names, PowerOff, PowerFallback); ok {
			p.Off, p.OffSource = name, src
		}
	}
	return p
}
