package vocabulary

import "strings"

// Vocabulary is a fixed, ordered list of canonical command names that share
// a meaning (for example "power on"). Build one with New; the zero value
// matches nothing.
type Vocabulary struct {
	name    string
	entries []string
	exact   map[string]struct{}
	folded  map[string]struct{}
}

// New builds a Vocabulary from entries. Duplicate entries are ignored.
func New(name string, entries ...string) Vocabulary {
	v := Vocabulary{
		name:    name,
		entries: make([]string, 0, len(entries)),
		exact:   make(map[string]struct{}, len(entries)),
		folded:  make(map[string]struct{}, len(entries)),
	}
	for _, e := range entries {
		if _, dup := v.exact[e]; dup {
			continue
		}
		v.entries = append(v.entries, e)
		v.exact[e] = struct{}{}
		v.folded[strings.ToUpper(e)] = struct{}{}
	}
	return v
}

// Process-wide power vocabularies.
var (
	// PowerOn lists names that mean "switch on".
	PowerOn = New("power_on", "power_on", "power on", "on")

	// PowerOff lists names that mean "switch off".
	PowerOff = New("power_off", "power_off", "power off", "off", "standby")

	// PowerFallback lists power-toggle names used when a device has no
	// dedicated on or off command.
	PowerFallback = New("power_fallback", "power_toggle", "power toggle", "power", "key_power")
)

// Name returns the label given to New.
func (v Vocabulary) Name() string {
	return v.name
}

// Entries returns a copy of the entries in declaration order.
func (v Vocabulary) Entries() []string {
	out := make([]string, len(v.entries))
	copy(out, v.entries)
	return out
}

// Len returns the number of distinct entries.
func (v Vocabulary) Len() int {
	return len(v.entries)
}

// Contains reports whether name is literally one of the entries.
func (v Vocabulary) Contains(name string) bool {
	_, ok := v.exact[name]
	return ok
}

// Matches reports whether name is an entry, trying the literal name first
// and then its upper-cased form against the upper-cased entries.
func (v Vocabulary) Matches(name string) bool {
	if v.Contains(name) {
		return true
	}
	_, ok := v.folded[strings.ToUpper(name)]
	return ok
}
