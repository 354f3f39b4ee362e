package vocabulary

import (
	"encoding/json"
	"testing"
)

func TestFindCommand(t *testing.T) {
	vocab := New("test", "power_on", "power on", "on")

	tests := []struct {
		name     string
		commands []string
		want     string
		wantOK   bool
	}{
		{"empty vocabulary", nil, "", false},
		{"no match", []string{"mute", "vol_up"}, "", false},
		{"literal match", []string{"mute", "power_on"}, "power_on", true},
		{"upper-case retry keeps configured spelling", []string{"POWER_ON"}, "POWER_ON", true},
		{"mixed case", []string{"Power On"}, "Power On", true},
		{"first in command order wins", []string{"on", "power_on"}, "on", true},
		{"command order not vocab order", []string{"vol", "power on", "power_on"}, "power on", true},
		{"no partial matching", []string{"power_on_tv", "onkyo"}, "", false},
		{"whitespace is significant", []string{" on"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindCommand(tt.commands, vocab)
			if ok != tt.wantOK {
				t.Fatalf("FindCommand(%v) ok = %v, want %v", tt.commands, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("FindCommand(%v) = %q, want %q", tt.commands, got, tt.want)
			}
		})
	}
}

func TestFindCommand_ZeroVocabulary(t *testing.T) {
	if _, ok := FindCommand([]string{"on"}, Vocabulary{}); ok {
		t.Error("zero Vocabulary should match nothing")
	}
}

func TestFindCommandFallback(t *testing.T) {
	tests := []struct {
		name     string
		commands []string
		want     string
		wantOK   bool
	}{
		{"synonym short-circuits fallback", []string{"power", "on"}, "on", true},
		{"fallback used when no synonym", []string{"mute", "power"}, "power", true},
		{"folded match returns configured spelling", []string{"Power"}, "Power", true},
		{"first fallback in command order", []string{"key_power", "power_toggle"}, "key_power", true},
		{"neither", []string{"mute"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindCommandFallback(tt.commands, PowerOn, PowerFallback)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FindCommandFallback(%v) = (%q, %v), want (%q, %v)",
					tt.commands, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestOnOffCommand(t *testing.T) {
	tests := []struct {
		name     string
		commands []string
		wantOn   string
		wantOff  string
	}{
		{"dedicated pair", []string{"power_on", "power_off", "volume_up"}, "power_on", "power_off"},
		{"toggle only upper case", []string{"POWER_TOGGLE"}, "POWER_TOGGLE", "POWER_TOGGLE"},
		{"nothing", []string{"mute", "vol_up"}, "", ""},
		{"standby is off", []string{"standby", "KEY_POWER"}, "KEY_POWER", "standby"},
		{"off is its own synonym", []string{"on", "off"}, "on", "off"},
		{"lirc style key_power", []string{"KEY_VOLUMEUP", "KEY_POWER"}, "KEY_POWER", "KEY_POWER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			on, _ := OnCommand(tt.commands)
			off, _ := OffCommand(tt.commands)
			if on != tt.wantOn {
				t.Errorf("OnCommand(%v) = %q, want %q", tt.commands, on, tt.wantOn)
			}
			if off != tt.wantOff {
				t.Errorf("OffCommand(%v) = %q, want %q", tt.commands, off, tt.wantOff)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
		want Pair
	}{
		{
			name: "synonyms",
			defs: []Definition{{Name: "power_on"}, {Name: "power_off"}, {Name: "volume_up"}},
			want: Pair{On: "power_on", Off: "power_off", OnSource: SourceSynonym, OffSource: SourceSynonym},
		},
		{
			name: "shared fallback",
			defs: []Definition{{Name: "POWER_TOGGLE"}},
			want: Pair{On: "POWER_TOGGLE", Off: "POWER_TOGGLE", OnSource: SourceFallback, OffSource: SourceFallback},
		},
		{
			name: "unresolved",
			defs: []Definition{{Name: "mute"}, {Name: "vol_up"}},
			want: Pair{},
		},
		{
			name: "empty",
			defs: nil,
			want: Pair{},
		},
		{
			name: "off override on an on synonym",
			defs: []Definition{{Name: "on", OffCommand: true}, {Name: "power"}},
			want: Pair{On: "on", Off: "on", OnSource: SourceSynonym, OffSource: SourceOverride},
		},
		{
			name: "override beats a unique synonym match",
			defs: []Definition{{Name: "power_on"}, {Name: "wake", OnCommand: true}},
			want: Pair{On: "wake", OnSource: SourceOverride},
		},
		{
			name: "first flagged definition wins",
			defs: []Definition{{Name: "a", OffCommand: true}, {Name: "b", OffCommand: true}},
			want: Pair{Off: "a", OffSource: SourceOverride},
		},
		{
			name: "one definition claims both roles",
			defs: []Definition{{Name: "toggle", OnCommand: true, OffCommand: true}, {Name: "power_off"}},
			want: Pair{On: "toggle", Off: "toggle", OnSource: SourceOverride, OffSource: SourceOverride},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.defs)
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPair_Has(t *testing.T) {
	p := Resolve([]Definition{{Name: "power_on"}})
	if !p.HasOn() {
		t.Error("HasOn() = false, want true")
	}
	if p.HasOff() {
		t.Error("HasOff() = true, want false")
	}
}

func TestVocabulary_Entries(t *testing.T) {
	v := New("dup", "a", "b", "a")
	if v.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", v.Len())
	}
	entries := v.Entries()
	entries[0] = "mutated"
	if !v.Contains("a") || v.Contains("mutated") {
		t.Error("Entries() must return a copy")
	}
	if v.Name() != "dup" {
		t.Errorf("Name() = %q, want %q", v.Name(), "dup")
	}
}

func TestPowerOff_HasSeparateOffEntry(t *testing.T) {
	for _, want := range []string{"power_off", "power off", "off", "standby"} {
		if !PowerOff.Contains(want) {
			t.Errorf("PowerOff missing %q", want)
		}
	}
	if PowerOff.Contains("power offoff") {
		t.Error("PowerOff should not contain a concatenated entry")
	}
}

func TestSource_JSON(t *testing.T) {
	data, err := json.Marshal(Pair{On: "x", OnSource: SourceFallback})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"on":"x","on_source":"fallback","off_source":"none"}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}
