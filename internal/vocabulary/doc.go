// Package vocabulary infers which configured IR command powers a device on
// and which powers it off.
//
// Users configure remotes with free-form command names ("power_on",
// "KEY_POWER", "standby", ...). The resolver scans those names in
// configuration order against fixed synonym lists and, failing that, a shared
// list of power-toggle fallbacks:
//
//	pair := vocabulary.Resolve([]vocabulary.Definition{
//	    {Name: "power_on"},
//	    {Name: "power_off"},
//	    {Name: "volume_up"},
//	})
//	// pair.On == "power_on", pair.Off == "power_off"
//
// A definition flagged as the on- or off-command always wins that role; the
// scan runs only for a role nobody claimed explicitly.
//
// # Matching
//
// A name matches when it is literally present in the list, or when its
// upper-cased form matches an upper-cased list entry. The first matching
// name in configuration order wins, not the first list entry present. The
// returned name is always the configured spelling.
//
// All values in this package are immutable and safe for concurrent use.
package vocabulary
