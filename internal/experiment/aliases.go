package experiment

import (
	"maps"
)

// IdleProcedure is the runtime's placeholder for time spent idle.
const IdleProcedure = "hpcrun_special_IDLE"

// AliasMap renames procedures for display.
type AliasMap struct {
	names map[string]string
}

// NewAliasMap returns a map holding the default aliases.
func NewAliasMap() *AliasMap {
	return &AliasMap{names: map[string]string{
		IdleProcedure: "... IDLE ...",
	}}
}

// Put adds or replaces an alias.
func (a *AliasMap) Put(name, alias string) {
	a.names[name] = alias
}

// Resolve returns the alias of name, or name itself.
func (a *AliasMap) Resolve(name string) string {
	if alias, ok := a.names[name]; ok {
		return alias
	}
	return name
}

// Len returns the number of aliases.
func (a *AliasMap) Len() int {
	return len(a.names)
}

// Clone returns an independent copy.
func (a *AliasMap) Clone() *AliasMap {
	return &AliasMap{names: maps.Clone(a.names)}
}
