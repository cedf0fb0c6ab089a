package keymap

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Resolver maps key strings to actions.
// Single-character keys are never bound: they type into the guess.
type Resolver struct {
	actions map[string]Action
	keys    map[Action][]string // in binding order, for help
}

// NewResolver creates a resolver from bindings. The first binding of a key
// wins.
func NewResolver(bindings []Binding) *Resolver {
	r := &Resolver{
		actions: make(map[string]Action),
		keys:    make(map[Action][]string),
	}
	for _, b := range bindings {
		for _, key := range b.Keys {
			if typable(key) {
				continue
			}
			if _, taken := r.actions[key]; !taken {
				r.actions[key] = b.Action
			}
			if !slices.Contains(r.keys[b.Action], key) {
				r.keys[b.Action] = append(r.keys[b.Action], key)
			}
		}
	}
	return r
}

// Resolve returns the action for a key, or "" when the key is not bound.
func (r *Resolver) Resolve(key string) Action {
	return r.actions[key]
}

// KeysFor returns the keys bound to an action.
func (r *Resolver) KeysFor(action Action) []string {
	return r.keys[action]
}

// Label returns the keys of an action joined for display, e.g. "ctrl+p/f5".
func (r *Resolver) Label(action Action) string {
	return strings.Join(r.keys[action], "/")
}

func typable(key string) bool {
	return utf8.RuneCountInString(key) == 1
}
