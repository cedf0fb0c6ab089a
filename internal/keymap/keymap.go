// Package keymap defines key bindings for the game screen.
package keymap

// Binding describes a single key binding.
// Typed characters always go to the guess input, so bindings use control,
// function and navigation keys only.
type Binding struct {
	Action      Action
	Keys        []string
	Description string
	Context     string // "global", "playback", "round"
}

// Bindings contains all key bindings, in help display order.
var Bindings = []Binding{
	// Global
	{ActionQuit, []string{"ctrl+c"}, "Quit", "global"},
	{ActionHelp, []string{"f1"}, "Toggle help", "global"},
	{ActionDifficulty, []string{"ctrl+d"}, "Cycle difficulty", "global"},

	// Playback
	{ActionPlayPause, []string{"ctrl+p", "f5"}, "Play/stop snippet", "playback"},
	{ActionStop, []string{"ctrl+x"}, "Stop snippet", "playback"},

	// Round
	{ActionSubmit, []string{"enter"}, "Submit guess / next round", "round"},
	{ActionSkip, []string{"ctrl+s"}, "Skip (reveal title)", "round"},
	{ActionNextRound, []string{"ctrl+n"}, "Next round", "round"},
	{ActionAcceptSuggest, []string{"tab"}, "Use suggestion", "round"},
	{ActionSuggestUp, []string{"up"}, "Previous suggestion", "round"},
	{ActionSuggestDown, []string{"down"}, "Next suggestion", "round"},
	{ActionClearGuess, []string{"esc"}, "Clear guess", "round"},
}

// ByContext returns all bindings for a given context.
func ByContext(context string) []Binding {
	var result []Binding
	for _, kb := range Bindings {
		if kb.Context == context {
			result = append(result, kb)
		}
	}
	return result
}
