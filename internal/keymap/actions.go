package keymap

// Action represents a user-triggerable action.
type Action string

const (
	// Global actions
	ActionQuit       Action = "quit"
	ActionHelp       Action = "help"
	ActionDifficulty Action = "cycle_difficulty"

	// Playback actions
	ActionPlayPause Action = "play_pause"
	ActionStop      Action = "stop"

	// Round actions
	ActionSubmit        Action = "submit"
	ActionSkip          Action = "skip"
	ActionNextRound     Action = "next_round"
	ActionAcceptSuggest Action = "accept_suggest"
	ActionSuggestUp     Action = "suggest_up"
	ActionSuggestDown   Action = "suggest_down"
	ActionClearGuess    Action = "clear_guess"
)
