package rating

// Action is what a key press asks the controller to do.
type Action int

const (
	ActionNone Action = iota
	ActionVoteUp
	ActionVoteDown
	ActionUndo
)

// ActionForKey maps a DOM key code to a controller action. Keys are ignored
// while the user is typing in a text field.
func ActionForKey(code string, typing bool) Action {
	if typing {
		return ActionNone
	}
	switch code {
	case "ArrowUp":
		return ActionVoteUp
	case "ArrowDown":
		return ActionVoteDown
	case "KeyZ":
		return ActionUndo
	default:
		return ActionNone
	}
}
