package flow

// State enumerates the phases of an Aggregator.
type State int

const (
	StateAwaitingFirstChunk State = iota
	StateAccumulatingContent
	StateAccumulatingToolCalls
	StateExecutingTools
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingFirstChunk:
		return "awaiting_first_chunk"
	case StateAccumulatingContent:
		return "accumulating_content"
	case StateAccumulatingToolCalls:
		return "accumulating_tool_calls"
	case StateExecutingTools:
		return "executing_tools"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further chunks will be produced.
func (s State) Terminal() bool { return s == StateComplete || s == StateFailed }
