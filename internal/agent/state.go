package agent

import "log/slog"

type turnState int

const (
	stateIdle turnState = iota
	stateAwaitingDecision
	statePlainReply
	stateAwaitingToolResult
	stateAwaitingSynthesis
	stateDone
	stateErrored
)

var stateNames = map[turnState]string{
	stateIdle:               "idle",
	stateAwaitingDecision:   "awaiting_decision",
	statePlainReply:         "plain_reply",
	stateAwaitingToolResult: "awaiting_tool_result",
	stateAwaitingSynthesis:  "awaiting_synthesis",
	stateDone:               "done",
	stateErrored:            "errored",
}

func (s turnState) String() string { return stateNames[s] }

// turn tracks the state of one message. Errored is absorbing.
type turn struct {
	state  turnState
	logger *slog.Logger
}

func (t *turn) advance(next turnState) {
	if t.state == stateErrored {
		return
	}
	t.logger.Debug("turn state", "from", t.state.String(), "to", next.String())
	t.state = next
}
