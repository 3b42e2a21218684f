package agent

import (
	"strings"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	id := generateRequestID()

	if !strings.HasPrefix(id, "r_") {
		t.Errorf("request ID %q missing r_ prefix", id)
	}
	if len(id) != 10 {
		t.Errorf("request ID %q length = %d, want 10", id, len(id))
	}
	for _, c := range id[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("request ID %q contains non-hex char %q", id, string(c))
		}
	}
}

func TestGenerateRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateRequestID()
		if seen[id] {
			t.Errorf("duplicate request ID %q after %d iterations", id, i)
		}
		seen[id] = true
	}
}

func TestTurnKindString(t *testing.T) {
	tests := map[TurnKind]string{
		TurnPlainReply: "plain_reply",
		TurnToolReply:  "tool_reply",
		TurnFallback:   "fallback",
		TurnKind(9):    "TurnKind(9)",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(k), got, want)
		}
	}
}

func TestTurnErroredIsAbsorbing(t *testing.T) {
	tr := &turn{state: stateIdle, logger: quietLogger()}
	tr.advance(stateAwaitingDecision)
	tr.advance(stateErrored)
	tr.advance(stateDone)
	if tr.state != stateErrored {
		t.Errorf("state = %v, want errored", tr.state)
	}
}
