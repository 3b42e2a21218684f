package tools

import (
	"encoding/json"
	"fmt"
)

// PlainTexter is implemented by result payloads that know how to render
// themselves for a person without going through the model.
type PlainTexter interface {
	PlainText() string
}

// Result is the outcome of a tool invocation. Failures are results too:
// a handler error, a panic or a validation problem all come back as a
// Result with Success false so the agent can narrate them.
type Result struct {
	Success bool
	Message string
	// Data is the tool-specific payload. Object payloads are flattened
	// into the top level of the JSON form; anything else is nested under
	// "data".
	Data any
}

// Failure builds an unsuccessful result.
func Failure(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// MarshalJSON renders the result as a single flat object, e.g.
// {"success":true,"message":"...","guest_name":"Maria"}.
func (r Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{}

	if r.Data != nil {
		raw, err := json.Marshal(r.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal result data: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err == nil && fields != nil {
			for k, v := range fields {
				out[k] = v
			}
		} else {
			out["data"] = json.RawMessage(raw)
		}
	}

	out["success"] = r.Success
	if r.Message != "" {
		out["message"] = r.Message
	}
	return json.Marshal(out)
}

// PlainText renders the result as human-readable text. It is used when
// the model cannot phrase the reply, so it never emits JSON.
func (r Result) PlainText() string {
	if p, ok := r.Data.(PlainTexter); ok {
		if s := p.PlainText(); s != "" {
			if r.Message != "" && r.Message != s {
				return r.Message + "\n\n" + s
			}
			return s
		}
	}
	if r.Message != "" {
		return r.Message
	}
	if r.Success {
		return "Pronto! Sua solicitação foi concluída."
	}
	return "Não consegui concluir sua solicitação agora. Tente novamente mais tarde."
}
