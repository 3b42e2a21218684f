package agent

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cenourinhas/concierge/internal/httpkit"
	"github.com/cenourinhas/concierge/internal/memory"
	"github.com/cenourinhas/concierge/internal/opsalert"
	"github.com/cenourinhas/concierge/internal/prompts"
	"github.com/cenourinhas/concierge/internal/tools"
	"github.com/cenourinhas/concierge/internal/usage"
)

// finishTimeout bounds saving history and delivering the reply. Both
// run after the turn's own context may already be done.
const finishTimeout = 20 * time.Second

// ToolInvoker runs a named tool. The Result is always narratable.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (tools.Result, error)
}

// Deliverer sends a reply to a WhatsApp conversation.
type Deliverer interface {
	Deliver(ctx context.Context, jid, text string) bool
}

// UsageRecorder stores the token usage of each LLM call.
type UsageRecorder interface {
	Record(ctx context.Context, rec usage.Record) error
}

// Loop handles inbound messages one turn at a time. Turns for different
// conversations run concurrently; two turns on the same jid race and the
// last save wins.
type Loop struct {
	logger    *slog.Logger
	gateway   *Gateway
	synth     *Synthesizer
	tools     ToolInvoker
	store     memory.ConversationStore
	delivery  Deliverer
	alerts    opsalert.Notifier
	usage     UsageRecorder
	window    int
	reportURL string
}

// NewLoop creates a loop. A window below 2 uses [memory.DefaultWindow].
func NewLoop(logger *slog.Logger, gateway *Gateway, synth *Synthesizer, invoker ToolInvoker, store memory.ConversationStore, delivery Deliverer, window int) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if window < 2 {
		window = memory.DefaultWindow
	}
	return &Loop{
		logger:   logger.With("component", "agent"),
		gateway:  gateway,
		synth:    synth,
		tools:    invoker,
		store:    store,
		delivery: delivery,
		window:   window,
	}
}

// SetNotifier sets where operator alerts go.
func (l *Loop) SetNotifier(n opsalert.Notifier) {
	l.alerts = n
}

// SetUsageRecorder enables the token usage ledger.
func (l *Loop) SetUsageRecorder(r UsageRecorder) {
	l.usage = r
}

// SetReportURL sets the issue-report link included in the fallback
// reply.
func (l *Loop) SetReportURL(u string) {
	l.reportURL = u
}

// HandleMessage runs one turn for text received from jid and returns the
// reply. The only error is [ErrBadRequest]; every other fault becomes
// reply text, a log line or an operator alert.
func (l *Loop) HandleMessage(ctx context.Context, jid, text string) (*TurnResult, error) {
	if strings.TrimSpace(jid) == "" || strings.TrimSpace(text) == "" {
		return nil, ErrBadRequest
	}

	start := time.Now()
	reqID := generateRequestID()
	ctx = httpkit.WithRequestID(ctx, reqID)
	log := l.logger.With("request_id", reqID, "jid", jid)
	t := &turn{state: stateIdle, logger: log}
	res := &TurnResult{RequestID: reqID}

	log.Info("message received", "chars", len(text))

	history, err := l.store.Load(ctx, jid)
	if err != nil {
		log.Warn("history load failed, continuing without context", "error", err)
		history = nil
	}
	history = memory.Truncate(history, l.window)

	t.advance(stateAwaitingDecision)
	decision, err := l.gateway.Decide(ctx, history, text)
	switch {
	case err != nil:
		t.advance(stateErrored)
		log.Error("decision failed, sending fallback", "error", err)
		res.Kind = TurnFallback
		res.Reply = prompts.FallbackReply(l.reportURL)
		l.alert(context.WithoutCancel(ctx), opsalert.KindProviderFailure, jid, reqID, err.Error())

	case !decision.IsToolCall():
		l.recordUsage(ctx, reqID, jid, usage.PhaseDecision, decision.Usage)
		t.advance(statePlainReply)
		res.Kind = TurnPlainReply
		res.Reply = decision.Text

	default:
		l.recordUsage(ctx, reqID, jid, usage.PhaseDecision, decision.Usage)
		t.advance(stateAwaitingToolResult)
		res.Kind = TurnToolReply
		res.ToolName = decision.ToolName

		result, err := l.tools.Invoke(ctx, decision.ToolName, decision.Args)
		if err != nil {
			log.Warn("tool call rejected", "tool", decision.ToolName, "error", err)
		}
		res.ToolSuccess = result.Success

		t.advance(stateAwaitingSynthesis)
		reply, u, err := l.synth.Synthesize(ctx, decision.ToolName, result)
		if err != nil {
			log.Warn("synthesis failed, sending plain result", "tool", decision.ToolName, "error", err)
			reply = result.PlainText()
		} else {
			l.recordUsage(ctx, reqID, jid, usage.PhaseSynthesis, u)
		}
		res.Reply = reply
	}

	// A cancelled request (bridge hung up, server shutting down) still
	// records the exchange and sends the reply.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	updated := append(slices.Clone(history), text, res.Reply)
	if err := l.store.Save(finishCtx, jid, memory.Truncate(updated, l.window)); err != nil {
		log.Error("history save failed", "error", err)
	}

	res.Delivered = l.delivery.Deliver(finishCtx, jid, res.Reply)
	if !res.Delivered {
		log.Warn("reply not delivered")
		l.alert(finishCtx, opsalert.KindDeliveryFailure, jid, reqID, "reply could not be delivered to the WhatsApp bridge")
	}

	t.advance(stateDone)
	log.Info("turn completed",
		"kind", res.Kind.String(),
		"tool", res.ToolName,
		"delivered", res.Delivered,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

func (l *Loop) alert(ctx context.Context, kind, jid, reqID, detail string) {
	if l.alerts == nil {
		return
	}
	l.alerts.Notify(ctx, opsalert.Alert{
		Kind:           kind,
		ConversationID: jid,
		RequestID:      reqID,
		Detail:         detail,
		Time:           time.Now().UTC(),
	})
}

func (l *Loop) recordUsage(ctx context.Context, reqID, jid, phase string, u Usage) {
	if l.usage == nil {
		return
	}
	rec := usage.Record{
		RequestID:    reqID,
		JID:          jid,
		Model:        u.Model,
		Phase:        phase,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
	}
	if err := l.usage.Record(ctx, rec); err != nil {
		l.logger.Warn("usage record failed", "request_id", reqID, "error", err)
	}
}
