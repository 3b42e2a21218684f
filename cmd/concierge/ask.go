package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cenourinhas/concierge/internal/agent"
	"github.com/cenourinhas/concierge/internal/memory"
	"github.com/cenourinhas/concierge/internal/whatsapp"
)

// askJID is the conversation id used by local turns.
const askJID = "local@concierge"

// printDeliverer writes replies to a terminal instead of WhatsApp.
type printDeliverer struct {
	w io.Writer
}

func (d printDeliverer) Deliver(_ context.Context, _ string, text string) bool {
	_, err := fmt.Fprintln(d.w, whatsapp.PlainText(text))
	return err == nil
}

// runAsk runs a single turn against the configured model and data
// directory and prints the reply. History is not persisted.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, args []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := configuredLogger(stderr, cfg)

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	comp, err := buildComponents(cfg, db, logger)
	if err != nil {
		return err
	}

	loop := agent.NewLoop(logger, comp.gateway, comp.synth, comp.registry,
		memory.NewStore(), printDeliverer{w: stdout}, cfg.Conversation.Window)
	loop.SetReportURL(cfg.ReportURL)

	result, err := loop.HandleMessage(ctx, askJID, strings.Join(args, " "))
	if err != nil {
		return err
	}
	logger.Debug("turn finished",
		"request_id", result.RequestID,
		"kind", result.Kind,
		"tool", result.ToolName,
	)
	return nil
}
