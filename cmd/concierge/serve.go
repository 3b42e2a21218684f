package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenourinhas/concierge/internal/agent"
	"github.com/cenourinhas/concierge/internal/api"
	"github.com/cenourinhas/concierge/internal/buildinfo"
	"github.com/cenourinhas/concierge/internal/health"
	"github.com/cenourinhas/concierge/internal/memory"
	"github.com/cenourinhas/concierge/internal/opsalert"
	"github.com/cenourinhas/concierge/internal/usage"
	"github.com/cenourinhas/concierge/internal/whatsapp"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// runServe starts the webhook server and blocks until SIGINT or SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := configuredLogger(stdout, cfg)
	build := buildinfo.Current()
	logger.Info("starting concierge",
		"version", build.Version,
		"commit", build.Commit,
		"config", cfgPath,
	)

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database opened", "data_dir", cfg.DataDir)

	comp, err := buildComponents(cfg, db, logger)
	if err != nil {
		return err
	}

	convStore, err := memory.NewSQLiteStoreFromDB(db, logger)
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	usageStore, err := usage.NewStore(db)
	if err != nil {
		return fmt.Errorf("open usage store: %w", err)
	}

	delivery := whatsapp.NewClient(cfg.WhatsApp.BaseURL, cfg.WhatsApp.Timeout(), logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := opsalert.Multi{opsalert.NewLogNotifier(logger)}
	var mqttNotifier *opsalert.MQTTNotifier
	if cfg.MQTT.Configured() {
		mqttNotifier = opsalert.NewMQTTNotifier(cfg.MQTT, logger)
		if err := mqttNotifier.Start(ctx); err != nil {
			// Alerts still reach the log; the broker may come up later.
			logger.Warn("mqtt alerts not connected", "broker", cfg.MQTT.Broker, "error", err)
		}
		notifier = append(notifier, mqttNotifier)
	}
	if cfg.GitHub.Configured() {
		gh, err := opsalert.NewGitHubNotifier(cfg.GitHub, logger)
		if err != nil {
			return err
		}
		go gh.Run(ctx)
		notifier = append(notifier, gh)
		logger.Info("github alerts enabled", "repo", cfg.GitHub.Repo)
	}

	monitor := health.NewMonitor(health.DefaultSchedule(), logger)
	monitor.OnDown = func(name string, err error) {
		notifier.Notify(ctx, opsalert.Alert{
			Kind:    opsalert.KindServiceDown,
			Service: name,
			Detail:  err.Error(),
			Time:    time.Now().UTC(),
		})
	}
	monitor.Watch(ctx, "llm", comp.llm.Ping)
	monitor.Watch(ctx, "whatsapp", delivery.Ping)

	loop := agent.NewLoop(logger, comp.gateway, comp.synth, comp.registry, convStore, delivery, cfg.Conversation.Window)
	loop.SetNotifier(notifier)
	loop.SetUsageRecorder(usageStore)
	loop.SetReportURL(cfg.ReportURL)

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, loop, logger)
	server.SetUsageReporter(usageStore)
	server.SetPaymentLookup(comp.gifts)
	server.SetGuestSummarizer(comp.guests)
	server.SetServiceMonitor(monitor)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
		if mqttNotifier != nil {
			if err := mqttNotifier.Stop(shutdownCtx); err != nil {
				logger.Warn("mqtt stop failed", "error", err)
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(stderr, "server error: %v\n", err)
		return err
	}

	monitor.Wait()
	logger.Info("concierge stopped")
	return nil
}
