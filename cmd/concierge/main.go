// Concierge is the WhatsApp assistant for Hugo and Aline's wedding.
//
// It receives guest messages from a WhatsApp bridge, lets an LLM answer
// them or act on them (confirm attendance, list gifts, create a gift
// payment link), and sends the reply back through the bridge.
//
// Usage:
//
//	concierge serve                    Start the API server
//	concierge init [dir]               Write an example config and persona
//	concierge ask <question>           Run one turn locally and print the reply
//	concierge import-guests <file.vcf> Import guests from exported contacts
//	concierge import-gifts <file.yaml> Import the gift catalog
//	concierge version                  Print version and build information
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cenourinhas/concierge/internal/agent"
	"github.com/cenourinhas/concierge/internal/buildinfo"
	"github.com/cenourinhas/concierge/internal/config"
	"github.com/cenourinhas/concierge/internal/gifts"
	"github.com/cenourinhas/concierge/internal/guests"
	"github.com/cenourinhas/concierge/internal/llm"
	"github.com/cenourinhas/concierge/internal/mercadopago"
	"github.com/cenourinhas/concierge/internal/tools"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the testable entry point. Arguments are parsed by hand so that
// tests can call run concurrently without flag package globals.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var envPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-env" && i+1 < len(args):
			envPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-env="):
			envPath = strings.TrimPrefix(args[i], "-env=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve", "ask", "import-guests", "import-gifts":
		if err := loadEnv(envPath); err != nil {
			return err
		}
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, stderr, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: concierge ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, cmdArgs)
	case "import-guests":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: concierge import-guests <file.vcf>")
		}
		return runImportGuests(ctx, stdout, configPath, cmdArgs[0], outputFmt)
	case "import-gifts":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: concierge import-gifts <file.yaml>")
		}
		return runImportGifts(ctx, stdout, configPath, cmdArgs[0])
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	b := buildinfo.Current()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}
	fmt.Fprintln(w, b.String())
	fmt.Fprintf(w, "  %-12s %s\n", "go:", b.GoVersion)
	fmt.Fprintf(w, "  %-12s %s\n", "platform:", b.Platform)
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Concierge - WhatsApp assistant for the Cenourinhas wedding")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: concierge [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                     Start the API server")
	fmt.Fprintln(w, "  init [dir]                Write example config.yaml and persona.md (default: .)")
	fmt.Fprintln(w, "  ask <question>            Run one turn locally and print the reply")
	fmt.Fprintln(w, "  import-guests <file.vcf>  Import guests from exported contacts")
	fmt.Fprintln(w, "  import-gifts <file.yaml>  Import the gift catalog")
	fmt.Fprintln(w, "  version                   Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -env <path>       Path to a .env file (default: ./.env if present)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/concierge/config.yaml, /etc/concierge/config.yaml")
	return nil
}

// loadEnv loads secrets from a .env file into the process environment
// before the config is expanded. An explicit path must exist; the
// default ./.env is optional. Variables already set are kept.
func loadEnv(explicit string) error {
	if explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return fmt.Errorf("load env file %s: %w", explicit, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// loadConfig locates and parses the YAML configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// configuredLogger builds the logger described by cfg.
func configuredLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	// ParseLogLevel was already validated by config.Validate.
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	return config.NewLogger(w, config.LogOptions{
		Level:      level,
		Format:     cfg.LogFormat,
		ShowPhones: cfg.LogPhones,
	})
}

// openDatabase opens the shared SQLite database in the data directory.
// Guests, gifts, payments, conversations and usage all live in it.
func openDatabase(dataDir string) (*sql.DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "concierge.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	return db, nil
}

// createLLMClient builds the provider router. Models not routed in
// config go to Ollama.
func createLLMClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	router := llm.NewRouter("ollama", llm.NewOllamaClient(cfg.Models.OllamaURL, logger))

	if cfg.Anthropic.Configured() {
		router.AddProvider("anthropic", llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger))
		logger.Info("Anthropic provider configured")
	}

	for _, m := range cfg.Models.Available {
		if err := router.Route(m.Name, m.Provider); err != nil {
			logger.Warn("model not routed, using ollama", "model", m.Name, "error", err)
		}
	}

	logger.Info("LLM client initialized",
		"default_model", cfg.Models.Default,
		"default_provider", router.Provider(cfg.Models.Default),
		"synthesis_model", cfg.SynthesisModel(),
		"synthesis_provider", router.Provider(cfg.SynthesisModel()),
	)
	return router
}

// loadPersona returns the persona text from cfg.PersonaFile, or "" for
// the built-in persona.
func loadPersona(cfg *config.Config) (string, error) {
	if cfg.PersonaFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(cfg.PersonaFile)
	if err != nil {
		return "", fmt.Errorf("read persona file: %w", err)
	}
	return string(data), nil
}

// components are the pieces shared by serve and ask.
type components struct {
	llm      llm.Client
	guests   *guests.Store
	gifts    *gifts.Store
	registry *tools.Registry
	gateway  *agent.Gateway
	synth    *agent.Synthesizer
}

// buildComponents wires the stores, the tool registry and both LLM
// phases on top of db.
func buildComponents(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*components, error) {
	guestStore, err := guests.NewStore(db, logger)
	if err != nil {
		return nil, fmt.Errorf("open guest store: %w", err)
	}
	giftStore, err := gifts.NewStore(db, logger)
	if err != nil {
		return nil, fmt.Errorf("open gift store: %w", err)
	}

	mp := mercadopago.NewClient(mercadopago.Config{
		AccessToken: cfg.MercadoPago.AccessToken,
		APIURL:      cfg.MercadoPago.APIURL,
		SiteURL:     cfg.MercadoPago.SiteURL,
		Currency:    cfg.MercadoPago.Currency,
	}, logger)
	if !cfg.MercadoPago.Configured() {
		logger.Warn("mercado pago access token not configured, gift payments will fail")
	}

	registry := tools.NewRegistry(logger)
	if err := registry.RegisterGuestTools(guestStore); err != nil {
		return nil, err
	}
	if err := registry.RegisterGiftTools(giftStore, mp); err != nil {
		return nil, err
	}

	persona, err := loadPersona(cfg)
	if err != nil {
		return nil, err
	}

	client := createLLMClient(cfg, logger)
	opts := llm.Options{
		Temperature: cfg.Sampling.Temperature,
		TopP:        cfg.Sampling.TopP,
		TopK:        cfg.Sampling.TopK,
		MaxTokens:   cfg.Sampling.MaxTokens,
	}
	timeout := time.Duration(cfg.Models.TimeoutSec) * time.Second

	return &components{
		llm:      client,
		guests:   guestStore,
		gifts:    giftStore,
		registry: registry,
		gateway: agent.NewGateway(client, registry, persona,
			agent.CallConfig{Model: cfg.Models.Default, Options: opts, Timeout: timeout}, logger),
		synth: agent.NewSynthesizer(client,
			agent.CallConfig{Model: cfg.SynthesisModel(), Options: opts, Timeout: timeout}, logger),
	}, nil
}
