package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/HexSleeves/topbot/internal/bus"
	"github.com/HexSleeves/topbot/internal/config"
	"github.com/HexSleeves/topbot/internal/conversation"
	"github.com/HexSleeves/topbot/internal/exchange"
	"github.com/HexSleeves/topbot/internal/journal"
	"github.com/HexSleeves/topbot/internal/llm"
	"github.com/HexSleeves/topbot/internal/logging"
	"github.com/HexSleeves/topbot/internal/tui"
)

const version = "0.1.0"

// runtime is everything a command needs once config and credentials are in.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	bus     *bus.MessageBus
	history *conversation.History
	session *exchange.Session
	journal *journal.Store
}

func (r *runtime) Close() {
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			r.logger.Warn("close journal", zap.Error(err))
		}
	}
	_ = r.logger.Sync()
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "topbot",
		Usage:     "talk your top task for today through with a language model",
		Version:   version,
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: config.DefaultConfigFile,
				Usage: "path to the config file",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "completion provider: openai, anthropic, stub, kimi, claude-cli, gemini, opencode",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "model identifier passed to the provider",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "debug logging",
			},
		},
		Action: cmdChat,
		Commands: []*cli.Command{
			{
				Name:   "chat",
				Usage:  "open the interactive chat (default)",
				Action: cmdChat,
			},
			{
				Name:      "ask",
				Usage:     "run one exchange for a task and print the transcript",
				ArgsUsage: "<task...>",
				Action:    cmdAsk,
			},
			{
				Name:  "config",
				Usage: "show the effective configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "write", Usage: "save the effective configuration to the --config path"},
				},
				Action: cmdConfig,
			},
			{
				Name:  "journal",
				Usage: "show recent completion calls from the journal",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "rows to show"},
				},
				Action: cmdJournal,
			},
			{
				Name:  "version",
				Usage: "show version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintf(cmd.Root().Writer, "topbot v%s\n", version)
					return err
				},
			},
		},
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if p := cmd.String("provider"); p != "" {
		cfg.Provider = p
	}
	if m := cmd.String("model"); m != "" {
		cfg.Model = m
	}
	return cfg, nil
}

// setup loads config and the credential and wires the session. A missing
// credential is returned as config.ErrMissingCredential before anything
// else is created.
func setup(cmd *cli.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	var apiKey string
	if llm.NeedsAPIKey(cfg.Provider) {
		apiKey, err = cfg.LoadCredential()
		if err != nil {
			return nil, err
		}
	}

	logger, err := logging.New(cfg.Resolve(cfg.Log.File), cfg.Log.Level, cmd.Bool("verbose"))
	if err != nil {
		return nil, err
	}

	client, err := llm.NewFromConfig(llm.ProviderConfig{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   apiKey,
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.Timeout(),
		WorkDir:  cfg.Resolve(cfg.WorkDir),
	})
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		bus:    bus.New(0).WithLogger(logger),
	}
	rt.history = conversation.NewHistory(cfg.BotName, rt.bus)

	opts := []exchange.Option{
		exchange.WithModel(cfg.Model),
		exchange.WithSender(cfg.BotName),
		exchange.WithBus(rt.bus),
		exchange.WithLogger(logger),
	}
	if cfg.Journal.Path != "" {
		store, err := journal.Open(cfg.Resolve(cfg.Journal.Path))
		if err != nil {
			return nil, err
		}
		rt.journal = store
		opts = append(opts, exchange.WithJournal(store))
	}

	rt.session = exchange.NewSession(rt.history, exchange.NewRequester(client, rt.history, opts...))
	logger.Info("session ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Bool("journal", rt.journal != nil))
	return rt, nil
}

func cmdChat(ctx context.Context, cmd *cli.Command) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.Root().Writer
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return tui.Run(ctx, rt.session, rt.bus, tui.Options{
			Title:    rt.cfg.BotName,
			Markdown: true,
		})
	}
	return plainChat(ctx, rt, cmd.Root().Reader, out)
}

// plainChat reads one task per line from in, for pipes and dumb terminals.
func plainChat(ctx context.Context, rt *runtime, in io.Reader, out io.Writer) error {
	printer := tui.NewPrinter(out, terminalWidth(out))
	printer.PrintAll(rt.history.All())
	sub := printer.Attach(rt.bus)
	defer sub.Unsubscribe()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := rt.session.Submit(ctx, scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func cmdAsk(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("usage: topbot ask <task...>")
	}
	task := strings.Join(cmd.Args().Slice(), " ")

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.Root().Writer
	printer := tui.NewPrinter(out, terminalWidth(out))
	printer.PrintAll(rt.history.All())
	sub := printer.Attach(rt.bus)
	defer sub.Unsubscribe()

	outcome, err := rt.session.Submit(ctx, task)
	if err != nil {
		return err
	}
	if outcome.Err != nil {
		return fmt.Errorf("exchange %s: %w", outcome.ExchangeID, outcome.Err)
	}
	return nil
}

func cmdConfig(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("write") {
		path := cmd.String("config")
		if err := cfg.Save(path); err != nil {
			return err
		}
		pterm.Fprintln(cmd.Root().Writer, "wrote "+path)
		return nil
	}

	key := "(not needed)"
	if llm.NeedsAPIKey(cfg.Provider) {
		if k, err := cfg.LoadCredential(); err != nil {
			key = "(missing)"
		} else {
			key = config.Redact(k)
		}
	}
	journalPath := "(disabled)"
	if cfg.Journal.Path != "" {
		journalPath = cfg.Resolve(cfg.Journal.Path)
	}

	return pterm.DefaultTable.
		WithHasHeader().
		WithWriter(cmd.Root().Writer).
		WithData(pterm.TableData{
			{"Setting", "Value"},
			{"Config file", cmd.String("config")},
			{"Provider", cfg.Provider},
			{"Model", orDefault(cfg.Model, "(provider default)")},
			{"Base URL", orDefault(cfg.BaseURL, "(provider default)")},
			{"Bot name", cfg.BotName},
			{"Timeout", cfg.Timeout().String()},
			{"Secrets file", cfg.Resolve(cfg.SecretsFile)},
			{"Work dir", orDefault(cfg.Resolve(cfg.WorkDir), "(current directory)")},
			{"API key", key},
			{"Log", cfg.Resolve(cfg.Log.File) + " (" + cfg.Log.Level + ")"},
			{"Journal", journalPath},
		}).
		Render()
}

func cmdJournal(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Journal.Path == "" {
		return errors.New("journal disabled: set [journal] path in the config file")
	}

	store, err := journal.Open(cfg.Resolve(cfg.Journal.Path))
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	data := pterm.TableData{{"Time", "Exchange", "Step", "Status", "Latency", "Error"}}
	for _, e := range entries {
		data = append(data, []string{
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			shortID(e.ExchangeID),
			e.Step,
			string(e.Status),
			strconv.FormatInt(e.Latency.Milliseconds(), 10) + "ms",
			e.Error,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.Root().Writer).WithData(data).Render()
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 80
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
