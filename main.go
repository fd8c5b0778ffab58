package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/iamwavecut/ngwarden/internal/adapters"
	"github.com/iamwavecut/ngwarden/internal/adapters/llm/gemini"
	"github.com/iamwavecut/ngwarden/internal/adapters/llm/openai"
	"github.com/iamwavecut/ngwarden/internal/bot"
	"github.com/iamwavecut/ngwarden/internal/config"
	"github.com/iamwavecut/ngwarden/internal/db"
	"github.com/iamwavecut/ngwarden/internal/db/sqlstore"
	"github.com/iamwavecut/ngwarden/internal/handlers/chat"
	"github.com/iamwavecut/ngwarden/internal/handlers/moderation"
	"github.com/iamwavecut/ngwarden/internal/i18n"
	"github.com/iamwavecut/ngwarden/internal/infra"
	"github.com/iamwavecut/ngwarden/internal/infrastructure/telegram"
	"github.com/iamwavecut/ngwarden/internal/lifecycle"
	"github.com/iamwavecut/ngwarden/internal/observability"
	"github.com/iamwavecut/ngwarden/internal/policy/permissions"
	"github.com/iamwavecut/ngwarden/internal/utils/text"
)

// redisPendingTTL bounds how long a withheld item waits for the reviewer.
const redisPendingTTL = 7 * 24 * time.Hour

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&config.NbFormatter{})
	log.SetOutput(os.Stdout)

	app := &cli.App{
		Name:   "ngwarden",
		Usage:  "Telegram group moderation bot",
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "poll Telegram and moderate groups",
				Action: runBot,
			},
			{
				Name:      "check",
				Usage:     "print the link and banned word verdict for a text",
				ArgsUsage: "<text>",
				Action:    runCheck,
			},
			{
				Name:  "words",
				Usage: "manage the banned word list",
				Subcommands: []*cli.Command{
					{Name: "list", Usage: "print banned words", Action: runWordsList},
					{Name: "add", Usage: "add a banned word", ArgsUsage: "<word>", Action: runWordsAdd},
					{Name: "remove", Usage: "remove a banned word", ArgsUsage: "<word>", Action: runWordsRemove},
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.WithField("error", err.Error()).Fatalln("exiting")
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, errors.WithMessage(err, "load config")
	}
	log.SetLevel(log.Level(cfg.LogLevel))
	if !i18n.IsSupported(cfg.DefaultLanguage) {
		log.WithField("lang", cfg.DefaultLanguage).Warn("unsupported language, falling back to fa")
		cfg.DefaultLanguage = "fa"
	}
	i18n.SetDefaultLanguage(cfg.DefaultLanguage)
	log.WithField("lang", i18n.GetLanguageName(cfg.DefaultLanguage)).Debug("language selected")
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (db.Client, error) {
	dsn := cfg.DB.DSN
	if cfg.DB.Driver == sqlstore.DriverSQLite && !strings.HasPrefix(dsn, "file:") {
		dir, err := infra.EnsureDir(cfg.DotPath)
		if err != nil {
			return nil, err
		}
		dsn = sqlstore.SQLiteDSN(dir, dsn)
	}
	client, err := sqlstore.NewSQLClient(ctx, cfg.DB.Driver, dsn)
	if err != nil {
		return nil, errors.WithMessage(err, "open store")
	}
	return client, nil
}

func newClassifier(ctx context.Context, cfg config.Classifier) (adapters.Classifier, func() error, error) {
	nop := func() error { return nil }
	if cfg.APIKey == "" {
		log.Warn("no classifier key configured, all media goes to review")
		return nil, nop, nil
	}
	logger := log.WithField("object", "Classifier").WithField("type", cfg.Type)
	switch cfg.Type {
	case "gemini":
		client, err := gemini.NewGemini(ctx, cfg.APIKey, cfg.Model, logger)
		if err != nil {
			return nil, nop, err
		}
		return client, client.Close, nil
	case "openai":
		return openai.NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, logger), nop, nil
	default:
		return nil, nop, fmt.Errorf("unknown classifier type %q", cfg.Type)
	}
}

func newPendingRegistry(ctx context.Context, cfg config.Review, store db.Client) (moderation.PendingRegistry, func() error, error) {
	nop := func() error { return nil }
	switch cfg.PendingBackend {
	case config.PendingBackendSQL:
		if n, err := store.CountPendingReviews(ctx); err == nil {
			observability.SetPendingReviews(n)
		}
		return moderation.NewStorePending(store), nop, nil
	case config.PendingBackendRedis:
		registry, err := moderation.NewRedisPending(ctx, cfg.RedisURL, redisPendingTTL)
		if err != nil {
			return nil, nop, err
		}
		return registry, registry.Close, nil
	default:
		log.Warn("pending reviews are kept in memory and lost on restart")
		return moderation.NewMemoryPending(), nop, nil
	}
}

func runBot(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	httpClient := &http.Client{Timeout: cfg.Telegram.Timeout}
	botAPI, err := api.NewBotAPIWithClient(cfg.TelegramAPIToken, api.APIEndpoint, httpClient)
	if err != nil {
		return errors.WithMessage(err, "cant initialize bot api")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	transport := telegram.NewOperations(botAPI, cfg.Telegram.RPS, httpClient)

	classifier, closeClassifier, err := newClassifier(ctx, cfg.Classifier)
	if err != nil {
		return errors.WithMessage(err, "classifier")
	}
	defer func() { _ = closeClassifier() }()

	pending, closePending, err := newPendingRegistry(ctx, cfg.Review, store)
	if err != nil {
		return errors.WithMessage(err, "pending registry")
	}
	defer func() { _ = closePending() }()

	audit, err := observability.NewAudit(cfg.Observability.AuditLog)
	if err != nil {
		return errors.WithMessage(err, "audit log")
	}
	defer func() { _ = audit.Sync() }()

	shutdownTracing := observability.InitTracing()
	defer func() { _ = shutdownTracing(context.Background()) }()

	var seed []string
	if cfg.Moderation.SeedWords {
		seed = moderation.DefaultBannedWords
	}
	scheduler := moderation.NewScheduler()
	words := moderation.NewWordFilter(store, seed)

	runtime := lifecycle.NewRuntime()
	runtime.Register("scheduler", scheduler)
	runtime.Register("words", words)
	if cfg.Observability.MetricsAddr != "" {
		runtime.Register("metrics", observability.NewServer(cfg.Observability.MetricsAddr))
	}
	if err := runtime.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithField("error", err.Error()).Error("shutdown")
		}
	}()

	lang := i18n.DefaultLanguage()
	punisher := moderation.NewPunisher(transport, store, scheduler, audit, cfg.Moderation, lang)
	pipeline := moderation.NewApprovalPipeline(transport, classifier, words, punisher, pending, audit, cfg.Review, lang)
	reactor := chat.NewReactor(transport, store, permissions.NewAdminChecker(transport), words, punisher, pipeline, cfg.Moderation.NoticeTTL, lang)

	processor := bot.NewUpdateProcessor(reactor)
	processor.OnProcessed(observability.MarkUpdateProcessed)

	// The long poll has to return before the HTTP client gives up.
	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = max(1, int(cfg.Telegram.Timeout.Seconds())-5)
	updateConfig.AllowedUpdates = []string{"message", "edited_message"}
	updates, updateErrs := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	log.WithFields(log.Fields{
		"bot":      botAPI.Self.UserName,
		"workers":  cfg.Workers,
		"reviewer": cfg.Review.ReviewerID,
	}).Info("polling updates")

	var workers errgroup.Group
	workers.SetLimit(cfg.Workers)
	defer func() { _ = workers.Wait() }()

	for {
		select {
		case err, ok := <-updateErrs:
			if ok && err != nil && !errors.Is(err, context.Canceled) {
				log.WithField("error", err.Error()).Error("bot api get updates error")
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			workers.Go(func() error {
				done := observability.StartUpdateProcessing()
				err := infra.Recover("process_update", func() error {
					return processor.Process(ctx, &update)
				})
				if err != nil {
					log.WithField("update_id", update.UpdateID).WithField("error", err.Error()).Error("cant process update")
					done("error")
					return nil
				}
				done("ok")
				return nil
			})
		}
	}
}

func runCheck(c *cli.Context) error {
	input := strings.Join(c.Args().Slice(), " ")
	if input == "" {
		return fmt.Errorf("need to provide text as an argument")
	}
	raw, collapsed := text.LetterSkeleton(input)
	fmt.Printf("normalized: %s\n", text.Normalize(input))
	fmt.Printf("skeleton:   %s / %s\n", raw, collapsed)
	fmt.Printf("link:       %t\n", moderation.TextHasLink(input))
	if word, found := moderation.FindViolation(input, moderation.DefaultBannedWords); found {
		fmt.Printf("word:       %s\n", word)
	} else {
		fmt.Println("word:       none")
	}
	return nil
}

func withWordFilter(c *cli.Context, f func(ctx context.Context, words *moderation.WordFilter) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return f(c.Context, moderation.NewWordFilter(store, nil))
}

func runWordsList(c *cli.Context) error {
	return withWordFilter(c, func(ctx context.Context, words *moderation.WordFilter) error {
		list, err := words.Words(ctx)
		if err != nil {
			return err
		}
		for _, w := range list {
			fmt.Println(w)
		}
		return nil
	})
}

func runWordsAdd(c *cli.Context) error {
	word := c.Args().First()
	if word == "" {
		return fmt.Errorf("need to provide a word as an argument")
	}
	return withWordFilter(c, func(ctx context.Context, words *moderation.WordFilter) error {
		added, err := words.Add(ctx, word)
		if err != nil {
			return err
		}
		fmt.Printf("added: %t\n", added)
		return nil
	})
}

func runWordsRemove(c *cli.Context) error {
	word := c.Args().First()
	if word == "" {
		return fmt.Errorf("need to provide a word as an argument")
	}
	return withWordFilter(c, func(ctx context.Context, words *moderation.WordFilter) error {
		removed, err := words.Remove(ctx, word)
		if err != nil {
			return err
		}
		fmt.Printf("removed: %t\n", removed)
		return nil
	})
}
