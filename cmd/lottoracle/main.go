package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/lottoracle/internal/config"
	"github.com/rewired-gh/lottoracle/internal/gemini"
	"github.com/rewired-gh/lottoracle/internal/logger"
	"github.com/rewired-gh/lottoracle/internal/lottery"
	"github.com/rewired-gh/lottoracle/internal/predict"
	"github.com/rewired-gh/lottoracle/internal/server"
	"github.com/rewired-gh/lottoracle/internal/storage"
	"github.com/rewired-gh/lottoracle/internal/telegram"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lottoracle",
	Short: "Taiwan lottery history and AI number recommendations",
	Long: `lottoracle fetches Taiwan Lottery draw history, counts number frequencies
and asks a Gemini model for recommended Lotto 6/49 combinations.

Configuration is read from a YAML file and LOTTORACLE_* environment variables.
The model API key may also be given as GOOGLE_AI_API_KEY or GEMINI_API_KEY.`,
	Version:       server.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger.Init(cfg.Logging.Level, cfg.Logging.Format)
		if configPath != "" {
			logger.Info("Configuration loaded from %s", configPath)
		} else {
			logger.Info("No config file, using defaults and environment")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "path to configuration file")
	rootCmd.AddCommand(serveCmd, predictCmd, fetchCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// app holds the collaborators shared by every command.
type app struct {
	lottery  *lottery.Client
	store    *storage.Storage
	gemini   *gemini.Client
	telegram *telegram.Client
	service  *predict.Service
}

func newApp(ctx context.Context, notify bool) (*app, error) {
	a := &app{}

	a.lottery = lottery.NewClient(cfg.Lottery.APIBaseURL, cfg.Lottery.Timeout, lottery.ClientConfig{
		MaxRetries:     cfg.Lottery.MaxRetries,
		RetryDelayBase: cfg.Lottery.RetryDelayBase,
		RateLimit:      rate.Limit(cfg.Lottery.RequestsPerSecond),
		Burst:          cfg.Lottery.Concurrency,
		Concurrency:    cfg.Lottery.Concurrency,
	})
	opts := []predict.Option{predict.WithMonths(cfg.Lottery.Months)}

	if cfg.Storage.Enabled {
		store, err := storage.New(cfg.Storage.MaxDraws, cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.store = store
		opts = append(opts, predict.WithStore(store))
		logger.Info("Storage opened at %s", store.Path())
	} else {
		logger.Debug("Storage disabled")
	}

	if cfg.GeminiEnabled() {
		g, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:          cfg.Gemini.APIKey,
			Model:           cfg.Gemini.Model,
			Temperature:     cfg.Gemini.Temperature,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
			Timeout:         cfg.Gemini.Timeout,
			MaxRetries:      cfg.Gemini.MaxRetries,
			RetryDelayBase:  cfg.Gemini.RetryDelayBase,
			RequestsPerMin:  cfg.Gemini.RequestsPerMinute,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
		}
		a.gemini = g
		opts = append(opts, predict.WithGenerator(g))
		logger.Info("Gemini client initialized (model: %s)", g.Model())
	} else {
		logger.Warn("No Gemini API key configured, predictions will carry statistics only")
	}

	if notify && cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		a.telegram = tg
		opts = append(opts, predict.WithNotifier(tg))
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	a.service = predict.New(a.lottery, opts...)
	return a, nil
}

// history returns the store as a server.History, or nil when storage is disabled.
func (a *app) history() server.History {
	if a.store == nil {
		return nil
	}
	return a.store
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}
