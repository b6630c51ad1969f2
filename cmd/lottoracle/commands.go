package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/lottoracle/internal/logger"
	"github.com/rewired-gh/lottoracle/internal/models"
	"github.com/rewired-gh/lottoracle/internal/prompt"
	"github.com/rewired-gh/lottoracle/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var (
	exportPath string
	printJSON  bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run one Lotto 6/49 analysis and print it",
	Long: `Fetch the analysis window of Lotto 6/49 draws, count frequencies, ask the
model for recommended combinations and print the result.

With --export the draws used for the analysis are also written as JSON.`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

var (
	fetchGame   string
	fetchMonths int
	fetchOutput string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch recent draws of a game and cache them",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a prediction now and then on every interval",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	predictCmd.Flags().StringVarP(&exportPath, "export", "e", "", "write the analyzed draws to this JSON file")
	predictCmd.Flags().BoolVar(&printJSON, "json", false, "print the result as JSON")

	var ids []string
	for _, g := range models.Games() {
		ids = append(ids, g.ID)
	}
	fetchCmd.Flags().StringVarP(&fetchGame, "game", "g", models.Lotto649.ID, "game to fetch ("+strings.Join(ids, ", ")+")")
	fetchCmd.Flags().IntVarP(&fetchMonths, "months", "m", 0, "months to fetch (default from config)")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "write the draws to this JSON file instead of stdout")

	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 0, "time between predictions (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := server.NewHandler(a.lottery, a.service, a.history(), server.Options{
		CacheTTL:       cfg.Server.CacheTTL,
		CacheSize:      cfg.Server.CacheSize,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	srv := server.New(cfg.Server.Addr, handler, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	logger.Info("Service stopped")
	return nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	draws := a.service.Draws(ctx, models.Lotto649)
	if exportPath != "" && len(draws) > 0 {
		if err := writeJSONFile(exportPath, draws); err != nil {
			return err
		}
		logger.Info("Exported %d draws to %s", len(draws), exportPath)
	}

	res := a.service.Analyze(ctx, draws)
	if printJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	printResult(cmd.OutOrStdout(), res)
	if res.Status == models.StatusError {
		return fmt.Errorf("prediction failed: %s", res.Error)
	}
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	game, ok := models.GameByID(fetchGame)
	if !ok {
		return fmt.Errorf("unknown game %q", fetchGame)
	}
	months := fetchMonths
	if months <= 0 {
		months = cfg.Lottery.Months
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	draws, err := a.lottery.FetchRecent(ctx, game, months, time.Now())
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", game.ID, err)
	}
	logger.Info("Fetched %d %s draws over %d months", len(draws), game.ID, months)

	if a.store != nil && len(draws) > 0 {
		if err := a.store.SaveDraws(draws); err != nil {
			return fmt.Errorf("failed to cache draws: %w", err)
		}
	}

	if fetchOutput != "" {
		return writeJSONFile(fetchOutput, draws)
	}
	return writeJSON(cmd.OutOrStdout(), draws)
}

func runWatch(cmd *cobra.Command, args []string) error {
	interval := watchInterval
	if interval <= 0 {
		interval = cfg.Schedule.Interval
	}
	if interval < time.Minute {
		return fmt.Errorf("interval must be at least 1 minute, got %v", interval)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("Starting prediction loop (interval: %v, window: %d months)", interval, cfg.Lottery.Months)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	consecutiveFailures := 0
	runCycle := func() {
		start := time.Now()
		res := a.service.Predict(ctx)
		if res.Status == models.StatusError {
			consecutiveFailures++
			logger.Error("Prediction cycle failed (%d in a row): %s", consecutiveFailures, res.Error)
			return
		}
		if consecutiveFailures > 0 {
			logger.Info("Prediction recovered after %d failed cycles", consecutiveFailures)
		}
		consecutiveFailures = 0
		logger.Info("Prediction %s completed in %v with %d sets", res.ID, time.Since(start), len(res.RecommendedSets))
	}

	// Run initial prediction immediately
	runCycle()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return nil
		case <-ticker.C:
			logger.Debug("Starting scheduled prediction cycle")
			runCycle()
		}
	}
}

func printResult(w io.Writer, res *models.AnalysisResult) {
	fmt.Fprintf(w, "大樂透 AI 預測 (%s)\n", res.ID)
	if res.Status == models.StatusError {
		fmt.Fprintf(w, "錯誤: %s\n", res.Error)
		return
	}

	if s := res.Statistics; s != nil {
		fmt.Fprintf(w, "分析期數: %d (%s ~ %s, 第 %d 期至第 %d 期)\n",
			s.TotalPeriods, s.DateRange.Start, s.DateRange.End, s.OldestPeriod, s.LatestPeriod)
		fmt.Fprintf(w, "熱門號碼: %s\n", formatCounts(s.HotNumbers))
		fmt.Fprintf(w, "冷門號碼: %s\n", formatCounts(s.ColdNumbers))
		if len(s.NeverAppeared) > 0 {
			fmt.Fprintf(w, "未出現號碼: %v\n", s.NeverAppeared)
		}
	}

	if res.Notice != "" {
		fmt.Fprintf(w, "\n%s\n", res.Notice)
	}
	if res.AIPrediction != "" {
		fmt.Fprintf(w, "\n--- AI 回覆 ---\n%s\n", res.AIPrediction)
	}
	if len(res.RecommendedSets) > 0 {
		fmt.Fprintf(w, "\n--- 推薦組合 ---\n%s", prompt.FormatSets(res.RecommendedSets))
	}
}

func formatCounts(counts []models.NumberCount) string {
	parts := make([]string, len(counts))
	for i, nc := range counts {
		parts[i] = fmt.Sprintf("%d(%d)", nc.Number, nc.Count)
	}
	return strings.Join(parts, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeJSON(f, v); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
