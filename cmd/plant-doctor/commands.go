package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	plantdoctor "github.com/menta2k/plant-doctor"
	"github.com/menta2k/plant-doctor/internal/config"
	"github.com/menta2k/plant-doctor/internal/utils"
	"github.com/menta2k/plant-doctor/pkg/report"
	"github.com/menta2k/plant-doctor/pkg/server"
)

var (
	// analyze flags
	plainOutput bool
	jsonOutput  bool
	style       string
	wrapWidth   int

	// config init flags
	forceWrite bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface and JSON API",
	Long: `Serves the upload/webcam form on / and the JSON API on /api/v1.

The listen address defaults to 0.0.0.0:7860 and can be changed with
server.addr in the config file or PLANT_DOCTOR_ADDR.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|url>",
	Short: "Diagnose a single plant image",
	Long: `Classifies one image (local file or http(s) URL) and prints the
predictions and the generated treatment advice.

Example:
  plant-doctor analyze leaf.jpg
  plant-doctor analyze --json https://example.com/leaf.png`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	analyzeCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print raw Markdown")
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	analyzeCmd.Flags().StringVar(&style, "style", "", "Terminal style (dark, light, notty); auto-detected when empty")
	analyzeCmd.Flags().IntVar(&wrapWidth, "width", 100, "Word wrap width for terminal output")
	analyzeCmd.MarkFlagsMutuallyExclusive("plain", "json")

	configInitCmd.Flags().BoolVarP(&forceWrite, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	warnMissingKey(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pd, err := plantdoctor.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.New(pd, server.Options{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowOrigins:   cfg.Server.AllowOrigins,
		Version:        plantdoctor.GetVersion(),
	}, logger.Named("http"))
	if err != nil {
		return err
	}

	logger.Info("🚀 Launching Plant Disease Detection System...",
		zap.String("addr", cfg.Server.Addr),
		zap.String("max_upload", utils.FormatFileSize(cfg.Server.MaxUploadBytes)))
	return srv.Run(ctx)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	source := args[0]
	if !utils.IsURL(source) {
		if !utils.FileExists(source) {
			return fmt.Errorf("file not found: %s", source)
		}
		if !utils.IsImageFile(source) {
			logger.Warn("file extension does not look like an image", zap.String("file", source))
		}
	}
	if !jsonOutput {
		warnMissingKey(cfg)
	}

	ctx := cmd.Context()
	if timeout := cfg.Classifier.Timeout + cfg.LLM.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	pd, err := plantdoctor.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	rep, err := pd.AnalyzeSource(ctx, source)
	if err != nil {
		if rep != nil && !jsonOutput {
			fmt.Fprintln(cmd.ErrOrStderr(), rep.PredictionsMarkdown)
		}
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case plainOutput:
		fmt.Fprintln(out, rep.PredictionsMarkdown)
		fmt.Fprintln(out, rep.RemediesMarkdown)
		return nil
	default:
		rendered, err := report.Terminal(rep.PredictionsMarkdown+"\n"+rep.RemediesMarkdown, style, wrapWidth)
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
		return nil
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	if utils.FileExists(path) && !forceWrite {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	// defaults only, keys stay in the environment
	if err := config.Default().SaveToFile(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
