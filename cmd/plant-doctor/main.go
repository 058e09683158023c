package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	plantdoctor "github.com/menta2k/plant-doctor"
	"github.com/menta2k/plant-doctor/internal/config"
	"github.com/menta2k/plant-doctor/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "plant-doctor",
	Short: "Plant disease detection and treatment recommendations",
	Long: `plant-doctor classifies a photo of a plant with a hosted image model and
asks an LLM for treatment advice for the most likely disease.

Run "plant-doctor serve" for the web interface, or "plant-doctor analyze"
for a single image from the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.GetConfigPath()
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		if err != nil {
			return err
		}
		logger.Debug("configuration loaded", zap.String("path", path))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// no config needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "plant-doctor %s\n", plantdoctor.GetVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/plant-doctor/config.yaml)")

	rootCmd.AddCommand(serveCmd, analyzeCmd, configCmd, versionCmd)
}

// warnMissingKey prints the startup banner shown when remedies cannot be generated
func warnMissingKey(c *config.Config) {
	if c.HasLLMCredentials() {
		return
	}
	env := c.APIKeyEnv()
	line := strings.Repeat("=", 70)

	fmt.Fprintf(os.Stderr, "\n%s\n", line)
	fmt.Fprintf(os.Stderr, "⚠️  WARNING: %s not found!\n", env)
	fmt.Fprintf(os.Stderr, "%s\n", line)
	fmt.Fprintf(os.Stderr, "\nTo use the LLM features, please set your %s API key:\n", c.LLM.Provider)
	fmt.Fprintf(os.Stderr, "  - Windows: set %s=your_key_here\n", env)
	fmt.Fprintf(os.Stderr, "  - Linux/Mac: export %s=your_key_here\n", env)
	fmt.Fprintf(os.Stderr, "\nOr add it to a .env file in the project directory.\n")
	fmt.Fprintf(os.Stderr, "\nThe app will still run, but remedy generation will not work.\n")
	fmt.Fprintf(os.Stderr, "%s\n\n", line)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
