package main

import (
	"fmt"
	"os"

	"github.com/sentimentscope/catalog/config"
	"github.com/sentimentscope/catalog/internal/infrastructure/cache"
	"github.com/sentimentscope/catalog/internal/infrastructure/catalogapi"
	"github.com/sentimentscope/catalog/internal/infrastructure/fallback"
	"github.com/sentimentscope/catalog/internal/usecase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool
	apiURL  string
	offline bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "SentimentScope product catalog",
	Long: `catalog serves and queries the SentimentScope product catalog.

Products, brands and topics are loaded from the catalog aggregation API.
When the API cannot be reached a built-in fallback catalog is used instead.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.API.BaseURL = apiURL
		}
		if offline {
			cfg.Catalog.UseRemote = false
		}

		logger, err = buildLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Catalog API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use the built-in fallback catalog only")

	productsCmd.Flags().StringVar(&productFilter.sentiment, "sentiment", "", "Filter by sentiment (positive, neutral, negative)")
	productsCmd.Flags().StringVar(&productFilter.brand, "brand", "", "Filter by brand")
	productsCmd.Flags().StringVar(&productFilter.topic, "topic", "", "Filter by topic")
	productsCmd.Flags().StringVarP(&productFilter.search, "query", "q", "", "Filter by text in name, description or brand")
	productsCmd.Flags().IntVar(&productFilter.rating, "rating", 0, "Filter by rounded rating (1-5)")

	searchCmd.Flags().StringVar(&searchFilter.sentiment, "sentiment", "", "Restrict to a sentiment")
	searchCmd.Flags().StringVar(&searchFilter.brand, "brand", "", "Restrict to a brand")

	rootCmd.AddCommand(serveCmd, productsCmd, searchCmd, statusCmd)
}

// buildLogger creates the process logger. Logs go to stderr so command output stays clean.
func buildLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

// newCatalogService wires the response cache, transport, fallback dataset and coordinator
func newCatalogService(cfg *config.Config, logger *zap.Logger) (*usecase.CatalogService, error) {
	dataset, err := fallback.Load()
	if err != nil {
		return nil, err
	}

	client := catalogapi.NewClient(catalogapi.ClientConfig{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		ProbeTimeout:      cfg.API.ProbeTimeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	}, cache.NewMemoryCache(), logger)

	return usecase.NewCatalogService(client, dataset, logger, usecase.CatalogServiceConfig{
		DisableRemote:        !cfg.Catalog.UseRemote,
		PhoneLimit:           cfg.API.PhoneLimit,
		FreshnessWindow:      cfg.Catalog.FreshnessWindow,
		RefreshInterval:      cfg.Catalog.RefreshInterval,
		SentimentConcurrency: cfg.Catalog.SentimentConcurrency,
	}), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
