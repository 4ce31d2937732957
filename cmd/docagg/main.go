package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	corecfg "github.com/aevon-lab/docagg/internal/core/config"
	"github.com/aevon-lab/docagg/internal/schema"
	"github.com/aevon-lab/docagg/internal/schema/formats/protobuf"
	"github.com/aevon-lab/docagg/internal/schema/formats/yaml"
	schemaStorage "github.com/aevon-lab/docagg/internal/schema/storage"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "docagg",
	Short:         "Compile and run document aggregations against MongoDB",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "docagg.yaml", "Path to configuration file")
	rootCmd.AddCommand(newServeCmd(), newCompileCmd(), newRunCmd(), newExprCmd())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration and installs the default logger at
// the configured level.
func loadConfig() (*corecfg.Config, error) {
	cfg, err := corecfg.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)
	return cfg, nil
}

func newFormatRegistry() *schema.FormatRegistry {
	formats := schema.NewFormatRegistry()
	formats.RegisterFormat(schema.FormatProtobuf, protobuf.NewCompiler())
	formats.RegisterFormat(schema.FormatYaml, yaml.NewCompiler())
	return formats
}

func newSchemaRegistry(cfg *corecfg.Config) *schema.Registry {
	repo := schemaStorage.NewFileSystemRepository(cfg.Schema.Path)
	return schema.NewRegistryWithCache(repo, newFormatRegistry(), cfg.Schema.CacheCapacity)
}
