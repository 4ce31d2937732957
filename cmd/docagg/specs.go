package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aevon-lab/docagg/internal/aggregation"
	corecfg "github.com/aevon-lab/docagg/internal/core/config"
	"github.com/aevon-lab/docagg/internal/engine"
	"github.com/aevon-lab/docagg/internal/engine/mongodb"
	"github.com/aevon-lab/docagg/internal/expression"
	"github.com/aevon-lab/docagg/internal/query"
	"github.com/aevon-lab/docagg/internal/schema"
	schemaStorage "github.com/aevon-lab/docagg/internal/schema/storage"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
)

// errOffline is reported when compiling a spec needs to query the
// collection, as histograms without explicit edges do.
var errOffline = errors.New("compiling this spec needs a database connection; use the run command")

// offlineExecutor refuses every request.
type offlineExecutor struct{}

func (offlineExecutor) Aggregate(_ context.Context, collection string, _ []bson.D) ([]bson.M, error) {
	return nil, &aggregation.ExecutionError{Collection: collection, Err: errOffline}
}

var _ engine.Executor = offlineExecutor{}

type specFlags struct {
	collection string
	file       string
	schemaFile string
	tenant     string
	version    int
}

func (f *specFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.collection, "collection", "c", "", "Collection to aggregate")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Spec file (.yaml, .yml or .json); - reads JSON from stdin")
	cmd.Flags().StringVar(&f.schemaFile, "schema-file", "", "Collection schema file (.yaml or .proto) used instead of the schema directory")
	cmd.Flags().StringVar(&f.tenant, "tenant", "", "Tenant whose collection schemas are used")
	cmd.Flags().IntVar(&f.version, "version", 0, "Collection schema version (0 selects the latest)")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("file")
}

// schemas returns the registry the command compiles against. With
// --schema-file the file is registered as the only platform schema, under
// --version or version 1.
func (f *specFlags) schemas(ctx context.Context, cfg *corecfg.Config) (*schema.Registry, error) {
	if f.schemaFile == "" {
		return newSchemaRegistry(cfg), nil
	}

	definition, err := os.ReadFile(f.schemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	format := schema.FormatYaml
	if strings.ToLower(filepath.Ext(f.schemaFile)) == ".proto" {
		format = schema.FormatProtobuf
	}
	version := max(f.version, 1)

	reg := schema.NewRegistry(schemaStorage.NewMemoryRepository(), newFormatRegistry())
	if _, err := reg.Register(ctx, schema.PlatformTenantID, f.collection, version, format, definition); err != nil {
		return nil, fmt.Errorf("failed to register schema file: %w", err)
	}
	return reg, nil
}

// readSpecs loads serialized specs from a YAML or JSON file.
func readSpecs(path string, stdin io.Reader) ([]aggregation.Spec, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read specs: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return aggregation.ParseYAML(data)
	}
	return aggregation.ParseDocuments(data)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCompileCmd() *cobra.Command {
	var flags specFlags
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the pipelines compiled from a spec file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			specs, err := readSpecs(flags.file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			registry, err := flags.schemas(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			svc := query.NewService(registry, offlineExecutor{}, nil, query.Options{
				TenantID:    firstNonEmpty(flags.tenant, cfg.Schema.TenantID),
				MaxParallel: cfg.Aggregation.MaxParallel,
				DefaultBins: cfg.Aggregation.DefaultBins,
			})
			resp, err := svc.Compile(cmd.Context(), "", flags.collection, flags.version, specs)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	flags.register(cmd)
	return cmd
}

func newRunCmd() *cobra.Command {
	var flags specFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a spec file against MongoDB and print the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			specs, err := readSpecs(flags.file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			registry, err := flags.schemas(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			exec, err := mongodb.Connect(cmd.Context(), cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout)
			if err != nil {
				return err
			}
			defer exec.Close(context.Background())

			svc := query.NewService(registry, exec, nil, query.Options{
				TenantID:    firstNonEmpty(flags.tenant, cfg.Schema.TenantID),
				MaxParallel: cfg.Aggregation.MaxParallel,
				DefaultBins: cfg.Aggregation.DefaultBins,
			})
			resp, err := svc.Run(cmd.Context(), "", flags.collection, flags.version, specs)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	flags.register(cmd)
	return cmd
}

func newExprCmd() *cobra.Command {
	var (
		prefix  string
		encoded bool
	)
	cmd := &cobra.Command{
		Use:   "expr <expression>",
		Short: "Print the aggregation expression compiled from a textual expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := expression.Parse(args[0])
			if err != nil {
				return err
			}
			if encoded {
				return writeJSON(cmd.OutOrStdout(), e.Encode())
			}

			out, err := bson.MarshalExtJSONIndent(bson.D{{Key: "expr", Value: e.Compile(prefix)}}, false, false, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render expression: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Field path prefix applied to field references")
	cmd.Flags().BoolVar(&encoded, "encoded", false, "Print the serialized expression tree instead")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
