package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hfinfer/internal/logger"
	"github.com/jmylchreest/hfinfer/pkg/hub"
	"github.com/jmylchreest/hfinfer/pkg/model/inference"
	"github.com/jmylchreest/hfinfer/pkg/model/registry"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve MODEL...",
	Short: "Show how models would be called",
	Long: `Resolve each model to its response type, endpoint and payload style,
using the model table, an optional --type override, and the Hub's pipeline
tag for unknown models. No inference request is made and no API token is
required.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().String("type", "", "type override for models not in the table: text, image")
	resolveCmd.Flags().String("format", "yaml", "output format: json, yaml")
}

type resolution struct {
	Model    string `json:"model" yaml:"model"`
	Known    bool   `json:"known" yaml:"known"`
	Type     string `json:"type" yaml:"type"`
	Payload  string `json:"payload" yaml:"payload"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	var opts inference.CallOptions
	if typ, _ := cmd.Flags().GetString("type"); typ != "" {
		t, err := registry.ParseType(typ)
		if err != nil {
			return err
		}
		opts.Type = t
	}

	var lookup inference.ModelInfoProvider
	if !viper.GetBool("no_lookup") {
		lookup = hub.New(hub.Config{
			BaseURL: viper.GetString("hub_url"),
			Token:   viper.GetString("api_key"),
		})
	}
	resolver := inference.NewResolver(reg, lookup, logger.Logger())

	baseURL := viper.GetString("base_url")

	out := make([]resolution, 0, len(args))
	for _, model := range args {
		e := resolver.Resolve(cmd.Context(), model, opts)
		out = append(out, resolution{
			Model:    model,
			Known:    reg.Has(model),
			Type:     string(e.Type),
			Payload:  string(e.Style()),
			Endpoint: inference.EndpointURL(baseURL, e),
		})
	}

	format, _ := cmd.Flags().GetString("format")
	return encode(cmd.OutOrStdout(), format, out)
}

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
