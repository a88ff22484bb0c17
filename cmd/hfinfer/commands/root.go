// Package commands implements the CLI commands for hfinfer.
package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/hfinfer/internal/logger"
	"github.com/jmylchreest/hfinfer/pkg/model/inference"
	"github.com/jmylchreest/hfinfer/pkg/model/registry"
)

var rootCmd = &cobra.Command{
	Use:   "hfinfer",
	Short: "Run prompts against Hugging Face Inference API models",
	Long: `hfinfer sends prompts to text and image models on the Hugging Face
Inference API and prints normalized results as JSON, JSONL, or YAML.

The API token is read from --api-key, HFINFER_API_KEY, HUGGINGFACE_API_KEY,
a .env file, or the api_key key of $HOME/.hfinfer.yaml.

Examples:
  # Chat with Llama 3
  hfinfer generate -m meta-llama/Meta-Llama-3-8B-Instruct "Write a haiku about Go"

  # Generate an image and save it
  hfinfer generate -m CompVis/stable-diffusion-v1-4 --image-out fox.png "a red fox"

  # Ask several models at once
  hfinfer generate -m gpt2 -m facebook/bart-large-cnn --format jsonl "Summarize: ..."

  # See how an unknown model would be called
  hfinfer resolve stabilityai/stable-diffusion-xl-base-1.0`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.hfinfer.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")

	flags.StringP("api-key", "k", "", "Hugging Face API token")
	flags.String("base-url", inference.DefaultBaseURL, "Inference API base URL")
	flags.String("hub-url", "", "Hub API base URL for model metadata (default https://huggingface.co)")
	flags.String("models", "", "models file (JSON or YAML) extending the built-in model table")
	flags.Bool("no-lookup", false, "never query the Hub for unknown models")
	flags.Duration("timeout", 30*time.Second, "per-attempt request timeout")
	flags.Int("max-retries", 2, "retries after the first attempt (-1 disables)")
	flags.Duration("retry-delay", time.Second, "delay between attempts (negative for none)")

	for key, name := range map[string]string{
		"config":      "config",
		"debug":       "debug",
		"quiet":       "quiet",
		"log_json":    "log-json",
		"api_key":     "api-key",
		"base_url":    "base-url",
		"hub_url":     "hub-url",
		"models":      "models",
		"no_lookup":   "no-lookup",
		"timeout":     "timeout",
		"max_retries": "max-retries",
		"retry_delay": "retry-delay",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

func initConfig() {
	// .env in the working directory, if any. Existing variables win.
	_ = godotenv.Load()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".hfinfer")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("HFINFER")
	viper.AutomaticEnv()
	_ = viper.BindEnv("api_key", "HFINFER_API_KEY", "HUGGINGFACE_API_KEY", "HF_TOKEN")

	if err := viper.ReadInConfig(); err == nil {
		logger.Debug("using config file", "path", viper.ConfigFileUsed())
	}

	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// clientConfig reads the inference settings from viper.
func clientConfig() inference.Config {
	return inference.Config{
		APIToken:   viper.GetString("api_key"),
		BaseURL:    viper.GetString("base_url"),
		HubURL:     viper.GetString("hub_url"),
		Timeout:    viper.GetDuration("timeout"),
		MaxRetries: viper.GetInt("max_retries"),
		RetryDelay: viper.GetDuration("retry_delay"),
	}
}

// loadRegistry returns the model table, extended by the --models file.
func loadRegistry() (*registry.Registry, error) {
	path := viper.GetString("models")
	if path == "" {
		return registry.Default(), nil
	}
	f, err := registry.FromFile(path)
	if err != nil {
		return nil, err
	}
	reg, err := f.Registry()
	if err != nil {
		return nil, fmt.Errorf("models file %s: %w", path, err)
	}
	logger.Debug("loaded models file", "path", path, "models", len(reg.List()), "replace", f.Replace)
	return reg, nil
}

// newClient builds an inference client from the CLI configuration.
func newClient(opts ...inference.Option) (*inference.Client, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	all := []inference.Option{
		inference.WithRegistry(reg),
		inference.WithLogger(logger.Logger()),
	}
	if viper.GetBool("no_lookup") {
		all = append(all, inference.WithLookup(nil))
	}
	all = append(all, opts...)

	client, err := inference.New(clientConfig(), all...)
	if err != nil {
		if inference.KindOf(err) == inference.KindEmptyToken {
			return nil, fmt.Errorf("%w (set --api-key or HUGGINGFACE_API_KEY)", err)
		}
		return nil, err
	}
	return client, nil
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
