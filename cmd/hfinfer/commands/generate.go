package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hfinfer/internal/logger"
	"github.com/jmylchreest/hfinfer/internal/metrics"
	"github.com/jmylchreest/hfinfer/internal/output"
	"github.com/jmylchreest/hfinfer/pkg/model/inference"
	"github.com/jmylchreest/hfinfer/pkg/model/registry"
)

var generateCmd = &cobra.Command{
	Use:   "generate [flags] PROMPT...",
	Short: "Send a prompt to one or more models",
	Long: `Send a prompt to one or more models and print the normalized results.

The prompt is the remaining arguments joined by spaces, or stdin when the
only argument is "-". Each --model runs concurrently.

Parameters are merged into the top level of the request body. Keys may use
dot paths and values are parsed as JSON when possible:

  --param parameters.max_new_tokens=50 --param options.wait_for_model=true

Examples:
  hfinfer generate -m meta-llama/Meta-Llama-3-8B-Instruct \
      --history chat.yaml --max-tokens 200 "And in French?"

  echo "a watercolor lighthouse" | hfinfer generate \
      -m CompVis/stable-diffusion-v1-4 --image-out lighthouse.png -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	flags := generateCmd.Flags()
	flags.StringArrayP("model", "m", nil, "model identifier (repeatable)")
	flags.String("type", "", "response type for models not in the model table: text, image")
	flags.StringArray("param", nil, "payload parameter as key=value (repeatable)")
	flags.String("params-json", "", "payload parameters as a JSON object, or @file")
	flags.String("history", "", "prior chat turns as a JSON or YAML list of {role, content}")
	flags.Int("max-tokens", 0, "chat completion token limit (default 500)")

	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")
	flags.String("image-out", "", "write images to this file instead of inlining data URIs")
	flags.String("metrics-file", "", "write Prometheus metrics for this run to a textfile")
	flags.IntP("concurrency", "c", 4, "models queried at once")

	_ = generateCmd.MarkFlagRequired("model")
}

// generateRequest is one CLI invocation, independent of flag parsing.
type generateRequest struct {
	Prompt      string
	Models      []string
	Options     []inference.CallOption
	ImageOut    string
	Concurrency int
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	flags := cmd.Flags()

	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	models, _ := flags.GetStringArray("model")
	callOpts, err := callOptionsFromFlags(cmd)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	metricsFile, _ := flags.GetString("metrics-file")
	var clientOpts []inference.Option
	if metricsFile != "" {
		collector = metrics.NewCollector("hfinfer", logger.Logger())
		clientOpts = append(clientOpts, inference.WithObserver(collector))
	}

	client, err := newClient(clientOpts...)
	if err != nil {
		logError("%v", err)
		return err
	}

	out := cmd.OutOrStdout()
	if outPath, _ := flags.GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", outPath, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	formatStr, _ := flags.GetString("format")
	writer, err := output.NewWriter(out, output.Format(formatStr))
	if err != nil {
		return err
	}

	imageOut, _ := flags.GetString("image-out")
	concurrency, _ := flags.GetInt("concurrency")

	records := generate(ctx, client, generateRequest{
		Prompt:      prompt,
		Models:      models,
		Options:     callOpts,
		ImageOut:    imageOut,
		Concurrency: concurrency,
	})

	failed := 0
	for _, rec := range records {
		if !rec.OK() {
			failed++
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if collector != nil {
		if err := prometheus.WriteToTextfile(metricsFile, collector.Registry()); err != nil {
			logger.Warn("failed to write metrics file", "path", metricsFile, "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d models returned no result", failed, len(records))
	}
	return nil
}

// generate queries every model and returns one record per model, in order.
func generate(ctx context.Context, client *inference.Client, req generateRequest) []output.Record {
	records := make([]output.Record, len(req.Models))

	g, ctx := errgroup.WithContext(ctx)
	if req.Concurrency > 0 {
		g.SetLimit(req.Concurrency)
	}

	for i, model := range req.Models {
		i, model := i, model
		g.Go(func() error {
			start := time.Now()
			res, err := client.Generate(ctx, req.Prompt, model, req.Options...)
			rec := output.NewRecord(model, res, err, time.Since(start))

			if err != nil {
				logger.WarnContext(ctx, "model returned no result",
					"model", model,
					"kind", string(inference.KindOf(err)),
					"error", err)
			} else if req.ImageOut != "" && res.IsImage() {
				path := output.ImagePath(req.ImageOut, model, len(req.Models) > 1)
				if err := output.SaveImage(&rec, path); err != nil {
					rec.Error = err.Error()
				} else {
					logger.InfoContext(ctx, "saved image", "model", model, "path", path, "size", rec.ImageSize)
				}
			}

			records[i] = rec
			// Failures are per model; never cancel the others.
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// readPrompt joins args, or reads stdin for a single "-".
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	return strings.Join(args, " "), nil
}

func callOptionsFromFlags(cmd *cobra.Command) ([]inference.CallOption, error) {
	flags := cmd.Flags()
	var opts []inference.CallOption

	if typ, _ := flags.GetString("type"); typ != "" {
		t, err := registry.ParseType(typ)
		if err != nil {
			return nil, err
		}
		opts = append(opts, inference.WithType(t))
	}

	paramsJSON, _ := flags.GetString("params-json")
	pairs, _ := flags.GetStringArray("param")
	params, err := parseParams(paramsJSON, pairs)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		opts = append(opts, inference.WithParameters(params))
	}

	if path, _ := flags.GetString("history"); path != "" {
		history, err := loadHistory(path)
		if err != nil {
			return nil, err
		}
		if !inference.ValidHistory(history) {
			logger.Warn("history has turns without a known role or content and will be ignored", "path", path)
		}
		opts = append(opts, inference.WithHistory(history...))
	}

	if n, _ := flags.GetInt("max-tokens"); n > 0 {
		opts = append(opts, inference.WithMaxTokens(n))
	}
	return opts, nil
}

// parseParams builds the parameter map from a JSON object (or @file) and
// key=value pairs applied on top. Keys are sjson paths; values that parse as
// JSON are kept typed, anything else is a string.
func parseParams(base string, pairs []string) (map[string]any, error) {
	doc := "{}"
	if base != "" {
		if strings.HasPrefix(base, "@") {
			data, err := os.ReadFile(strings.TrimPrefix(base, "@"))
			if err != nil {
				return nil, fmt.Errorf("read params file: %w", err)
			}
			base = string(data)
		}
		if !gjson.Valid(base) || !gjson.Parse(base).IsObject() {
			return nil, fmt.Errorf("--params-json must be a JSON object")
		}
		doc = base
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q (want key=value)", pair)
		}
		var err error
		if gjson.Valid(value) {
			doc, err = sjson.SetRaw(doc, key, value)
		} else {
			doc, err = sjson.Set(doc, key, value)
		}
		if err != nil {
			return nil, fmt.Errorf("set param %s: %w", key, err)
		}
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(doc), &params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	return params, nil
}

// loadHistory reads chat turns from a JSON or YAML file.
func loadHistory(path string) ([]inference.Message, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- CLI tool reads user-specified file
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var history []inference.Message
	// YAML is a superset of JSON, so one decoder covers both.
	if err := yaml.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	return history, nil
}
