// Command planrun is the minimal command-line surface (§6.6): submit a
// query, start the resulting plan, subscribe locally, and print events to
// stdout as they arrive. An additional "serve" subcommand runs the
// illustrative HTTP+SSE and websocket transports for manual exercising of
// the streaming contract.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/quillhq/planrunner/runtime/agent/boundary"
	"github.com/quillhq/planrunner/runtime/agent/boundary/httpapi"
	"github.com/quillhq/planrunner/runtime/agent/boundary/redissink"
	"github.com/quillhq/planrunner/runtime/agent/boundary/wsapi"
	"github.com/quillhq/planrunner/runtime/agent/config"
	"github.com/quillhq/planrunner/runtime/agent/demotools"
	"github.com/quillhq/planrunner/runtime/agent/execreg"
	"github.com/quillhq/planrunner/runtime/agent/interp"
	"github.com/quillhq/planrunner/runtime/agent/llm"
	"github.com/quillhq/planrunner/runtime/agent/llm/anthropic"
	"github.com/quillhq/planrunner/runtime/agent/llm/bedrock"
	"github.com/quillhq/planrunner/runtime/agent/llm/openai"
	"github.com/quillhq/planrunner/runtime/agent/planner"
	"github.com/quillhq/planrunner/runtime/agent/stream"
	"github.com/quillhq/planrunner/runtime/agent/telemetry/promreg"
	"github.com/quillhq/planrunner/runtime/agent/tools"
)

var httpAddr string
var wsAddr string

func main() {
	root := &cobra.Command{
		Use:   "planrun [query]",
		Short: "Plan and run a natural-language query against the tool registry.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), args[0])
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the illustrative HTTP+SSE and websocket transports.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveTransports(cmd.Context())
		},
	}
	serve.Flags().StringVar(&httpAddr, "http-addr", ":8080", "address for the HTTP+SSE transport")
	serve.Flags().StringVar(&wsAddr, "ws-addr", ":8081", "address for the websocket transport")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildAdapter(ctx context.Context, cfg config.Config) (*boundary.Adapter, *prometheus.Registry, error) {
	client, err := buildLLMClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	toolRegistry := tools.New()
	if err := toolRegistry.Register(demotools.CurrentTimeSpec, demotools.CurrentTime); err != nil {
		return nil, nil, err
	}
	if err := toolRegistry.Register(demotools.ListFilesSpec, demotools.NewListFiles(cfg.ListFilesLimit)); err != nil {
		return nil, nil, err
	}

	var mirror stream.Sink
	if cfg.StreamRedisAddr != "" {
		mirror = redissink.New(cfg.StreamRedisAddr)
	}

	metricsRegistry := prometheus.NewRegistry()
	registry := execreg.New(execreg.Options{
		SubscriberBuffer: cfg.SubscriberBuffer,
		Grace:            time.Duration(cfg.ExecutionGraceSeconds) * time.Second,
		Metrics:          promreg.New(metricsRegistry),
		Mirror:           mirror,
	})

	pl := planner.New(client, toolRegistry, cfg.MaxAgentIterations).WithModel(cfg.LLMModel)
	ip := interp.New(registry, toolRegistry, client, cfg.MaxAgentIterations)

	return boundary.New(pl, ip, registry, toolRegistry), metricsRegistry, nil
}

func buildLLMClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		return anthropic.NewFromAPIKey(cfg.LLMAPIKey, cfg.LLMModel)
	case "openai":
		return openai.NewFromAPIKey(cfg.LLMAPIKey, cfg.LLMModel)
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("planrun: loading AWS config: %w", err)
		}
		return bedrock.New(bedrock.Options{
			Runtime:      bedrockruntime.NewFromConfig(awsCfg),
			DefaultModel: cfg.LLMModel,
		})
	default:
		return nil, fmt.Errorf("planrun: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func runOnce(ctx context.Context, query string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	adapter, _, err := buildAdapter(ctx, cfg)
	if err != nil {
		return err
	}

	pl, err := adapter.Submit(ctx, query)
	if err != nil {
		return err
	}

	id, err := adapter.Start(pl, query)
	if err != nil {
		return err
	}

	replay, live, detach, err := adapter.Subscribe(id)
	if err != nil {
		return err
	}
	defer detach()

	var terminal stream.EventType
	for _, ev := range replay {
		printEvent(ev)
		if ev.Type().Terminal() {
			terminal = ev.Type()
		}
	}
	if terminal == "" {
		for ev := range live {
			printEvent(ev)
			if ev.Type().Terminal() {
				terminal = ev.Type()
				break
			}
		}
	}

	switch terminal {
	case stream.EventExecutionFailed:
		os.Exit(1)
	case stream.EventExecutionStopped:
		os.Exit(2)
	}
	return nil
}

func printEvent(ev stream.Event) {
	payload, _ := json.Marshal(ev.Payload())
	fmt.Printf("%s %s\n", ev.Type(), payload)
}

func serveTransports(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	adapter, metricsRegistry, err := buildAdapter(ctx, cfg)
	if err != nil {
		return err
	}

	heartbeat := time.Duration(cfg.HeartbeatIntervalSeconds) * time.Second
	httpHandler := httpapi.New(adapter, heartbeat, metricsRegistry)
	wsHandler := wsapi.New(adapter, heartbeat)

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/executions/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		wsHandler.ServeSubscribe(w, r, r.PathValue("id"))
	})

	errc := make(chan error, 2)
	go func() {
		fmt.Printf("planrun serve: websocket on %s\n", wsAddr)
		errc <- http.ListenAndServe(wsAddr, wsMux)
	}()
	go func() {
		fmt.Printf("planrun serve: http on %s\n", httpAddr)
		errc <- http.ListenAndServe(httpAddr, httpHandler.Mux())
	}()
	return <-errc
}
