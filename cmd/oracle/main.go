// cmd/oracle/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bureaucracy-oracle/internal/common/config"
	"bureaucracy-oracle/internal/common/logger"
	"bureaucracy-oracle/internal/pipeline"
	pq "bureaucracy-oracle/internal/workers/oracle/process-question"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("oracle", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a config file (default: configs/config.yaml)")
	debug := fs.Bool("debug", false, "Show routing, search metadata and the flow trace")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: oracle [-config path] [-debug] [-json] \"question\"")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fs.Usage()
		return 2
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "❌ Error: %v\n", err)
		return 1
	}

	level := "warn"
	if *debug {
		level = "debug"
	}
	log := logger.NewZapAdapter(logger.NewWithOutput(level, "console", "stderr"))

	components, err := pipeline.Build(cfg, log, pipeline.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "❌ Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := components.Orchestrator.Process(ctx, question)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(stderr, "❌ Error: %v\n", err)
			return 1
		}
	} else {
		printResult(stdout, out)
		if *debug {
			printDebug(stdout, out)
		}
	}

	if !out.Success {
		return 3
	}
	return 0
}

func printResult(w io.Writer, out *pq.Output) {
	if !out.Success {
		fmt.Fprintf(w, "\n❌ %s\n", out.Message)
		fmt.Fprintf(w, "💰 Total cost: $%.4f\n", out.Cost)
		return
	}

	rule := strings.Repeat("=", 50)
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, out.Response, rule)
	if out.Decision != nil && len(out.Decision.Agents) > 0 {
		fmt.Fprintf(w, "\n🤝 Agents consulted: %s\n", strings.Join(out.Decision.Agents, ", "))
	}
	fmt.Fprintf(w, "💰 Total cost: $%.4f\n", out.Cost)
}

func printDebug(w io.Writer, out *pq.Output) {
	fmt.Fprintf(w, "\n🔍 Debug Information (request %s, %d ms):\n", out.RequestID, out.DurationMs)

	if d := out.Decision; d != nil {
		fmt.Fprintf(w, "\nRouting: agents=%v primary=%s confidence=%.2f\n  reason: %s\n",
			d.Agents, d.PrimaryAgent, d.Confidence, d.Reason)
	}

	if out.Decision != nil {
		for _, agent := range out.Decision.Agents {
			a, ok := out.Answers[agent]
			if !ok {
				continue
			}
			meta := a.SearchMetadata
			fmt.Fprintf(w, "\n[%s] search used=%t count=%d cost=$%.4f\n", strings.ToUpper(agent), meta.Used, meta.Count, a.Cost)
			for _, s := range meta.SourcesConsulted {
				fmt.Fprintf(w, "  - %s\n", s)
			}
			if a.Error != "" {
				fmt.Fprintf(w, "  error: %s\n", a.Error)
			}
		}
	}

	fmt.Fprintln(w, "\nFlow:")
	for _, step := range out.FlowTrace {
		label := step.Step
		if step.Agent != "" && !strings.HasSuffix(label, step.Agent) {
			label += " (" + step.Agent + ")"
		}
		fmt.Fprintf(w, "  %-24s %6d ms  $%.4f\n", label, step.DurationMs, step.Cost)
	}
}
