package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dd0wney/qroute/pkg/circuit"
	"github.com/dd0wney/qroute/pkg/config"
	"github.com/dd0wney/qroute/pkg/logging"
	"github.com/dd0wney/qroute/pkg/metrics"
	"github.com/dd0wney/qroute/pkg/runner"
	"github.com/dd0wney/qroute/pkg/validation"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults are used when empty)")
	policyName := flag.String("policy", "", "Override evaluation.policy (random or greedy)")
	episodes := flag.Int("episodes", 0, "Override evaluation.episodes")
	workers := flag.Int("workers", 0, "Override evaluation.workers")
	outDir := flag.String("out", "", "Write routed circuits as QASM into this directory")
	jsonOut := flag.Bool("json", false, "Print results as JSON lines")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] circuit.qasm...\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel())
	reg := metrics.NewRegistry()

	template, err := cfg.BuildWith(logger, reg)
	if err != nil {
		log.Fatalf("Failed to build environment: %v", err)
	}

	policy, err := runner.NamedPolicy(validation.DefaultOr(*policyName, cfg.Evaluation.Policy))
	if err != nil {
		log.Fatalf("Invalid policy: %v", err)
	}

	jobs, err := loadJobs(flag.Args())
	if err != nil {
		log.Fatalf("Failed to load circuits: %v", err)
	}

	eval, err := runner.NewEvaluator(template, runner.Options{
		Episodes: validation.DefaultOrInt(*episodes, cfg.Evaluation.Episodes),
		Workers:  validation.DefaultOrInt(*workers, cfg.Evaluation.Workers),
		Seed:     cfg.Evaluation.Seed,
		Policy:   policy,
		Logger:   logger,
		Metrics:  reg,
	})
	if err != nil {
		log.Fatalf("Failed to create evaluator: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := eval.Evaluate(ctx, jobs)
	if err != nil {
		log.Printf("Evaluation interrupted: %v", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		for _, res := range results {
			if err := enc.Encode(res); err != nil {
				log.Fatalf("Failed to encode result: %v", err)
			}
		}
	} else {
		printTable(template.Variant(), results)
	}

	if *outDir != "" {
		if err := writeRouted(*outDir, results); err != nil {
			log.Fatalf("Failed to write routed circuits: %v", err)
		}
	}

	for _, res := range results {
		if res.Err != nil {
			os.Exit(1)
		}
	}
}

func loadJobs(paths []string) ([]runner.Job, error) {
	jobs := make([]runner.Job, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		c, err := circuit.ParseQASM(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		jobs = append(jobs, runner.Job{Name: name, Circuit: c})
	}
	return jobs, nil
}

func printTable(variant string, results []runner.Result) {
	fmt.Printf("qroute - %s routing\n", variant)
	fmt.Printf("====================\n\n")
	fmt.Printf("%-20s %8s %6s %8s %6s %6s %12s\n", "circuit", "reward", "swaps", "bridges", "cnots", "depth", "reliability")
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("%-20s error: %v\n", res.Name, res.Err)
			continue
		}
		fmt.Printf("%-20s %8.3f %6d %8d %6d %6d %12.6f\n",
			res.Name, res.Reward, res.Swaps, res.Bridges, res.CNOTs, res.Depth, res.Reliability)
	}
}

func writeRouted(dir string, results []runner.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, res := range results {
		if res.Routed == nil {
			continue
		}
		path := filepath.Join(dir, res.Name+".routed.qasm")
		if err := os.WriteFile(path, []byte(res.Routed.QASM()), 0o644); err != nil {
			return err
		}
	}
	return nil
}
