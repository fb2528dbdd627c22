package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"framexpr/internal/config"
	"framexpr/internal/engine"
	"framexpr/internal/model"
	"framexpr/internal/notify"
	"framexpr/internal/store"
	"framexpr/internal/values"
)

var (
	runConfigPath string
	runSeed       int64
	runLength     int
	runLookAhead  int
	runStoreDSN   string
	runNotifyAddr string
)

var runCmd = &cobra.Command{
	Use:   "run FIXTURE.json",
	Short: "Load a function/coupling/aspect fixture and run solveModel",
	Args:  cobra.ExactArgs(1),
	Run:   runCommand,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to a framexpr.toml config file")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Override the PRNG seed (0 keeps the config/default value)")
	runCmd.Flags().IntVar(&runLength, "run-length", 0, "Override the number of cycles to run (0 keeps the config/default value)")
	runCmd.Flags().IntVar(&runLookAhead, "look-ahead", -1, "Override the look-ahead window past the run length (-1 keeps the config/default value)")
	runCmd.Flags().StringVar(&runStoreDSN, "store", "", "Override the diagnostics store DSN (empty keeps the config value)")
	runCmd.Flags().StringVar(&runNotifyAddr, "notify", "", "Start the live WebSocket broadcaster at this address (empty disables it)")
}

func runCommand(cmd *cobra.Command, args []string) {
	cfg := loadConfigOrDefault(runConfigPath)
	if runSeed != 0 {
		cfg.Engine.Seed = runSeed
	}
	if runLength != 0 {
		cfg.Engine.RunLength = runLength
	}
	if runLookAhead >= 0 {
		cfg.Engine.LookAhead = runLookAhead
	}
	if runStoreDSN != "" {
		cfg.Store.DSN = runStoreDSN
	}
	if runNotifyAddr != "" {
		cfg.Notify.Enabled = true
		cfg.Notify.Addr = runNotifyAddr
	}

	fixturePath := args[0]
	f, err := os.Open(fixturePath)
	if err != nil {
		log.Fatalf("framexpr: could not open fixture: %v", err)
	}
	defer f.Close()

	var fx model.Fixture
	if err := json.NewDecoder(f).Decode(&fx); err != nil {
		log.Fatalf("framexpr: could not decode fixture: %v", err)
	}

	graph, err := model.BuildFromFixture(fx)
	if err != nil {
		log.Fatalf("framexpr: could not build model: %v", err)
	}

	var broadcaster *notify.Broadcaster
	if cfg.Notify.Enabled {
		broadcaster = notify.New(cfg.Notify.Addr)
		if err := broadcaster.Start(); err != nil {
			log.Fatalf("framexpr: could not start notify broadcaster: %v", err)
		}
		defer broadcaster.Stop(context.Background())
		fmt.Printf("notify: broadcasting at ws://%s/events\n", cfg.Notify.Addr)
	}

	eng := engine.New(graph, nil, cfg.Engine.RunLength, cfg.Engine.LookAhead, cfg.Engine.Seed)
	eng.Notifier = broadcaster
	eng.RegisterAll()
	eng.ResetAll()

	started := time.Now()
	summary, err := eng.SolveModel()
	if err != nil {
		log.Fatalf("framexpr: solveModel failed: %v", err)
	}
	fmt.Println(summary)

	for _, f := range graph.Functions() {
		for _, a := range graph.OutputAspects(f) {
			expr, ok := eng.Expression(a.ID)
			if !ok {
				continue
			}
			fmt.Printf("  %s = %s\n", a.Name, values.Format(expr.Result(eng, summary.CyclesRun)))
		}
	}

	if cfg.Store.DSN != "" {
		persistRun(cfg.Store.DSN, started, summary, eng)
	}
}

func persistRun(dsn string, started time.Time, summary *engine.RunSummary, eng *engine.Engine) {
	s, err := store.Open(dsn)
	if err != nil {
		log.Fatalf("framexpr: could not open store: %v", err)
	}
	defer s.Close()

	completed := time.Now()
	runID := uuid.NewString()
	if err := s.SaveRun(store.RunRecord{
		ID:          runID,
		StartedAt:   started,
		CompletedAt: &completed,
		CyclesRun:   summary.CyclesRun,
		Halted:      summary.Halted,
		IssueCount:  summary.Issues,
	}); err != nil {
		log.Fatalf("framexpr: could not save run: %v", err)
	}
	for i, issue := range eng.Issues.All() {
		if err := s.SaveIssue(runID, fmt.Sprintf("%s-%d", runID, i), issue); err != nil {
			log.Fatalf("framexpr: could not save issue: %v", err)
		}
	}
	fmt.Printf("store: run %s persisted\n", runID)
}

func loadConfigOrDefault(path string) config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Fatalf("framexpr: could not load config: %v", err)
	}
	return cfg
}
