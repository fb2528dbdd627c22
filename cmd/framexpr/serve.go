package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"framexpr/internal/engine"
	"framexpr/internal/model"
	"framexpr/internal/notify"
)

var (
	serveConfigPath string
	serveAddr       string
	serveWait       time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve FIXTURE.json",
	Short: "Start the live notify broadcaster alongside a solveModel run",
	Long: "serve starts the WebSocket broadcaster first, waits for --wait so a " +
		"subscriber has time to connect, then runs solveModel and keeps the " +
		"broadcaster listening until interrupted.",
	Args: cobra.ExactArgs(1),
	Run:  serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a framexpr.toml config file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost:8765", "Address the broadcaster listens on")
	serveCmd.Flags().DurationVar(&serveWait, "wait", 2*time.Second, "How long to wait for subscribers before running the model")
}

func serveCommand(cmd *cobra.Command, args []string) {
	cfg := loadConfigOrDefault(serveConfigPath)
	cfg.Notify.Enabled = true
	if serveAddr != "" {
		cfg.Notify.Addr = serveAddr
	}

	fixturePath := args[0]
	f, err := os.Open(fixturePath)
	if err != nil {
		log.Fatalf("framexpr: could not open fixture: %v", err)
	}
	var fx model.Fixture
	decodeErr := json.NewDecoder(f).Decode(&fx)
	f.Close()
	if decodeErr != nil {
		log.Fatalf("framexpr: could not decode fixture: %v", decodeErr)
	}

	graph, err := model.BuildFromFixture(fx)
	if err != nil {
		log.Fatalf("framexpr: could not build model: %v", err)
	}

	broadcaster := notify.New(cfg.Notify.Addr)
	if err := broadcaster.Start(); err != nil {
		log.Fatalf("framexpr: could not start notify broadcaster: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		broadcaster.Stop(ctx)
	}()

	fmt.Printf("notify: broadcasting at ws://%s/events\n", cfg.Notify.Addr)
	fmt.Printf("serve: waiting %s for subscribers before running the model\n", serveWait)
	time.Sleep(serveWait)

	eng := engine.New(graph, nil, cfg.Engine.RunLength, cfg.Engine.LookAhead, cfg.Engine.Seed)
	eng.Notifier = broadcaster
	eng.RegisterAll()
	eng.ResetAll()

	summary, err := eng.SolveModel()
	if err != nil {
		log.Fatalf("framexpr: solveModel failed: %v", err)
	}
	fmt.Println(summary)

	fmt.Println("serve: run complete, broadcaster remains up — press Ctrl+C to exit")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
