/*
main.go - Application entry point

PURPOSE:
  Runs the transaction-error -> ticket reconciler, either as a one-shot
  batch over a reports file or as an HTTP intake service.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load YAML configuration (Jira credentials, ledger backend)
  3. Initialize the ledger store (JSON file or SQLite)
  4. Wire the Jira client and reconciler
  5. Run the batch, or serve the intake API with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to YAML config (default: ticketsync.yaml)
  -input   Reports file for one-shot mode (JSON array of reports)
  -serve   Run the HTTP intake API instead of a one-shot batch
  -port    HTTP port in serve mode (default: 8080)

CONFIG FILE:
  jira:
    base_url: https://jira.example.com/rest/api/2
    username: svc-payments
    api_token: "..."
    project_key: OPS
    issue_type: Bug
    transition_id: "31"
    timeout_seconds: 15
  ledger:
    backend: file          # or: sqlite
    path: jira_issues.json # or: ticketsync.db

EXIT CODES (one-shot mode):
  0  batch processed and ledger flushed (individual ticket failures are
     reported in the summary, not via the exit code)
  1  configuration, input, or ledger load/save failure

EXAMPLES:
  # One-shot batch
  ./ticketsync -config=ticketsync.yaml -input=reports.json

  # Intake service on port 3000
  ./ticketsync -config=ticketsync.yaml -serve -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - reconcile/reconciler.go: Batch semantics
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/ticketsync/api"
	"github.com/warp/ticketsync/jira"
	"github.com/warp/ticketsync/reconcile"
	"github.com/warp/ticketsync/store/file"
	"github.com/warp/ticketsync/store/sqlite"
)

// Config is the top-level YAML configuration.
type Config struct {
	Jira   jira.Config  `yaml:"jira"`
	Ledger LedgerConfig `yaml:"ledger"`
}

// LedgerConfig selects and locates the persistence backend.
type LedgerConfig struct {
	Backend string `yaml:"backend"` // "file" (default) or "sqlite"
	Path    string `yaml:"path"`
}

func main() {
	// Flags
	configPath := flag.String("config", "ticketsync.yaml", "YAML config path")
	inputPath := flag.String("input", "", "reports file for one-shot mode")
	serve := flag.Bool("serve", false, "run the HTTP intake API")
	port := flag.Int("port", 8080, "HTTP server port (serve mode)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize store
	var (
		store   reconcile.LedgerStore
		history api.RunHistory
	)
	switch cfg.Ledger.Backend {
	case "", "file":
		store = file.New(cfg.Ledger.Path)
	case "sqlite":
		dbStore, err := sqlite.New(cfg.Ledger.Path)
		if err != nil {
			log.Fatalf("Failed to initialize ledger database: %v", err)
		}
		defer dbStore.Close()
		store = dbStore
		history = dbStore
	default:
		log.Fatalf("Unknown ledger backend %q (want file or sqlite)", cfg.Ledger.Backend)
	}

	reconciler := reconcile.New(store, jira.NewClient(cfg.Jira))

	if *serve {
		runServer(reconciler, store, history, *port)
		return
	}

	if *inputPath == "" {
		log.Fatal("One-shot mode needs -input (or pass -serve)")
	}
	runBatch(reconciler, history, *inputPath)
}

// loadConfig reads and parses the YAML config, filling defaults.
func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "jira_issues.json"
	}
	return cfg, nil
}

// runBatch processes one reports file and exits through the normal return
// path. Per-ticket failures end up in the summary, not the exit code.
func runBatch(reconciler *reconcile.Reconciler, history api.RunHistory, inputPath string) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatalf("Failed to read reports file: %v", err)
	}
	var reports []reconcile.TransactionReport
	if err := json.Unmarshal(data, &reports); err != nil {
		log.Fatalf("Failed to parse reports file: %v", err)
	}

	ctx := context.Background()
	result, err := reconciler.ProcessBatch(ctx, reports)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}
	if history != nil {
		if err := history.RecordRun(ctx, result); err != nil {
			log.Printf("Warning: failed to record run history: %v", err)
		}
	}

	fmt.Printf("run %s: %d reports (%d created, %d updated, %d closed, %d unchanged, %d failed, %d skipped)\n",
		result.RunID, len(result.Outcomes),
		result.Created, result.Updated, result.Closed,
		result.Unchanged, result.Failed, result.Skipped)
}

// runServer hosts the intake API with graceful shutdown.
func runServer(reconciler *reconcile.Reconciler, store reconcile.LedgerStore, history api.RunHistory, port int) {
	handler := api.NewHandler(reconciler, store, history)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // batches issue real Jira calls
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Intake API listening on http://localhost:%d/api", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
