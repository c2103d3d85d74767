package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-mail-triage/internal/adapters/loader"
	"github.com/mikey/llm-mail-triage/internal/core"
	"github.com/mikey/llm-mail-triage/internal/di"
)

var (
	inputFile  = flag.String("file", "", "Input batch file (.json or .csv)")
	inputForm  = flag.String("format", "", "Input format (json, csv); inferred from the file extension when empty")
	outputFile = flag.String("output", "", "Write the full run log as JSON to this path")
)

func main() {
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "usage: mail-triage -file emails.json [-output runlog.json]")
		os.Exit(2)
	}

	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	pipeline *core.Pipeline,
	client core.CompletionClient,
	cacheRepo core.ClassificationCache,
) error {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := loadRecords(*inputFile, *inputForm)
	if err != nil {
		logger.Error("Failed to load input batch", zap.Error(err))
		return err
	}
	logger.Info("Loaded input batch", zap.String("file", *inputFile), zap.Int("emails", len(records)))

	outcomes, metrics := pipeline.Run(ctx, records)

	printSummary(outcomes, metrics)

	if *outputFile != "" {
		if err := writeRunLog(*outputFile, outcomes, metrics); err != nil {
			logger.Error("Failed to write run log", zap.Error(err))
			return err
		}
		logger.Info("Run log written", zap.String("file", *outputFile))
	}

	// Close any resources that need closing
	if closer, ok := client.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close completion client", zap.Error(err))
		}
	}
	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	return nil
}

func loadRecords(path, format string) ([]*core.EmailRecord, error) {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	switch strings.ToLower(format) {
	case "json":
		return loader.LoadJSON(path)
	case "csv":
		return loader.LoadCSV(path)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

func printSummary(outcomes []*core.TriageOutcome, metrics core.MetricsSnapshot) {
	fmt.Printf("\n=== Triage Summary (run %s) ===\n", metrics.RunID)
	fmt.Printf("%-10s %-14s %-16s %-14s\n", "email_id", "category", "classification", "response")
	for _, outcome := range outcomes {
		category, clsStatus := "-", "-"
		if outcome.Classification != nil {
			category = string(outcome.Classification.Category)
			clsStatus = string(outcome.Classification.Status)
		}
		fmt.Printf("%-10s %-14s %-16s %-14s\n",
			outcome.Email.ID, category, clsStatus, string(outcome.Response.Status))
	}

	fmt.Printf("\nProcessed: %d/%d (skipped %d, cache hits %d)\n",
		metrics.Processed, metrics.Total, metrics.Skipped, metrics.FromCache)
	fmt.Printf("Average confidence: %.3f\n", metrics.AvgConfidence)
	fmt.Printf("Elapsed: %v\n", metrics.FinishedAt.Sub(metrics.StartedAt).Round(time.Millisecond))
	if len(metrics.ErrorsByKind) > 0 {
		fmt.Printf("Errors: %v\n", metrics.ErrorsByKind)
	}
}

type runLogEntry struct {
	EmailID        string  `json:"email_id"`
	Category       string  `json:"category,omitempty"`
	Status         string  `json:"classification_status,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Rationale      string  `json:"rationale,omitempty"`
	Attempts       int     `json:"attempts,omitempty"`
	ResponseStatus string  `json:"response_status"`
	ResponseText   *string `json:"response_text"`
}

func writeRunLog(path string, outcomes []*core.TriageOutcome, metrics core.MetricsSnapshot) error {
	entries := make([]runLogEntry, 0, len(outcomes))
	for _, outcome := range outcomes {
		entry := runLogEntry{
			EmailID:        outcome.Email.ID,
			ResponseStatus: string(outcome.Response.Status),
			ResponseText:   outcome.Response.Text,
		}
		if cls := outcome.Classification; cls != nil {
			entry.Category = string(cls.Category)
			entry.Status = string(cls.Status)
			entry.Confidence = cls.Confidence
			entry.Rationale = cls.Rationale
			entry.Attempts = cls.Attempts
		}
		entries = append(entries, entry)
	}

	payload := struct {
		Results []runLogEntry        `json:"results"`
		Metrics core.MetricsSnapshot `json:"metrics"`
	}{entries, metrics}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
