package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/reactquery/agent/internal/workmem"
)

// runRequest is the §6 "Run request" shape: {user_id, query, conversation_id?}.
type runRequest struct {
	UserID         string `json:"user_id"`
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// runResult is what Run reports to stdout: the final Working Memory plus the
// generated run_id (§6 "Outputs from the core: Final Working Memory").
type runResult struct {
	RunID                string                  `json:"run_id"`
	FinalAnswer          string                  `json:"final_answer"`
	Status               workmem.Status          `json:"status"`
	QualityScore         float64                 `json:"quality_score"`
	QualityDetails       workmem.QualityDetails  `json:"quality_details"`
	Iterations           int                     `json:"iterations"`
	APICalls             int                     `json:"api_calls"`
	TotalExecutionTimeMS int64                   `json:"total_execution_time_ms"`
	StrategyCounts       map[string]int          `json:"strategy_counts"`
}

// runCmd implements `reactagent run`: reads a Run request as JSON (from
// -input or stdin), executes the ReAct Loop, and writes the resulting
// Working Memory as JSON to stdout. Uses the standard library's flag
// package rather than a third-party flags library, since go-flags is one
// of the teacher dependencies this module deliberately does not carry
// forward (it only served the out-of-scope CLI/HTTP surface).
func runCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file (afs URL)")
	inputPath := fs.String("input", "", "path to a JSON Run request (stdin if empty)")
	userID := fs.String("user", "", "user_id (overrides the request's user_id if set)")
	query := fs.String("query", "", "query text (overrides the request's query if set)")
	conversationID := fs.String("conversation", "", "conversation_id (overrides the request's conversation_id if set)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := readRunRequest(*inputPath)
	if err != nil {
		return err
	}
	if *userID != "" {
		req.UserID = *userID
	}
	if *query != "" {
		req.Query = *query
	}
	if *conversationID != "" {
		req.ConversationID = *conversationID
	}
	if req.UserID == "" || req.Query == "" {
		return fmt.Errorf("reactagent: run request requires non-empty user_id and query")
	}

	cfg, model, embed, err := buildFromEnv(ctx, *configPath)
	if err != nil {
		return err
	}

	application, err := buildApp(ctx, cfg, model, embed)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	wm := application.loop.Run(ctx, runID, req.UserID, req.Query, req.ConversationID)

	result := runResult{
		RunID:                runID,
		FinalAnswer:          wm.FinalAnswer,
		Status:               wm.Status,
		QualityScore:         wm.QualityScore,
		QualityDetails:       wm.QualityDetails,
		Iterations:           len(wm.Iterations),
		APICalls:             len(wm.APICalls),
		TotalExecutionTimeMS: wm.TotalExecutionTimeMS,
		StrategyCounts:       wm.StrategyCounts,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readRunRequest(path string) (runRequest, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return runRequest{}, fmt.Errorf("reactagent: open input %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	var req runRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		if err == io.EOF {
			return runRequest{}, nil
		}
		return runRequest{}, fmt.Errorf("reactagent: decode run request: %w", err)
	}
	return req, nil
}
