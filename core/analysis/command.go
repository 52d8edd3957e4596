package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// CommandExtractor shells out to an external analyzer program for each file.
// The program receives the file path as its final argument and must print a
// single JSON object {"vector":[...],"tempo":...} on stdout.
//
// Because the process runs under the call context, the gateway's timeout
// kills a stuck decoder instead of leaking it.
type CommandExtractor struct {
	Command string
	Args    []string
}

// NewCommandExtractor builds an extractor for the configured analyzer binary.
func NewCommandExtractor(command string, args ...string) *CommandExtractor {
	return &CommandExtractor{Command: command, Args: args}
}

type analyzerOutput struct {
	Vector []float32 `json:"vector"`
	Tempo  float64   `json:"tempo"`
}

// Extract runs the analyzer process and parses its output.
func (c *CommandExtractor) Extract(ctx context.Context, path string) ([]float32, float64, error) {
	args := append(append([]string{}, c.Args...), path)
	cmd := exec.CommandContext(ctx, c.Command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return nil, 0, fmt.Errorf("analyzer failed: %w: %s", err, msg)
		}
		return nil, 0, fmt.Errorf("analyzer failed: %w", err)
	}

	var out analyzerOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, 0, fmt.Errorf("failed to parse analyzer output: %w", err)
	}
	if len(out.Vector) == 0 {
		return nil, 0, fmt.Errorf("analyzer produced no feature vector")
	}
	return out.Vector, out.Tempo, nil
}
