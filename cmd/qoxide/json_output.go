package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"qoxide/internal/queue"
)

type jsonSuccess struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type jsonFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONData(cmd *cobra.Command, data any) error {
	return writeJSON(cmd, jsonSuccess{Success: true, Data: data})
}

// writeJSONError writes the failure envelope to stderr so stdout only ever
// carries successful results.
func writeJSONError(cmd *cobra.Command, err error) error {
	kind := string(queue.KindOf(err))
	var (
		usage *usageError
		cfg   *configError
	)
	switch {
	case errors.As(err, &usage):
		kind = "invalid_argument"
	case errors.As(err, &cfg):
		kind = "invalid_config"
	}
	enc := json.NewEncoder(cmd.ErrOrStderr())
	return enc.Encode(jsonFailure{Success: false, Error: err.Error(), Kind: kind})
}
