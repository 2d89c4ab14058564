package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"qoxide/internal/queue"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check SQLite queue database health (schema, integrity, foreign keys)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.report(cmd, ctx.withQueue(cmd, func(c context.Context, q *queue.Queue) error {
				store, ok := q.Backend().(*queue.SQLiteStore)
				if !ok {
					return usageErrorf("health checks are only available for the sqlite backend")
				}
				health, err := store.CheckHealth(c)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSONData(cmd, healthView(health))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
				fmt.Fprintf(out, "In memory: %s\n", yesNo(health.InMemory))
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", health.SchemaVersion)
				fmt.Fprintf(out, "Tables: %s\n", joinOrNone(health.TablesPresent))
				fmt.Fprintf(out, "Missing tables: %s\n", joinOrNone(health.MissingTables))
				fmt.Fprintf(out, "Missing columns: %s\n", joinOrNone(health.MissingColumns))
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Foreign key errors: %d\n", health.ForeignKeyErrors)
				fmt.Fprintf(out, "Messages: %d\n", health.TotalMessages)
				fmt.Fprintf(out, "Payloads: %d\n", health.TotalPayloads)
				if health.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", health.Error)
				}
				fmt.Fprintf(out, "Healthy: %s\n", yesNo(health.Healthy()))
				return nil
			}))
		},
	}
}

type healthJSON struct {
	DBPath           string   `json:"db_path"`
	InMemory         bool     `json:"in_memory"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TablesPresent    []string `json:"tables_present"`
	MissingTables    []string `json:"missing_tables"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	ForeignKeyErrors int      `json:"foreign_key_errors"`
	TotalMessages    int      `json:"total_messages"`
	TotalPayloads    int      `json:"total_payloads"`
	Error            string   `json:"error,omitempty"`
	Healthy          bool     `json:"healthy"`
}

func healthView(h queue.DatabaseHealth) healthJSON {
	return healthJSON{
		DBPath:           h.DBPath,
		InMemory:         h.InMemory,
		DatabaseExists:   h.DatabaseExists,
		DatabaseReadable: h.DatabaseReadable,
		SchemaVersion:    h.SchemaVersion,
		TablesPresent:    h.TablesPresent,
		MissingTables:    h.MissingTables,
		MissingColumns:   h.MissingColumns,
		IntegrityCheck:   h.IntegrityCheck,
		ForeignKeyErrors: h.ForeignKeyErrors,
		TotalMessages:    h.TotalMessages,
		TotalPayloads:    h.TotalPayloads,
		Error:            h.Error,
		Healthy:          h.Healthy(),
	}
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
