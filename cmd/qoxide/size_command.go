package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"qoxide/internal/queue"
)

func newSizeCommand(ctx *commandContext) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "size",
		Short: "Show message counts by state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.report(cmd, ctx.withQueue(cmd, func(c context.Context, q *queue.Queue) error {
				sizes, err := q.Size(c)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case ctx.JSONMode():
					return writeJSONData(cmd, sizes)
				case !plain && isTerminal(out):
					fmt.Fprintln(out, renderSizesTable(sizes))
				default:
					fmt.Fprint(out, formatSizesPlain(sizes))
				}
				return nil
			}))
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print \"state count\" lines even on a terminal")
	return cmd
}

type sizeRow struct {
	label string
	count int
}

func sizeRows(sizes queue.Sizes) []sizeRow {
	return []sizeRow{
		{"total", sizes.Total},
		{strings.ToLower(queue.StatePending.String()), sizes.Pending},
		{strings.ToLower(queue.StateReserved.String()), sizes.Reserved},
		{strings.ToLower(queue.StateCompleted.String()), sizes.Completed},
	}
}

func formatSizesPlain(sizes queue.Sizes) string {
	var b strings.Builder
	for _, row := range sizeRows(sizes) {
		fmt.Fprintf(&b, "%s %d\n", row.label, row.count)
	}
	return b.String()
}

func renderSizesTable(sizes queue.Sizes) string {
	title := cases.Title(language.English)
	rows := make([][]string, 0, 4)
	for _, row := range sizeRows(sizes) {
		rows = append(rows, []string{title.String(row.label), strconv.Itoa(row.count)})
	}
	return renderTable([]string{"State", "Messages"}, rows, []columnAlignment{alignLeft, alignRight})
}
