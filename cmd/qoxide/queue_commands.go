package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"qoxide/internal/logging"
	"qoxide/internal/queue"
)

type addResult struct {
	ID int64 `json:"id"`
}

type messageResult struct {
	ID       int64  `json:"id"`
	Payload  string `json:"payload"`
	State    string `json:"state,omitempty"`
	Attempts int    `json:"attempts"`
}

type transitionResult struct {
	ID    int64  `json:"id"`
	State string `json:"state"`
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		asUTF8 bool
		file   string
	)
	cmd := &cobra.Command{
		Use:   "add [payload]",
		Short: "Add a message to the queue",
		Long:  "Add a message to the queue. The payload is base64 encoded unless --utf8 is given, or read verbatim from --file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			payload, err := decodePayload(arg, len(args) == 1, asUTF8, file)
			if err != nil {
				return ctx.report(cmd, err)
			}
			return ctx.report(cmd, ctx.withQueue(cmd, func(c context.Context, q *queue.Queue) error {
				id, err := q.Add(c, payload)
				if err != nil {
					return err
				}
				ctx.commandLogger().Info("message added",
					logging.Int64(logging.FieldMessageID, id),
					logging.Int(logging.FieldPayloadBytes, len(payload)),
				)
				if ctx.JSONMode() {
					return writeJSONData(cmd, addResult{ID: id})
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}))
		},
	}
	cmd.Flags().BoolVar(&asUTF8, "utf8", false, "Treat payload as UTF-8 text instead of base64")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the payload bytes from a file")
	return cmd
}

func newReserveCommand(ctx *commandContext) *cobra.Command {
	var asUTF8 bool
	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve the oldest pending message",
		Long:  "Reserve the oldest pending message and print its id and payload. An empty queue prints nothing and exits successfully.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.report(cmd, ctx.withQueue(cmd, func(c context.Context, q *queue.Queue) error {
				msg, err := q.Reserve(c)
				if err != nil {
					return err
				}
				if msg == nil {
					if ctx.JSONMode() {
						return writeJSONData(cmd, nil)
					}
					return nil
				}
				payload, err := encodePayload(msg.Payload, asUTF8)
				if err != nil {
					// The message stays reserved; the caller can still fail it by id.
					return fmt.Errorf("reserved message %d: %w", msg.ID, err)
				}
				if ctx.JSONMode() {
					return writeJSONData(cmd, messageResult{ID: msg.ID, Payload: payload, State: msg.State.String(), Attempts: msg.Attempts})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, msg.ID)
				fmt.Fprintln(out, payload)
				return nil
			}))
		},
	}
	cmd.Flags().BoolVar(&asUTF8, "utf8", false, "Print the payload as UTF-8 text instead of base64")
	return cmd
}

func newCompleteCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "complete <id>", "Mark a reserved message as completed", queue.StateCompleted,
		func(c context.Context, q *queue.Queue, id int64) error { return q.Complete(c, id) })
}

func newFailCommand(ctx *commandContext) *cobra.Command {
	return newTransitionCommand(ctx, "fail <id>", "Return a reserved message to pending", queue.StatePending,
		func(c context.Context, q *queue.Queue, id int64) error { return q.Fail(c, id) })
}

func newTransitionCommand(ctx *commandContext, use, short string, target queue.State, apply func(context.Context, *queue.Queue, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMessageID(args[0])
			if err != nil {
				return ctx.report(cmd, err)
			}
			return ctx.report(cmd, ctx.withQueue(cmd, func(c context.Context, q *queue.Queue) error {
				if err := apply(c, q, id); err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSONData(cmd, transitionResult{ID: id, State: target.String()})
				}
				return nil
			}))
		},
	}
}

func newGetCommand(ctx *commandContext) *cobra.Command {
	var asUTF8 bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a message payload without changing its state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMessageID(args[0])
			if err != nil {
				return ctx.report(cmd, err)
			}
			return ctx.report(cmd, ctx.withQueue(cmd, func(c context.Context, q *queue.Queue) error {
				msg, err := q.Get(c, id)
				if err != nil {
					return err
				}
				payload, err := encodePayload(msg.Payload, asUTF8)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSONData(cmd, messageResult{ID: msg.ID, Payload: payload, State: msg.State.String(), Attempts: msg.Attempts})
				}
				fmt.Fprintln(cmd.OutOrStdout(), payload)
				return nil
			}))
		},
	}
	cmd.Flags().BoolVar(&asUTF8, "utf8", false, "Print the payload as UTF-8 text instead of base64")
	return cmd
}
