package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/iapkit/pkg/billing"
	"github.com/dmitrymomot/iapkit/pkg/events"
	"github.com/dmitrymomot/iapkit/pkg/purchase"
)

var outcomes = map[string]billing.Outcome{
	"success": billing.OutcomeSuccess,
	"cancel":  billing.OutcomeCancel,
	"fail":    billing.OutcomeFail,
	"restore": billing.OutcomeRestore,
}

func newBuyCommand(f *rootFlags) *cobra.Command {
	var (
		outcome     string
		failConsume bool
		retries     int
	)
	cmd := &cobra.Command{
		Use:   "buy <pack-id>",
		Short: "Run one purchase flow and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scripted, ok := outcomes[outcome]
			if !ok {
				return fmt.Errorf("unknown outcome %q", outcome)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()

			s, err := buildStack(ctx, f, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer s.Close()

			done := make(chan purchase.Result, 1)
			s.notifier.Subscribe(events.PurchaseComplete, func(_ context.Context, e events.Event) {
				if res, ok := e.Payload.(purchase.Result); ok {
					done <- res
				}
			})
			if err := s.waitReady(ctx); err != nil {
				return err
			}

			if s.memory != nil {
				s.memory.QueueOutcome(scripted)
				if failConsume {
					s.memory.FailNextConsume(billing.ResponseError)
				}
			}
			if err := s.ctrl.InitiatePurchaseFlow(args[0]); err != nil {
				return err
			}

			for {
				select {
				case res := <-done:
					if err := printJSON(cmd.OutOrStdout(), res); err != nil {
						return err
					}
					if res.Outcome.Retryable() && retries > 0 {
						retries--
						if err := s.ctrl.RetryPurchaseFlow(); err != nil {
							return err
						}
						continue
					}
					if res.Error != "" {
						return fmt.Errorf("purchase failed: %s (%s)", res.Error, res.Error.MessageKey())
					}
					return nil
				case <-ctx.Done():
					return fmt.Errorf("purchase flow stuck in %s: %w", s.ctrl.FlowState(), ctx.Err())
				}
			}
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", "success", "scripted store answer: success, cancel, fail or restore")
	cmd.Flags().BoolVar(&failConsume, "fail-consume", false, "reject the first consume")
	cmd.Flags().IntVar(&retries, "retries", 0, "retry failed server grants or consumes this many times")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
