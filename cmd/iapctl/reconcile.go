package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/iapkit/pkg/events"
)

func newReconcileCommand(f *rootFlags) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile [product-id...]",
		Short: "Grant and consume purchases that were never consumed",
		Long: `reconcile asks the store for unconsumed purchases, grants them silently and
prints the drained grant log. Product ids given as arguments are first added
to the in-process store as unconsumed purchases.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()

			s, err := buildStack(ctx, f, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer s.Close()
			if len(args) > 0 && s.memory == nil {
				return errMemoryOnly
			}

			granted := make(chan struct{}, len(args)+1)
			s.notifier.Subscribe(events.SilentPurchaseSuccess, func(context.Context, events.Event) {
				select {
				case granted <- struct{}{}:
				default:
				}
			})
			if err := s.waitReady(ctx); err != nil {
				return err
			}

			for _, id := range args {
				s.memory.AddUnconsumed(id)
			}
			s.ctrl.QueryUnconsumedPurchases()

			// failures emit nothing, so stop after wait without news
			timer := time.NewTimer(wait)
			defer timer.Stop()
		collect:
			for range max(len(args), 1) {
				select {
				case <-granted:
					timer.Reset(wait)
				case <-timer.C:
					break collect
				case <-ctx.Done():
					break collect
				}
			}

			entries, err := s.ctrl.ClearProductsGrantedSilently(context.WithoutCancel(ctx))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "how long to wait for the next silent grant")
	return cmd
}
