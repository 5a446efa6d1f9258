package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/payment"
)

var (
	payCmd = &cobra.Command{
		Use:   "pay",
		Short: "Pay an order and follow its confirmation",
	}
	payStartCmd = &cobra.Command{
		Use:   "start [order-id]",
		Short: "Open the checkout for an order (the pending one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPayStart,
	}
	payWatch bool

	payWatchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Wait until the payment is confirmed or rejected",
		Args:  cobra.NoArgs,
		RunE:  runPayWatch,
	}
	payCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Ask once for the payment status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := app.svc.CheckPayment(cmd.Context())
			printSnapshot(cmd.OutOrStdout(), snap)
			return err
		},
	}
)

func init() {
	payStartCmd.Flags().BoolVar(&payWatch, "watch", false, "keep watching the payment after opening the checkout")
	payCmd.AddCommand(payStartCmd, payWatchCmd, payCheckCmd)
}

func runPayStart(cmd *cobra.Command, args []string) error {
	var orderID uint64
	if len(args) == 1 {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		orderID = id
	}

	checkout, err := app.svc.StartPayment(cmd.Context(), orderID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Completa el pago en:")
	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render(checkout.URL()))

	if !payWatch {
		return nil
	}
	return runPayWatch(cmd, nil)
}

func runPayWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var (
		mu   sync.Mutex
		last string
	)
	state, err := app.svc.WatchPayment(ctx, func(snap payment.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Message == last {
			return
		}
		last = snap.Message
		printSnapshot(out, snap)
	})
	if err != nil && ctx.Err() != nil {
		fmt.Fprintln(out, mutedStyle.Render("Seguimiento interrumpido. Puedes retomarlo con 'hendrix pay watch'."))
		return nil
	}
	if err != nil {
		return err
	}

	if state == enum.PollStateExhausted {
		fmt.Fprintln(out, mutedStyle.Render("Puedes verificar manualmente con 'hendrix pay check'."))
	}
	return nil
}
