package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	orderCmd = &cobra.Command{
		Use:   "order",
		Short: "Place and review orders",
	}
	orderSubmitCmd = &cobra.Command{
		Use:   "submit",
		Short: "Turn the cart into an order",
		Args:  cobra.NoArgs,
		RunE:  runOrderSubmit,
	}
	orderListCmd = &cobra.Command{
		Use:   "list",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := app.svc.MyOrders(cmd.Context())
			if err != nil {
				return err
			}
			printOrders(cmd.OutOrStdout(), orders)
			return nil
		},
	}
	orderShowCmd = &cobra.Command{
		Use:   "show [order-id]",
		Short: "Show an order with its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			o, err := app.svc.GetOrder(cmd.Context(), id)
			if err != nil {
				return err
			}
			printOrder(cmd.OutOrStdout(), o)
			return nil
		},
	}
	orderPendingCmd = &cobra.Command{
		Use:   "pending",
		Short: "Show the order awaiting payment, if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := app.svc.PendingOrder(cmd.Context())
			if err != nil {
				return err
			}
			if o == nil {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No tienes pedidos pendientes de pago"))
				return nil
			}
			printOrder(cmd.OutOrStdout(), o)
			return nil
		},
	}
	orderCancelCmd = &cobra.Command{
		Use:   "cancel [order-id] [reason...]",
		Short: "Cancel one of your orders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			o, err := app.svc.CancelOrder(cmd.Context(), id, joinArgs(args[1:]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pedido #%d cancelado\n", o.ID)
			return nil
		},
	}
)

func init() {
	orderCmd.AddCommand(orderSubmitCmd, orderListCmd, orderShowCmd, orderPendingCmd, orderCancelCmd)
}

func runOrderSubmit(cmd *cobra.Command, _ []string) error {
	o, err := app.svc.SubmitOrder(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(app.svc.Cart().Message))
	fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(fmt.Sprintf("Para pagar: hendrix pay start %d", o.ID)))
	return nil
}
