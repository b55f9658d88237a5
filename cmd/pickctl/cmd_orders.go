package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/picknpack/dashboard/internal/enum"
	"github.com/picknpack/dashboard/internal/service"
)

var ordersFlags struct {
	tab   string
	items bool
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List the orders of a tab",
	RunE:  runOrders,
}

var startCmd = &cobra.Command{
	Use:   "start <order-id>",
	Short: "Start picking a confirmed order",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var pickFlags struct {
	unpick bool
}

var pickCmd = &cobra.Command{
	Use:   "pick <order-id> <item-id>",
	Short: "Mark an item as picked",
	Args:  cobra.ExactArgs(2),
	RunE:  runPick,
}

var readyFlags struct {
	note string
}

var readyCmd = &cobra.Command{
	Use:   "ready <order-id>",
	Short: "Mark a fully picked order as ready",
	Args:  cobra.ExactArgs(1),
	RunE:  runReady,
}

func init() {
	f := ordersCmd.Flags()
	f.StringVar(&ordersFlags.tab, "tab", enum.TabPending, "pending, ready or completed")
	f.BoolVar(&ordersFlags.items, "items", false, "also list each order's items")

	pickCmd.Flags().BoolVar(&pickFlags.unpick, "unpick", false, "clear the pick instead")
	readyCmd.Flags().StringVar(&readyFlags.note, "note", "", "picker note sent with the order")
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, arg)
	}
	return id, nil
}

func runOrders(cmd *cobra.Command, _ []string) error {
	if err := dash.Orders.Refresh(cmd.Context()); err != nil {
		return errors.New(service.UserMessage(err))
	}
	views, err := dash.Orders.View(ordersFlags.tab)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintf(out, "No orders in %s.\n", ordersFlags.tab)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCUSTOMER\tPICKED\tPROGRESS\tREADY?")
	for _, v := range views {
		customer := "-"
		if v.CustomerName != nil {
			customer = *v.CustomerName
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\t%d%%\t%t\n",
			v.ID, v.Status, customer, v.PickedCount, v.TotalItems, v.ProgressPct, v.CanMarkReady)
		if ordersFlags.items {
			for _, it := range v.Items {
				mark := " "
				if it.Picked {
					mark = "x"
				}
				fmt.Fprintf(w, "  [%s] %d\t%s\t%s\t\t\t\n", mark, it.ID, it.Name, it.Amount.String())
			}
		}
	}
	return w.Flush()
}

func runStart(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "order id")
	if err != nil {
		return err
	}
	if err := dash.Orders.Refresh(cmd.Context()); err != nil {
		return errors.New(service.UserMessage(err))
	}
	if err := dash.Orders.StartPicking(cmd.Context(), id); err != nil {
		return errors.New(service.UserMessage(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Order %d is being prepared.\n", id)
	return nil
}

func runPick(cmd *cobra.Command, args []string) error {
	orderID, err := parseID(args[0], "order id")
	if err != nil {
		return err
	}
	itemID, err := parseID(args[1], "item id")
	if err != nil {
		return err
	}
	if err := dash.Orders.Refresh(cmd.Context()); err != nil {
		return errors.New(service.UserMessage(err))
	}
	res, err := dash.Orders.TogglePicked(cmd.Context(), orderID, itemID, !pickFlags.unpick)
	if err != nil {
		return errors.New(service.UserMessage(err))
	}

	out := cmd.OutOrStdout()
	if res.Promoted {
		fmt.Fprintf(out, "Order %d moved to preparing.\n", orderID)
	}
	views, _ := dash.Orders.View(enum.TabPending)
	for _, v := range views {
		if v.ID == orderID {
			fmt.Fprintf(out, "Order %d: %d/%d picked (%d%%)\n", v.ID, v.PickedCount, v.TotalItems, v.ProgressPct)
		}
	}
	return nil
}

func runReady(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "order id")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := dash.Orders.Refresh(ctx); err != nil {
		return errors.New(service.UserMessage(err))
	}
	if cmd.Flags().Changed("note") {
		if err := dash.Orders.SetNoteDraft(ctx, id, readyFlags.note); err != nil {
			return errors.New(service.UserMessage(err))
		}
	}
	if err := dash.Orders.MarkReady(ctx, id); err != nil {
		return errors.New(service.UserMessage(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Order %d is ready.\n", id)
	return nil
}
