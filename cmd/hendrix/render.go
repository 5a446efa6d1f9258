package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
	"gofalre.io/hendrix/payment"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printCategories(w io.Writer, categories []models.Category) {
	t := newTable(w)
	fmt.Fprintln(t, "ID\tCATEGORÍA")
	for _, c := range categories {
		fmt.Fprintf(t, "%d\t%s\n", c.ID, c.Name)
	}
	_ = t.Flush()
}

func printInstruments(w io.Writer, instruments []models.Instrument) {
	t := newTable(w)
	fmt.Fprintln(t, "ID\tINSTRUMENTO\tMARCA\tPRECIO\tSTOCK")
	for _, i := range instruments {
		fmt.Fprintf(t, "%d\t%s\t%s\t%s\t%s\n", i.ID, i.Name, i.Brand, formatPrice(i), formatStock(i.Stock))
	}
	_ = t.Flush()
}

func printInstrument(w io.Writer, i *models.Instrument) {
	fmt.Fprintln(w, titleStyle.Render(i.Name))
	fmt.Fprintf(w, "Marca:     %s\n", i.Brand)
	fmt.Fprintf(w, "Categoría: %s\n", i.Category.Name)
	fmt.Fprintf(w, "Precio:    %s\n", formatPrice(*i))
	fmt.Fprintf(w, "Stock:     %s\n", formatStock(i.Stock))
	if i.Description != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, i.Description)
	}
}

func printCart(w io.Writer, view models.CartView) {
	if view.Message != "" {
		fmt.Fprintln(w, warnStyle.Render(view.Message))
	}
	if len(view.Lines) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("El carrito está vacío"))
		return
	}

	t := newTable(w)
	fmt.Fprintln(t, "ID\tINSTRUMENTO\tCANT.\tP. UNIT.\tSUBTOTAL")
	for _, l := range view.Lines {
		fmt.Fprintf(t, "%d\t%s\t%d\t$%s\t$%s\n",
			l.Instrument.ID, l.Instrument.Name, l.Quantity,
			l.Instrument.UnitPrice().StringFixed(2), l.Subtotal().StringFixed(2))
	}
	_ = t.Flush()
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d artículos, total $%s", view.TotalItems, view.TotalPrice.StringFixed(2))))
}

func printOrders(w io.Writer, orders []models.Order) {
	t := newTable(w)
	fmt.Fprintln(t, "PEDIDO\tFECHA\tESTADO\tTOTAL")
	for _, o := range orders {
		fmt.Fprintf(t, "#%d\t%s\t%s\t$%s\n", o.ID, o.Date, o.Status, o.Total.StringFixed(2))
	}
	_ = t.Flush()
}

func printOrder(w io.Writer, o *models.Order) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Pedido #%d", o.ID)))
	fmt.Fprintf(w, "Fecha:  %s\n", o.Date)
	fmt.Fprintf(w, "Estado: %s\n", statusStyle(o.Status).Render(string(o.Status)))

	t := newTable(w)
	fmt.Fprintln(t, "INSTRUMENTO\tCANT.\tP. UNIT.")
	for _, l := range o.Lines {
		fmt.Fprintf(t, "%s\t%d\t$%s\n", l.Instrument.Name, l.Quantity, l.UnitPrice.StringFixed(2))
	}
	_ = t.Flush()
	fmt.Fprintf(w, "Total:  $%s\n", o.Total.StringFixed(2))
}

func printUsers(w io.Writer, users []models.User) {
	t := newTable(w)
	fmt.Fprintln(t, "ID\tNOMBRE\tEMAIL\tROL\tACTIVO")
	for _, u := range users {
		fmt.Fprintf(t, "%d\t%s %s\t%s\t%s\t%t\n", u.ID, u.Name, u.LastName, u.Email, u.Role, u.Active)
	}
	_ = t.Flush()
}

func printOrderStats(w io.Writer, stats *models.OrderStats) {
	t := newTable(w)
	fmt.Fprintln(t, "ESTADO\tPEDIDOS")
	rows := []struct {
		status enum.OrderStatus
		count  int64
	}{
		{enum.OrderStatusPendingPayment, stats.PendingPayment},
		{enum.OrderStatusPaid, stats.Paid},
		{enum.OrderStatusShipped, stats.Shipped},
		{enum.OrderStatusDelivered, stats.Delivered},
		{enum.OrderStatusCancelled, stats.Cancelled},
	}
	for _, r := range rows {
		fmt.Fprintf(t, "%s\t%d\n", statusStyle(r.status).Render(string(r.status)), r.count)
	}
	_ = t.Flush()
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d pedidos, ventas $%s", stats.Total, stats.Sales.StringFixed(2))))
}

func printSnapshot(w io.Writer, snap payment.Snapshot) {
	style := mutedStyle
	switch snap.State {
	case enum.PollStateApproved:
		style = successStyle
	case enum.PollStateRejected, enum.PollStateExhausted, enum.PollStateNoReference:
		style = warnStyle
	}
	stamp := time.Now().Format("15:04:05")
	fmt.Fprintf(w, "%s %s\n", mutedStyle.Render(stamp), style.Render(snap.Message))
}

func statusStyle(status enum.OrderStatus) lipgloss.Style {
	switch status {
	case enum.OrderStatusPaid, enum.OrderStatusShipped, enum.OrderStatusDelivered:
		return successStyle
	case enum.OrderStatusCancelled:
		return errorStyle
	}
	return warnStyle
}

func formatPrice(i models.Instrument) string {
	if !i.HasValidPrice() {
		return "sin precio"
	}
	return "$" + i.UnitPrice().StringFixed(2)
}

func formatStock(stock int) string {
	switch {
	case stock <= 0:
		return errorStyle.Render("agotado")
	case stock < models.LowStockThreshold:
		return warnStyle.Render(fmt.Sprintf("%d (últimas unidades)", stock))
	}
	return fmt.Sprint(stock)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
