package printing

import (
	"fmt"
	"strings"
	"time"
)

const ticketWidth = 32

// TicketData carries everything the kitchen needs on paper. Content is
// rendered once at enqueue time so reprints never depend on live order data.
type TicketData struct {
	OrderId     int64
	OrderItemId int64
	TableNumber int32
	Zone        string
	Waiter      string
	Recipe      string
	Notes       string
	IsTakeaway  bool
	CreatedAt   time.Time
}

// RenderTicket produces a plain-text 32-column ticket for a thermal printer.
func RenderTicket(d TicketData) string {
	var b strings.Builder
	rule := strings.Repeat("=", ticketWidth)

	b.WriteString(rule + "\n")
	b.WriteString(center(fmt.Sprintf("ORDER #%d", d.OrderId)) + "\n")
	b.WriteString(rule + "\n")

	if d.IsTakeaway {
		b.WriteString(center("** TAKEAWAY **") + "\n")
	} else {
		table := fmt.Sprintf("Table %d", d.TableNumber)
		if d.Zone != "" {
			table += " / " + d.Zone
		}
		b.WriteString(table + "\n")
	}

	b.WriteString("Waiter: " + d.Waiter + "\n")
	b.WriteString(d.CreatedAt.Format("02/01/2006 15:04") + "\n")
	b.WriteString(strings.Repeat("-", ticketWidth) + "\n")
	b.WriteString(fmt.Sprintf("1x %s\n", d.Recipe))

	if d.Notes != "" {
		b.WriteString("   > " + d.Notes + "\n")
	}

	b.WriteString(strings.Repeat("-", ticketWidth) + "\n")
	b.WriteString(fmt.Sprintf("item #%d\n", d.OrderItemId))
	b.WriteString(rule + "\n")

	return b.String()
}

func center(s string) string {
	if len(s) >= ticketWidth {
		return s
	}
	pad := (ticketWidth - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
