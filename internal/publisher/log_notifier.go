package publisher

import (
	"context"
	"log/slog"
)

// LogNotifier records notifications in the application log. Used when no
// broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, sellerContact string, summary OrderSummary) error {
	n.log.InfoContext(ctx, "seller notification",
		"seller_id", summary.SellerID,
		"seller_contact", sellerContact,
		"order_id", summary.OrderID,
		"total", summary.DisplayTotal,
		"currency", summary.Currency,
		"items", len(summary.Items))
	return nil
}
