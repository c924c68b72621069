// Package telegram lets the model push a message to the configured chat.
package telegram

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/headliner/tools"
)

const Name = "send_telegram_notification"

// Deliverer is the part of the notifier the tool needs.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
}

// Tool wraps the notifier. A failed delivery is reported back to the model as
// the tool result rather than aborting the run.
func Tool(n Deliverer) tools.Tool {
	return tools.Tool{
		Name:        Name,
		Description: "Sends a notification message to the user via Telegram. Use it when you want to notify the user directly.",
		Parameters:  tools.Object(map[string]interface{}{"text": tools.String("message text, Markdown allowed")}, "text"),
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			if err := n.Deliver(ctx, tools.StringArg(args, "text")); err != nil {
				return fmt.Sprintf("false: %v", err), nil
			}
			return "true", nil
		},
	}
}
