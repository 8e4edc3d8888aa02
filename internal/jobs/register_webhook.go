package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/gateway"
)

// RegisterWebhookInput is the argument schema of job 2.
type RegisterWebhookInput struct {
	URL string `json:"url"`
}

// registerWebhook adds a sink for firewall event notifications.
func registerWebhook(ctx context.Context, rctx *gateway.Context, args json.RawMessage) error {
	var input RegisterWebhookInput
	if err := json.Unmarshal(args, &input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	u, err := url.Parse(input.URL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: webhook URL must use http or https scheme", ErrInvalidInput)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: webhook URL has no host", ErrInvalidInput)
	}

	if err := rctx.Firewall.AddWebhook(u); err != nil {
		return err
	}

	rctx.Log().Info("registered webhook", zap.String("url", input.URL))
	return nil
}
