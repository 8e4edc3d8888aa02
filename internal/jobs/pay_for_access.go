package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/account"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/firewall"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/gateway"
)

// PayForAccessInput is the argument schema of job 1. The beneficiary is
// passed explicitly because the on-chain contract proxies the call.
type PayForAccessInput struct {
	Beneficiary  account.AccountID `json:"beneficiary"`
	DurationSecs uint64            `json:"duration_secs"`
}

// payForAccess grants time-bounded access to the beneficiary. Payment
// verification happened in the calling contract before the job was invoked;
// the gateway trusts the job producer.
func payForAccess(ctx context.Context, rctx *gateway.Context, args json.RawMessage) error {
	var input PayForAccessInput
	if err := json.Unmarshal(args, &input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if input.DurationSecs == 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	record := firewall.NewTemporaryAccessRecord(
		time.Now(),
		time.Duration(input.DurationSecs)*time.Second,
	)
	if err := rctx.Firewall.GrantTemporaryAccess(input.Beneficiary, record); err != nil {
		return err
	}

	rctx.Log().Info("granted temporary access via paid job",
		zap.Stringer("account", input.Beneficiary),
		zap.Uint64("duration_secs", input.DurationSecs),
		zap.Time("expires_at", record.ExpiresAt))
	return nil
}
