package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/account"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/firewall"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/gateway"
)

// Target kinds accepted by the allow_access job.
const (
	TargetKindIP      = "Ip"
	TargetKindAccount = "Account"
)

// AccessTarget selects what the allow_access job admits.
type AccessTarget struct {
	Kind  string `json:"kind"`  // "Ip" or "Account"
	Value string `json:"value"` // CIDR/bare IP, or SS58 account id
}

// AllowAccessInput is the argument schema of job 0.
type AllowAccessInput struct {
	Target AccessTarget `json:"target"`
}

// allowAccess adds a permanent dynamic rule for an IP prefix or an account.
// Admin authorization of the caller is a future hook (see Context.AdminKey);
// the job runtime authenticates the invocation itself.
func allowAccess(ctx context.Context, rctx *gateway.Context, args json.RawMessage) error {
	var input AllowAccessInput
	if err := json.Unmarshal(args, &input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	switch input.Target.Kind {
	case TargetKindIP:
		prefix, err := firewall.ParsePrefix(input.Target.Value)
		if err != nil {
			return fmt.Errorf("%w: invalid IP/CIDR: %v", ErrInvalidInput, err)
		}
		if err := rctx.Firewall.AddIPRule(prefix); err != nil {
			return err
		}
		rctx.Log().Info("allow_access added IP rule", zap.String("rule", prefix.String()))
		return nil

	case TargetKindAccount:
		id, err := account.Parse(input.Target.Value)
		if err != nil {
			return fmt.Errorf("%w: invalid account id: %v", ErrInvalidInput, err)
		}
		if err := rctx.Firewall.AddAccountRule(id); err != nil {
			return err
		}
		rctx.Log().Info("allow_access added account rule", zap.Stringer("account", id))
		return nil

	default:
		return fmt.Errorf("%w: unknown target kind %q", ErrInvalidInput, input.Target.Kind)
	}
}
