// Package firewall is the authoritative access-control state of the gateway:
// static allow-lists from config, dynamic allow-lists managed by jobs,
// time-bounded temporary grants, and the webhook audit fan-out.
package firewall

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/account"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/metrics"
	"github.com/tangle-network/blockchain-rpc-blueprint/internal/webhook"
)

// Access types reported in AccessGranted events.
const (
	AccessUnrestricted     = "Unrestricted"
	AccessPermanentConfig  = "Permanent (Config)"
	AccessPermanentDynamic = "Permanent (Dynamic)"
	AccessTemporary        = "Temporary"
)

var (
	// ErrInvalidRecord is returned when a temporary grant expires before it
	// is granted.
	ErrInvalidRecord = errors.New("temporary access record expires at or before its grant time")
	// ErrInvalidWebhookScheme is returned for webhook URLs that are not
	// http or https.
	ErrInvalidWebhookScheme = errors.New("webhook URL must use http or https scheme")
)

// Notifier delivers audit events to webhook sinks. Implementations must not
// block the caller.
type Notifier interface {
	Notify(urls []*url.URL, event webhook.Event)
}

// Config carries the immutable firewall state loaded at startup.
type Config struct {
	AllowIPs      []*net.IPNet
	AllowAccounts []account.AccountID
	Unrestricted  bool
	Webhooks      []*url.URL
	NotifyOnSweep bool
}

// Firewall holds the access-control state shared by every request handler.
// The static fields need no locking; each mutable field has its own lock so
// that readers of one set never contend with writers of another.
type Firewall struct {
	staticIPs      []*net.IPNet
	staticAccounts map[account.AccountID]struct{}
	unrestricted   bool
	notifyOnSweep  bool

	ipsMu      sync.RWMutex
	dynamicIPs map[string]*net.IPNet // keyed by canonical prefix text

	accountsMu      sync.RWMutex
	dynamicAccounts map[account.AccountID]struct{}

	tempMu    sync.RWMutex
	temporary map[account.AccountID]TemporaryAccessRecord

	webhooksMu sync.RWMutex
	webhooks   []*url.URL

	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Firewall from the static config.
func New(cfg Config, notifier Notifier, logger *zap.Logger) *Firewall {
	if logger == nil {
		logger = zap.NewNop()
	}

	staticAccounts := make(map[account.AccountID]struct{}, len(cfg.AllowAccounts))
	for _, id := range cfg.AllowAccounts {
		staticAccounts[id] = struct{}{}
	}

	webhooks := make([]*url.URL, len(cfg.Webhooks))
	copy(webhooks, cfg.Webhooks)

	return &Firewall{
		staticIPs:       cfg.AllowIPs,
		staticAccounts:  staticAccounts,
		unrestricted:    cfg.Unrestricted,
		notifyOnSweep:   cfg.NotifyOnSweep,
		dynamicIPs:      make(map[string]*net.IPNet),
		dynamicAccounts: make(map[account.AccountID]struct{}),
		temporary:       make(map[account.AccountID]TemporaryAccessRecord),
		webhooks:        webhooks,
		notifier:        notifier,
		logger:          logger,
		now:             time.Now,
	}
}

// IsIPAllowed checks an IP against the unrestricted flag, then the static
// prefixes, then the dynamic prefixes, short-circuiting on the first hit.
// Temporary grants are keyed by account and never consulted here.
func (f *Firewall) IsIPAllowed(ip net.IP) bool {
	if f.unrestricted {
		f.logger.Debug("access granted: unrestricted", zap.Stringer("ip", ip))
		f.granted(ip.String(), AccessUnrestricted, "unrestricted")
		return true
	}

	for _, n := range f.staticIPs {
		if n.Contains(ip) {
			f.logger.Debug("access granted: static IP allowlist", zap.Stringer("ip", ip))
			f.granted(ip.String(), AccessPermanentConfig, "static")
			return true
		}
	}

	f.ipsMu.RLock()
	hit := containsIP(f.dynamicIPs, ip)
	f.ipsMu.RUnlock()
	if hit {
		f.logger.Debug("access granted: dynamic IP allowlist", zap.Stringer("ip", ip))
		f.granted(ip.String(), AccessPermanentDynamic, "dynamic")
		return true
	}

	f.logger.Debug("access denied: IP not in any allowlist", zap.Stringer("ip", ip))
	metrics.FirewallDecisions.WithLabelValues("denied", "none").Inc()
	f.emit(webhook.AccessDenied{Source: ip.String()})
	return false
}

// IsAccountAllowed checks an account against the unrestricted flag, the
// static set, the dynamic set, and finally the temporary grants. A grant
// observed past its expiry is removed, a TemporaryAccessExpired event is
// emitted, and the check fails.
func (f *Firewall) IsAccountAllowed(id account.AccountID) bool {
	if f.unrestricted {
		f.granted(id.String(), AccessUnrestricted, "unrestricted")
		return true
	}

	if _, ok := f.staticAccounts[id]; ok {
		f.granted(id.String(), AccessPermanentConfig, "static")
		return true
	}

	f.accountsMu.RLock()
	_, dynamic := f.dynamicAccounts[id]
	f.accountsMu.RUnlock()
	if dynamic {
		f.granted(id.String(), AccessPermanentDynamic, "dynamic")
		return true
	}

	if f.checkTemporary(id) {
		f.granted(id.String(), AccessTemporary, "temporary")
		return true
	}

	f.logger.Debug("account access denied", zap.Stringer("account", id))
	metrics.FirewallDecisions.WithLabelValues("denied", "none").Inc()
	return false
}

// checkTemporary reports whether the account holds an unexpired grant,
// removing and announcing the grant when it is found expired.
func (f *Firewall) checkTemporary(id account.AccountID) bool {
	now := f.now()

	f.tempMu.Lock()
	record, ok := f.temporary[id]
	if ok && record.ExpiresAt.After(now) {
		f.tempMu.Unlock()
		return true
	}
	if ok {
		delete(f.temporary, id)
	}
	f.tempMu.Unlock()

	if ok {
		f.logger.Debug("temporary access expired", zap.Stringer("account", id))
		f.emit(webhook.TemporaryAccessExpired{Account: id.String()})
	}
	return false
}

// AddIPRule inserts a prefix into the dynamic allow-list. Idempotent; a
// RuleAdded event is emitted only for a new element.
func (f *Firewall) AddIPRule(prefix *net.IPNet) error {
	key := prefix.String()

	f.ipsMu.Lock()
	_, exists := f.dynamicIPs[key]
	if !exists {
		f.dynamicIPs[key] = prefix
	}
	f.ipsMu.Unlock()

	if !exists {
		f.logger.Debug("added dynamic IP rule", zap.String("rule", key))
		f.emit(webhook.RuleAdded{RuleType: "IP", Value: key})
	}
	return nil
}

// AddAccountRule inserts an account into the dynamic allow-list. Idempotent;
// a RuleAdded event is emitted only for a new element.
func (f *Firewall) AddAccountRule(id account.AccountID) error {
	f.accountsMu.Lock()
	_, exists := f.dynamicAccounts[id]
	if !exists {
		f.dynamicAccounts[id] = struct{}{}
	}
	f.accountsMu.Unlock()

	if !exists {
		f.logger.Debug("added dynamic account rule", zap.Stringer("account", id))
		f.emit(webhook.RuleAdded{RuleType: "Account", Value: id.String()})
	}
	return nil
}

// GrantTemporaryAccess inserts or replaces the temporary grant for an
// account. No event is emitted at grant time; the grant is observable
// through the invoking job's log.
func (f *Firewall) GrantTemporaryAccess(id account.AccountID, record TemporaryAccessRecord) error {
	if !record.ExpiresAt.After(record.GrantedAt) {
		return ErrInvalidRecord
	}

	f.logger.Debug("granting temporary access",
		zap.Stringer("account", id),
		zap.Time("expires_at", record.ExpiresAt))

	f.tempMu.Lock()
	f.temporary[id] = record
	f.tempMu.Unlock()
	return nil
}

// AddWebhook appends a sink URL. The WebhookRegistered event is delivered to
// every sink, including the one just registered.
func (f *Firewall) AddWebhook(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrInvalidWebhookScheme, u.Scheme)
	}

	f.logger.Debug("registering webhook", zap.Stringer("url", u))

	f.webhooksMu.Lock()
	f.webhooks = append(f.webhooks, u)
	f.webhooksMu.Unlock()

	f.emit(webhook.WebhookRegistered{URL: u.String()})
	return nil
}

// SweepExpired removes every temporary grant whose expiry is at or before
// now, returning the number removed. Expiry events are emitted only when
// configured; by default the sweep is silent and the per-account event fires
// from the allow-check that observes the expiry.
func (f *Firewall) SweepExpired(now time.Time) int {
	var expired []account.AccountID

	f.tempMu.Lock()
	for id, record := range f.temporary {
		if !record.ExpiresAt.After(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(f.temporary, id)
	}
	f.tempMu.Unlock()

	for _, id := range expired {
		f.logger.Debug("cleaned up expired temporary access", zap.Stringer("account", id))
		if f.notifyOnSweep {
			f.emit(webhook.TemporaryAccessExpired{Account: id.String()})
		}
	}
	if len(expired) > 0 {
		metrics.TemporaryGrantsSwept.Add(float64(len(expired)))
	}
	return len(expired)
}

// granted records a positive decision and emits the AccessGranted event.
func (f *Firewall) granted(source, accessType, tier string) {
	metrics.FirewallDecisions.WithLabelValues("granted", tier).Inc()
	f.emit(webhook.AccessGranted{Source: source, AccessType: accessType})
}

// emit fans the event out to a snapshot of the current sinks. The notifier
// never blocks the caller.
func (f *Firewall) emit(event webhook.Event) {
	if f.notifier == nil {
		return
	}

	f.webhooksMu.RLock()
	urls := make([]*url.URL, len(f.webhooks))
	copy(urls, f.webhooks)
	f.webhooksMu.RUnlock()

	f.notifier.Notify(urls, event)
}

func containsIP(prefixes map[string]*net.IPNet, ip net.IP) bool {
	for _, n := range prefixes {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
