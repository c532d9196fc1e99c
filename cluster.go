package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/thejerf/suture/v4"
	"golang.org/x/sync/errgroup"

	"github.com/gridcore/client/internal/metrics"
	"github.com/gridcore/client/internal/proto"
	"github.com/gridcore/client/internal/slogutil"
)

// PingInterval is the liveness pinger's tick period. It is a package
// variable rather than a per-cluster option since every cluster in a
// process should share one liveness cadence.
var PingInterval = 300 * time.Second

// memberEntry is the registry's value type: a member that may or may not
// have ever been successfully authenticated (a seed that failed to dial
// still gets an entry so it shows up in diagnostics), and whether it
// currently participates in selection.
type memberEntry struct {
	member  *Member // nil if this address never completed authentication
	enabled atomic.Bool
}

// Cluster is the registry of reachable Members: round-robin selection,
// targeted lookup by address, a liveness pinger, and teardown.
type Cluster struct {
	byAddress *xsync.MapOf[Address, *memberEntry]

	mu           sync.Mutex
	enabledOrder []Address

	seq atomic.Uint64

	log     *slog.Logger
	metrics *metrics.Collectors

	sup          *suture.Supervisor
	cancelPinger context.CancelFunc
	pingerDone   <-chan error
}

// MemberInfo is a read-only diagnostic snapshot of one registry entry.
type MemberInfo struct {
	Address Address
	ID      string
	Enabled bool
}

// connectCluster dials and authenticates every seed endpoint, enabling
// whichever succeed and remembering whichever fail. If no seed
// authenticates, construction fails with Cluster-non-operational.
func connectCluster(ctx context.Context, seeds []Address, creds Credentials, reg prometheus.Registerer) (*Cluster, error) {
	c := &Cluster{
		byAddress: xsync.NewMapOf[Address, *memberEntry](),
		log:       slogutil.For("cluster"),
		metrics:   metrics.New(reg),
	}

	// Each seed goroutine records its own failure and returns nil, so one
	// seed failing never cancels the others; gctx is cancelled only when
	// ctx is, which bounds dialing and authentication by the caller's
	// deadline on Connect.
	g, gctx := errgroup.WithContext(ctx)
	for _, seed := range seeds {
		seed := seed
		g.Go(func() error {
			m, err := connectMember(gctx, seed, creds, c.metrics)
			if err != nil {
				c.log.Info("seed did not authenticate", "address", seed, slogutil.Error(err))
				c.byAddress.Store(seed, &memberEntry{})
				return nil
			}
			entry := &memberEntry{member: m}
			entry.enabled.Store(true)
			c.byAddress.Store(m.Address(), entry)
			c.mu.Lock()
			c.enabledOrder = append(c.enabledOrder, m.Address())
			c.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-seed errors are swallowed above; only total failure matters

	if len(c.enabledCopy()) == 0 {
		return nil, clusterNonOperational()
	}

	c.startPinger()
	c.metrics.SetMembersEnabled(len(c.enabledCopy()))
	return c, nil
}

func (c *Cluster) enabledCopy() []Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Address, len(c.enabledOrder))
	copy(out, c.enabledOrder)
	return out
}

// pickEnabled returns the next member by round-robin. The sequence counter
// always advances, even when the registry is empty, since a stale position
// only misbalances load and never violates correctness.
func (c *Cluster) pickEnabled() (*Member, bool) {
	seq := c.seq.Add(1) - 1
	order := c.enabledCopy()
	if len(order) == 0 {
		return nil, false
	}
	addr := order[seq%uint64(len(order))]
	entry, ok := c.byAddress.Load(addr)
	if !ok || !entry.enabled.Load() || entry.member == nil {
		return nil, false
	}
	return entry.member, true
}

// dispatch picks any enabled member by round-robin and sends req to it.
func (c *Cluster) dispatch(ctx context.Context, reqType uint16, payload []byte) (proto.Message, error) {
	m, ok := c.pickEnabled()
	if !ok {
		return proto.Message{}, clusterNonOperational()
	}
	return m.send(ctx, reqType, payload)
}

// forward sends req to the specific member at addr.
func (c *Cluster) forward(ctx context.Context, addr Address, reqType uint16, payload []byte) (proto.Message, error) {
	entry, ok := c.byAddress.Load(addr)
	if !ok || !entry.enabled.Load() || entry.member == nil {
		return proto.Message{}, nodeNonOperational(addr)
	}
	return entry.member.send(ctx, reqType, payload)
}

// resolveAddress implements sticky-affinity lookup: if preferred names a
// currently enabled member, it wins; otherwise the address round-robin
// would pick is returned.
func (c *Cluster) resolveAddress(preferred *Address) (Address, error) {
	if preferred != nil {
		if entry, ok := c.byAddress.Load(*preferred); ok && entry.enabled.Load() && entry.member != nil {
			return *preferred, nil
		}
	}
	m, ok := c.pickEnabled()
	if !ok {
		return Address{}, clusterNonOperational()
	}
	return m.Address(), nil
}

// disable removes addr from the enabled set and marks it disabled; it is
// idempotent and safe to call for an address that was never a member.
func (c *Cluster) disable(addr Address) {
	entry, ok := c.byAddress.Load(addr)
	if !ok {
		c.byAddress.Store(addr, &memberEntry{})
		return
	}
	if !entry.enabled.Swap(false) {
		return // already disabled
	}
	if entry.member != nil {
		_ = entry.member.close()
	}

	c.mu.Lock()
	for i, a := range c.enabledOrder {
		if a == addr {
			c.enabledOrder = append(c.enabledOrder[:i], c.enabledOrder[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.metrics.SetMembersEnabled(len(c.enabledCopy()))
}

// Snapshot returns the current registry state for diagnostics.
func (c *Cluster) Snapshot() []MemberInfo {
	var out []MemberInfo
	c.byAddress.Range(func(addr Address, entry *memberEntry) bool {
		info := MemberInfo{Address: addr, Enabled: entry.enabled.Load()}
		if entry.member != nil {
			info.ID = entry.member.ID()
		}
		out = append(out, info)
		return true
	})
	return out
}

// startPinger launches the liveness pinger as a suture-supervised service:
// a panic or unexpected return from one tick is logged and restarted with
// backoff rather than silently ending all future liveness checks.
func (c *Cluster) startPinger() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelPinger = cancel

	sup := suture.New("cluster-pinger", suture.Spec{
		EventHook: func(e suture.Event) { c.log.Error("pinger supervisor event", "event", e) },
	})
	sup.Add(&pingerService{cluster: c, interval: PingInterval})
	c.sup = sup
	c.pingerDone = sup.ServeBackground(ctx)
}

type pingerService struct {
	cluster  *Cluster
	interval time.Duration
}

func (p *pingerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.cluster.pingOnce(ctx)
		}
	}
}

// pingOnce sends an empty PingRequest to every currently enabled member;
// any member whose ping errors is disabled. This is the sole error path in
// this client that never surfaces to a caller: it produces a local disable
// and a log line instead.
func (c *Cluster) pingOnce(ctx context.Context) {
	for _, addr := range c.enabledCopy() {
		entry, ok := c.byAddress.Load(addr)
		if !ok || entry.member == nil || !entry.enabled.Load() {
			continue
		}
		if _, err := entry.member.send(ctx, proto.TypePingRequest, proto.PingRequest{}.Encode()); err != nil {
			c.log.Error("ping failed, disabling member", "address", addr, slogutil.Error(err))
			c.disable(addr)
		}
	}
}

// Close tears down the pinger and every member channel.
func (c *Cluster) Close() error {
	if c.cancelPinger != nil {
		c.cancelPinger()
		<-c.pingerDone
	}
	c.byAddress.Range(func(_ Address, entry *memberEntry) bool {
		if entry.member != nil {
			_ = entry.member.close()
		}
		return true
	})
	return nil
}
