package olsr

import (
	"context"
	"fmt"
	"math/rand"
	"net/netip"
	"sync"
	"time"

	"github.com/olsr-go/olsrd/internal/wire"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Transport is the engine's only way to touch the network: broadcast a
// packet, or wait for the next one to arrive. The engine never opens a
// socket itself.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	Receive(ctx context.Context) (payload []byte, from netip.Addr, err error)
}

// Clock abstracts wall-clock access so tests can drive the engine with a
// fixed or synthetic time source instead of time.Now.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config configures a new Engine.
type Config struct {
	SelfIP      netip.Addr
	Willingness uint8 // advertised in HELLOs; 0 selects WillDefault, so WillNever cannot be configured
	Transport   Transport
	Installer   RouteInstaller
	Logger      *zap.Logger
	Clock       Clock
}

// RouteInstaller is the subset of rtnl.Installer the engine depends on,
// declared locally so this package does not import rtnl.
type RouteInstaller interface {
	Install(dest, nextHop netip.Addr) error
	Remove(dest, nextHop netip.Addr) error
}

// Engine is the OLSR protocol core (C8): it owns every stateful database,
// guarded by a single mutex, and is driven by four concurrent loops
// (receive, HELLO emission, TC emission, cleanup) supervised by an
// errgroup so any one failing tears the others down via context
// cancellation.
type Engine struct {
	selfIP      netip.Addr
	willingness uint8
	transport   Transport
	installer   RouteInstaller
	logger      *zap.Logger
	clock       Clock

	mu sync.Mutex

	duplicates *DuplicateSet
	links      *LinkSet
	neighbors  *NeighborManager
	topology   *TopologyManager
	routes     *RoutingTable

	pktSeq uint16
	msgSeq uint16
	ansn   uint16
}

// NewEngine constructs an Engine ready to Run.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	willingness := cfg.Willingness
	if willingness == 0 {
		willingness = WillDefault
	}
	return &Engine{
		selfIP:      cfg.SelfIP,
		willingness: willingness,
		transport:   cfg.Transport,
		installer:   cfg.Installer,
		logger:      logger,
		clock:       clock,
		duplicates:  NewDuplicateSet(),
		links:       NewLinkSet(cfg.SelfIP),
		neighbors:   NewNeighborManager(cfg.SelfIP),
		topology:    NewTopologyManager(),
		routes:      &RoutingTable{routes: make(map[netip.Addr]RouteEntry)},
	}
}

// Run starts the engine's four concurrent loops and blocks until ctx is
// cancelled or one of them returns an error.
func (e *Engine) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error { return e.receiveLoop(ctx) })
	eg.Go(func() error { return e.periodicLoop(ctx, HelloInterval, e.emitHello) })
	eg.Go(func() error { return e.periodicLoop(ctx, TCInterval, e.emitTC) })
	eg.Go(func() error { return e.periodicLoop(ctx, RefreshInterval, e.cleanup) })

	err := eg.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// jitterWindow is the span timers are perturbed within, per spec.md §9:
// uniform in [-0.5, +0.5) s around each timer, redrawn every iteration so
// peers sharing a broadcast domain don't emit in lockstep.
const jitterWindow = time.Second

// periodicLoop runs fn every interval, jittered per jitterWindow on each
// iteration.
func (e *Engine) periodicLoop(ctx context.Context, interval time.Duration, fn func()) error {
	for {
		jitter := time.Duration(rand.Int63n(int64(jitterWindow))) - jitterWindow/2
		next := interval + jitter
		if next <= 0 {
			next = interval
		}
		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			fn()
		}
	}
}

func (e *Engine) receiveLoop(ctx context.Context) error {
	for {
		payload, from, err := e.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if from == e.selfIP {
			continue
		}
		e.mu.Lock()
		e.processPacket(payload, from)
		e.mu.Unlock()
	}
}

// processPacket decodes a packet's messages and dispatches each to the
// appropriate handler, applying duplicate suppression and MPR forwarding.
// Callers must hold e.mu.
func (e *Engine) processPacket(data []byte, from netip.Addr) {
	if _, err := wire.DecodePacketHeader(data); err != nil {
		e.logger.Debug("dropping malformed packet", zap.Error(err))
		return
	}

	now := e.clock.Now()
	cursor := wire.PacketHeaderLen
	for cursor+wire.MessageHeaderLen <= len(data) {
		header, err := wire.DecodeMessageHeader(data[cursor:])
		if err != nil {
			e.logger.Debug("dropping malformed message", zap.Error(err))
			return
		}
		bodyStart := cursor + wire.MessageHeaderLen
		bodyEnd := cursor + int(header.Size)
		if bodyEnd > len(data) || bodyEnd < bodyStart {
			return
		}
		body := data[bodyStart:bodyEnd]

		if !e.duplicates.IsDuplicate(header.Originator, header.Seq) {
			e.duplicates.Record(header.Originator, header.Seq, now)
			e.dispatch(header, body, from, now)
		}

		if e.shouldForward(from, header) {
			e.forward(data[cursor:bodyEnd], header)
		}

		cursor = bodyEnd
	}
}

func (e *Engine) dispatch(header wire.MessageHeader, body []byte, from netip.Addr, now time.Time) {
	validity := time.Duration(wire.DecodeTime(header.VTime) * float64(time.Second))

	switch header.Type {
	case wire.MessageHello:
		hello, err := wire.DecodeHello(body)
		if err != nil {
			e.logger.Debug("dropping malformed HELLO", zap.Error(err))
			return
		}
		e.handleHello(from, HelloInfoFromWire(hello), validity, now)

	case wire.MessageTC:
		tc, err := wire.DecodeTC(body)
		if err != nil {
			e.logger.Debug("dropping malformed TC", zap.Error(err))
			return
		}
		e.handleTC(header.Originator, tc, validity, now)

	case wire.MessageData:
		data, err := wire.DecodeData(body)
		if err != nil {
			e.logger.Debug("dropping malformed DATA", zap.Error(err))
			return
		}
		e.handleData(data)

	default:
		e.logger.Debug("ignoring unknown message type", zap.Uint8("type", uint8(header.Type)))
	}
}

func (e *Engine) handleHello(sender netip.Addr, info HelloInfo, validity time.Duration, now time.Time) {
	link := e.links.ProcessHello(sender, info, validity, now)
	symmetric := link.Symmetric(now)

	e.neighbors.UpdateStatus(sender, info.Willingness, symmetric)
	if symmetric {
		e.neighbors.ProcessTwoHop(sender, info, validity, now)
		e.neighbors.ProcessMPRSelector(sender, info, validity, now)
		e.neighbors.RecalculateMPR()
	}
	e.recomputeRoutes()
}

func (e *Engine) handleTC(originator netip.Addr, tc wire.TCBody, validity time.Duration, now time.Time) {
	if originator == e.selfIP {
		return
	}
	e.topology.ProcessTC(originator, tc.ANSN, tc.AdvertisedNeighbors, validity, now)
	e.recomputeRoutes()
}

func (e *Engine) handleData(data wire.DataBody) {
	// DATA is broadcast on the segment; only the named next hop acts on it.
	if data.NextHop != e.selfIP {
		return
	}
	if data.Destination == e.selfIP {
		e.logger.Info("received application payload", zap.Int("bytes", len(data.Payload)))
		return
	}

	nextHop, delivered, ok := RouteData(e.selfIP, data.Destination, e.routes)
	if delivered || !ok {
		e.logger.Warn("no route to forward DATA message", zap.Stringer("dest", data.Destination))
		return
	}

	body := wire.EncodeData(data.Destination, nextHop, data.Payload)
	header, err := wire.EncodeMessageHeader(wire.MessageData, 0, len(body), e.selfIP, 32, 0, e.nextMsgSeq())
	if err != nil {
		e.logger.Warn("failed to re-encode forwarded DATA message", zap.Error(err))
		return
	}
	e.sendPacket(append(header, body...))
}

func (e *Engine) recomputeRoutes() {
	old := e.routes
	e.routes = ComputeRoutingTable(e.selfIP, e.neighbors, e.topology)
	if e.installer == nil {
		return
	}
	e.diffInstall(old, e.routes)
}

func (e *Engine) diffInstall(old, cur *RoutingTable) {
	for _, r := range cur.Entries() {
		prev, ok := old.Lookup(r.Dest)
		if ok && prev.NextHop == r.NextHop {
			continue
		}
		if err := e.installer.Install(r.Dest, r.NextHop); err != nil {
			e.logger.Warn("route install failed", zap.Error(err))
		}
	}
	for _, r := range old.Entries() {
		if _, ok := cur.Lookup(r.Dest); !ok {
			if err := e.installer.Remove(r.Dest, r.NextHop); err != nil {
				e.logger.Warn("route remove failed", zap.Error(err))
			}
		}
	}
}

// shouldForward implements the MPR-flooding predicate of RFC 3626 §3.4.1.
// It applies only to messages meant to be flooded network-wide (TC); DATA
// messages are routed hop-by-hop via the routing table in handleData
// instead, and HELLO's TTL of 1 already excludes it. Callers must hold e.mu.
func (e *Engine) shouldForward(from netip.Addr, header wire.MessageHeader) bool {
	if header.Type != wire.MessageTC {
		return false
	}
	if header.TTL <= 1 {
		return false
	}
	if header.Originator == e.selfIP {
		return false
	}
	if e.duplicates.IsRetransmitted(header.Originator, header.Seq) {
		return false
	}
	return e.neighbors.IsMPRSelector(from)
}

func (e *Engine) forward(msg []byte, header wire.MessageHeader) {
	out := make([]byte, len(msg))
	copy(out, msg)
	if err := wire.RewriteForward(out); err != nil {
		e.logger.Warn("failed to rewrite message for forwarding", zap.Error(err))
		return
	}
	e.duplicates.MarkRetransmitted(header.Originator, header.Seq)
	e.sendPacket(out)
}

func (e *Engine) emitHello() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	groups := e.links.BuildHelloGroups(e.neighbors.CurrentMPRSet(), now)

	var wireLinks []wire.LinkMessage
	for _, g := range groups {
		code, err := wire.NewLinkCode(g.LinkType, g.NeighborType)
		if err != nil {
			e.logger.Warn("invalid link code while building HELLO", zap.Error(err))
			continue
		}
		wireLinks = append(wireLinks, wire.LinkMessage{Code: code, Neighbors: g.Addresses})
	}

	body := wire.EncodeHello(HelloInterval.Seconds(), e.willingness, wireLinks)
	header, err := wire.EncodeMessageHeader(wire.MessageHello, NeighborHoldTime.Seconds(), len(body), e.selfIP, 1, 0, e.nextMsgSeq())
	if err != nil {
		e.logger.Warn("failed to encode HELLO header", zap.Error(err))
		return
	}
	e.sendPacket(append(header, body...))
}

func (e *Engine) emitTC() {
	e.mu.Lock()
	defer e.mu.Unlock()

	selectors := e.neighbors.MPRSelectors()
	if len(selectors) == 0 {
		return
	}
	e.ansn = nextSeq(e.ansn)

	body := wire.EncodeTC(e.ansn, selectors)
	header, err := wire.EncodeMessageHeader(wire.MessageTC, TopHoldTime.Seconds(), len(body), e.selfIP, 255, 0, e.nextMsgSeq())
	if err != nil {
		e.logger.Warn("failed to encode TC header", zap.Error(err))
		return
	}
	e.sendPacket(append(header, body...))
}

// SendData encodes and broadcasts an application payload toward dest. The
// first hop is resolved from the current routing table; delivery across
// the rest of the path happens via each intermediate node's own forwarding
// (DATA messages are not MPR-flooded, they follow the unicast-by-hop path
// the routing table names).
func (e *Engine) SendData(dest netip.Addr, payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	nextHop, delivered, ok := RouteData(e.selfIP, dest, e.routes)
	if delivered {
		return nil
	}
	if !ok {
		return fmt.Errorf("no route to %s", dest)
	}

	body := wire.EncodeData(dest, nextHop, payload)
	header, err := wire.EncodeMessageHeader(wire.MessageData, 0, len(body), e.selfIP, 32, 0, e.nextMsgSeq())
	if err != nil {
		return fmt.Errorf("encode data header: %w", err)
	}
	e.sendPacket(append(header, body...))
	return nil
}

func (e *Engine) cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.links.Cleanup(now)
	e.reconcileNeighbors(now)
	e.neighbors.Cleanup(now)
	e.topology.Cleanup(now)
	e.duplicates.Cleanup(now)
	e.neighbors.RecalculateMPR()
	e.recomputeRoutes()
}

// reconcileNeighbors mirrors every 1-hop NeighborTuple's status onto its
// LinkTuple's current symmetry, per spec.md §3's "NeighborTuple lifecycle
// mirrors LinkTuple status" invariant. A neighbor processes one HELLO per
// interval, so without this pass a neighbor whose sender goes silent would
// stay SYM forever instead of losing symmetry (and, eventually, its link
// tuple) once NEIGHB_HOLD_TIME elapses. Callers must hold e.mu.
func (e *Engine) reconcileNeighbors(now time.Time) {
	for _, ip := range e.neighbors.Addrs() {
		link, ok := e.links.Get(ip)
		if !ok {
			e.neighbors.PruneNeighbor(ip)
			continue
		}
		n, _ := e.neighbors.Neighbor(ip)
		e.neighbors.UpdateStatus(ip, n.Willingness, link.Symmetric(now))
	}
}

// RoutingTableSnapshot returns a copy-safe view of the current routing
// table, for CLI "-dump" style reporting.
func (e *Engine) RoutingTableSnapshot() *RoutingTable {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.routes
}

func (e *Engine) sendPacket(msg []byte) {
	header := wire.EncodePacketHeader(len(msg), e.nextPktSeq())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.transport.Send(ctx, append(header, msg...)); err != nil {
		e.logger.Warn("send failed", zap.Error(err))
	}
}

func (e *Engine) nextMsgSeq() uint16 {
	e.msgSeq = nextSeq(e.msgSeq)
	return e.msgSeq
}

func (e *Engine) nextPktSeq() uint16 {
	e.pktSeq = nextSeq(e.pktSeq)
	return e.pktSeq
}
