// Package rtnl provides the kernel FIB-installation boundary: the engine
// computes routes, rtnl is where (if at all) they'd be pushed into the
// kernel routing table via netlink. Installing real routes into the kernel
// is outside this repo's scope (spec Non-goal); this package only defines
// the seam and a logging stand-in.
package rtnl

import (
	"net/netip"

	"go.uber.org/zap"
)

// Installer receives routing table diffs from the engine. A real
// implementation would translate these into RTM_NEWROUTE/RTM_DELROUTE
// netlink messages; this repo ships only the interface and a logging
// no-op, since kernel FIB programming is explicitly out of scope. The
// method set matches olsr.RouteInstaller by shape so any Installer can be
// handed to an Engine without an adapter.
type Installer interface {
	Install(dest, nextHop netip.Addr) error
	Remove(dest, nextHop netip.Addr) error
}

// NoopInstaller logs route changes instead of programming the kernel FIB.
type NoopInstaller struct {
	Logger *zap.Logger
}

// NewNoopInstaller returns an Installer that only logs.
func NewNoopInstaller(logger *zap.Logger) *NoopInstaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopInstaller{Logger: logger}
}

func (n *NoopInstaller) Install(dest, nextHop netip.Addr) error {
	n.Logger.Debug("route install (noop)", zap.Stringer("dest", dest), zap.Stringer("next_hop", nextHop))
	return nil
}

func (n *NoopInstaller) Remove(dest, nextHop netip.Addr) error {
	n.Logger.Debug("route remove (noop)", zap.Stringer("dest", dest), zap.Stringer("next_hop", nextHop))
	return nil
}
