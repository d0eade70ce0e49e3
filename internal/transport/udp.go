// Package transport provides the UDP broadcast socket olsrd exchanges
// control traffic over. It satisfies olsr.Transport so the protocol engine
// never touches a socket directly.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
)

const maxDatagram = 2048

// UDPConfig configures a UDP broadcast transport.
type UDPConfig struct {
	Port      int
	Interface string // optional; restricts send/receive to this interface
	Logger    *zap.Logger
}

// UDPTransport exchanges OLSR control packets over IPv4 broadcast UDP,
// grounded on the ipv4.PacketConn control-message pattern used for
// interface-aware receive filtering.
type UDPTransport struct {
	conn      *net.UDPConn
	pconn     *ipv4.PacketConn
	port      int
	ifIndex   int
	logger    *zap.Logger
	broadcast *net.UDPAddr
}

// NewUDPTransport opens and configures the broadcast socket.
func NewUDPTransport(cfg UDPConfig) (*UDPTransport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.Port})
	if err != nil {
		return nil, fmt.Errorf("listen udp4 :%d: %w", cfg.Port, err)
	}

	if err := setBroadcast(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set SO_BROADCAST: %w", err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst, true); err != nil {
		logger.Warn("failed to enable ipv4 control messages; continuing without interface filtering", zap.Error(err))
	}

	t := &UDPTransport{
		conn:      conn,
		pconn:     pconn,
		port:      cfg.Port,
		logger:    logger,
		broadcast: &net.UDPAddr{IP: net.IPv4bcast, Port: cfg.Port},
	}

	if cfg.Interface != "" {
		ifi, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("lookup interface %q: %w", cfg.Interface, err)
		}
		t.ifIndex = ifi.Index
		if addr, err := interfaceBroadcast(ifi); err == nil {
			t.broadcast = &net.UDPAddr{IP: addr, Port: cfg.Port}
		}
	}

	return t, nil
}

// Send broadcasts payload on the configured port.
func (t *UDPTransport) Send(ctx context.Context, payload []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}
	_, err := t.conn.WriteToUDP(payload, t.broadcast)
	return err
}

// Receive blocks until a datagram arrives, ctx is cancelled, or an error
// occurs. Packets arriving on a different interface than configured (when
// restricted) are silently skipped.
func (t *UDPTransport) Receive(ctx context.Context) ([]byte, netip.Addr, error) {
	buf := make([]byte, maxDatagram)
	const pollInterval = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil, netip.Addr{}, ctx.Err()
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, cm, src, err := t.pconn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil, netip.Addr{}, ctx.Err()
			}
			return nil, netip.Addr{}, fmt.Errorf("read udp4: %w", err)
		}

		if t.ifIndex != 0 && cm != nil && cm.IfIndex != t.ifIndex {
			continue
		}

		srcAddr, ok := addrFromUDP(src)
		if !ok {
			continue
		}

		out := make([]byte, n)
		copy(out, buf[:n])
		return out, srcAddr, nil
	}
}

// Close releases the underlying socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

// setBroadcast sets SO_BROADCAST on conn's underlying file descriptor.
// net.ListenUDP never sets this itself, and WriteToUDP to a broadcast
// address (net.IPv4bcast, or a subnet broadcast address) fails with
// EACCES on Linux without it.
func setBroadcast(conn *net.UDPConn) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("get raw conn: %w", err)
	}
	var sockErr error
	if err := rawConn.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

func addrFromUDP(a net.Addr) (netip.Addr, bool) {
	udpAddr, ok := a.(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, false
	}
	ip, ok := netip.AddrFromSlice(udpAddr.IP.To4())
	if !ok {
		return netip.Addr{}, false
	}
	return ip, true
}

func interfaceBroadcast(ifi *net.Interface) (net.IP, error) {
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.To4() == nil {
			continue
		}
		bcast := make(net.IP, 4)
		ip4 := ipNet.IP.To4()
		mask := ipNet.Mask
		for i := range bcast {
			bcast[i] = ip4[i] | ^mask[i]
		}
		return bcast, nil
	}
	return nil, fmt.Errorf("no ipv4 address on interface %s", ifi.Name)
}
