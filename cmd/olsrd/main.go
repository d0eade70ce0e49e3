// Command olsrd runs the core of an RFC 3626 OLSR routing daemon for IPv4
// MANETs: link sensing, MPR election, MPR-flooded TC, and Dijkstra-based
// routing over a UDP broadcast segment.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"time"

	"github.com/olsr-go/olsrd/internal/olsr"
	"github.com/olsr-go/olsrd/internal/rtnl"
	"github.com/olsr-go/olsrd/internal/transport"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		originator  = flag.String("ip", "", "this node's originator address (required; may also be given as the first positional argument)")
		iface       = flag.String("iface", "", "network interface to bind to (optional, all interfaces if unset)")
		port        = flag.Int("port", olsr.OLSRPort, "UDP port for OLSR control traffic")
		willingness = flag.Uint("willingness", uint(olsr.WillDefault), "MPR willingness (1=low, 3=default, 6=high, 7=always; 0 is replaced by the default 3)")
		dump        = flag.Duration("dump", 0, "periodically log the routing table at this interval (0 disables)")
		debug       = flag.Bool("debug", false, "enable debug-level logging")
	)
	flag.Parse()

	if *originator == "" && flag.NArg() > 0 {
		*originator = flag.Arg(0)
	}
	if *originator == "" {
		return fmt.Errorf("-ip (or a positional originator address) is required")
	}
	selfIP, err := netip.ParseAddr(*originator)
	if err != nil {
		return fmt.Errorf("invalid -ip %q: %w", *originator, err)
	}
	if !selfIP.Is4() {
		return fmt.Errorf("-ip must be an IPv4 address, got %q", *originator)
	}
	if *willingness > 7 {
		return fmt.Errorf("-willingness must be between 0 and 7, got %d", *willingness)
	}

	logger, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	tp, err := transport.NewUDPTransport(transport.UDPConfig{
		Port:      *port,
		Interface: *iface,
		Logger:    logger.Named("transport"),
	})
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	defer tp.Close()

	engine := olsr.NewEngine(olsr.Config{
		SelfIP:      selfIP,
		Willingness: uint8(*willingness),
		Transport:   tp,
		Installer:   rtnl.NewNoopInstaller(logger.Named("rtnl")),
		Logger:      logger.Named("engine"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("starting olsrd", zap.Stringer("originator", selfIP), zap.Int("port", *port))

	if *dump > 0 {
		go dumpRoutingTable(ctx, engine, *dump, logger)
	}

	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("engine run: %w", err)
	}
	return nil
}

func dumpRoutingTable(ctx context.Context, engine *olsr.Engine, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt := engine.RoutingTableSnapshot()
			logger.Info("routing table", zap.String("table", "\n"+rt.String()))
		}
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
