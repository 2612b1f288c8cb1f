// Package discovery announces the admin HTTP/SSE surface on the local
// network via mDNS/DNS-SD, so an operator's client can find a running
// analyzer without having been handed its address out of band.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"

	"github.com/charmbracelet/log"
)

// ServiceType is the DNS-SD service type this daemon announces itself
// under.
const ServiceType = "_paanalyzer._tcp"

// Announcer wraps a dnssd.Responder for one advertised service.
type Announcer struct {
	responder dnssd.Responder
	logger    *log.Logger
}

// Announce publishes name on port over mDNS/DNS-SD and starts the
// responder goroutine. Unlike the teacher's fire-and-forget
// dns_sd_announce (which responds on context.Background() for the life
// of the process), this takes ctx from the caller: when ctx is
// cancelled the responder goroutine returns and the service stops
// being advertised, so the announcement tears down alongside the rest
// of the daemon on shutdown. Grounded on the teacher's src/dns_sd.go
// (same pure-Go brutella/dnssd package, same
// Config/NewService/NewResponder/Add/Respond sequence), generalized
// from announcing a KISS-TCP port to this daemon's admin surface.
func Announce(ctx context.Context, name string, port int, logger *log.Logger) (*Announcer, error) {
	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: new service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: new responder: %w", err)
	}

	if _, err := responder.Add(svc); err != nil {
		return nil, fmt.Errorf("discovery: add service: %w", err)
	}

	a := &Announcer{responder: responder, logger: logger}

	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("dns-sd responder stopped", "err", err)
		}
	}()

	logger.Info("announcing admin surface via mDNS/DNS-SD", "name", name, "type", ServiceType, "port", port)
	return a, nil
}
