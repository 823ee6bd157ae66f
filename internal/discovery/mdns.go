// ABOUTME: mDNS discovery of stream servers on the local network
// ABOUTME: Browses for _auralis-stream._tcp and hands results to the caller
package discovery

import (
	"context"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

// serviceType is the mDNS service advertised by stream servers.
const serviceType = "_auralis-stream._tcp"

// ServerInfo describes a discovered stream server.
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Manager browses the local network for stream servers.
type Manager struct {
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// NewManager creates a discovery manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Browse starts searching for stream servers in the background.
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				if entry.AddrV4 == nil {
					continue
				}

				server := &ServerInfo{
					Name: entry.Name,
					Host: entry.AddrV4.String(),
					Port: entry.Port,
				}

				log.Info().Str("name", server.Name).Str("host", server.Host).Int("port", server.Port).Msg("Discovered stream server")

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: serviceType,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			log.Debug().Err(err).Msg("mDNS query failed")
		}
		close(entries)
	}
}

// Servers returns the channel of discovered servers.
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop ends browsing.
func (m *Manager) Stop() {
	m.cancel()
}
