// Package dnssdadapter implements mdns.Discoverer over the pure-Go
// github.com/brutella/dnssd stack, requiring no system mDNS daemon.
package dnssdadapter

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/brutella/dnssd"

	"github.com/tschiemer/aes67-core/mdns"
)

// Adapter is a mdns.Discoverer backed by a single shared dnssd.Responder
// for everything this process publishes, and ad hoc dnssd.LookupType
// calls (one goroutine each, cancelled via context) for browse/resolve.
type Adapter struct {
	ctx       context.Context
	responder dnssd.Responder

	mu       sync.Mutex
	services map[dnssd.ServiceHandle]dnssd.Config
}

// New starts a shared responder bound to ctx; the responder stops when
// ctx is cancelled.
func New(ctx context.Context) (*Adapter, error) {
	r, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("dnssdadapter: new responder: %w", err)
	}
	a := &Adapter{ctx: ctx, responder: r, services: make(map[dnssd.ServiceHandle]dnssd.Config)}
	go func() {
		_ = r.Respond(ctx)
	}()
	return a, nil
}

type browseHandle struct{ cancel context.CancelFunc }

func (h *browseHandle) Stop() { h.cancel() }

// Browse watches serviceType under domain until the returned handle is
// stopped. dnssd.LookupType blocks its goroutine for the operation's
// lifetime; Stop cancels the derived context to unblock it.
func (a *Adapter) Browse(serviceType, domain string, cb func(mdns.BrowseEvent)) (mdns.BrowseHandle, error) {
	ctx, cancel := context.WithCancel(a.ctx)
	go func() {
		_ = dnssd.LookupType(ctx, qualifiedType(serviceType, domain),
			func(e dnssd.BrowseEntry) {
				cb(mdns.BrowseEvent{Result: mdns.ResultDiscovered, Type: e.Type, Name: e.Name, Domain: e.Domain})
			},
			func(e dnssd.BrowseEntry) {
				cb(mdns.BrowseEvent{Result: mdns.ResultTerminated, Type: e.Type, Name: e.Name, Domain: e.Domain})
			},
		)
	}()
	return &browseHandle{cancel: cancel}, nil
}

type resolveHandle struct{ cancel context.CancelFunc }

func (h *resolveHandle) Stop() { h.cancel() }

// Resolve watches for a single named instance's address data. dnssd has
// no standalone "resolve one instance, keep watching" call distinct
// from browse, so this filters a LookupType stream down to the
// requested name - each matching add/remove is translated into a
// ResolveEvent with the instance's already-resolved host/port/TXT/IP.
func (a *Adapter) Resolve(serviceType, name, domain string, cb func(mdns.ResolveEvent)) (mdns.ResolveHandle, error) {
	ctx, cancel := context.WithCancel(a.ctx)
	go func() {
		_ = dnssd.LookupType(ctx, qualifiedType(serviceType, domain),
			func(e dnssd.BrowseEntry) {
				if e.Name != name {
					return
				}
				cb(resolveEventFromEntry(mdns.ResultDiscovered, e))
			},
			func(e dnssd.BrowseEntry) {
				if e.Name != name {
					return
				}
				cb(resolveEventFromEntry(mdns.ResultTerminated, e))
			},
		)
	}()
	return &resolveHandle{cancel: cancel}, nil
}

func resolveEventFromEntry(result mdns.Result, e dnssd.BrowseEntry) mdns.ResolveEvent {
	var ip net.IP
	if len(e.IPs) > 0 {
		ip = e.IPs[0]
	}
	return mdns.ResolveEvent{
		Result:     result,
		Type:       e.Type,
		Name:       e.Name,
		HostTarget: e.Host,
		Port:       e.Port,
		Text:       e.Text,
		IP:         ip,
		TTLSeconds: uint32(e.TTL.Seconds()),
	}
}

type publishHandle struct {
	adapter *Adapter
	handle  dnssd.ServiceHandle
}

func (h *publishHandle) Stop() {
	h.adapter.responder.Remove(h.handle)
	h.adapter.mu.Lock()
	delete(h.adapter.services, h.handle)
	h.adapter.mu.Unlock()
}

// PublishService registers a local service with the shared responder.
func (a *Adapter) PublishService(serviceType, name, host string, port int, txt map[string]string) (mdns.PublishHandle, error) {
	cfg := dnssd.Config{
		Name: name,
		Type: serviceType,
		Host: host,
		Text: txt,
		Port: port,
	}
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("dnssdadapter: new service: %w", err)
	}
	h, err := a.responder.Add(svc)
	if err != nil {
		return nil, fmt.Errorf("dnssdadapter: add service: %w", err)
	}
	a.mu.Lock()
	a.services[h] = cfg
	a.mu.Unlock()
	return &publishHandle{adapter: a, handle: h}, nil
}

// AddRecord appends a TXT entry to an already-published service. dnssd
// has no in-place TXT mutation, so this republishes the service under
// its original name/type/port with the extra entry merged in.
func (a *Adapter) AddRecord(handle mdns.PublishHandle, key, value string) error {
	ph, ok := handle.(*publishHandle)
	if !ok {
		return fmt.Errorf("dnssdadapter: handle not created by this adapter")
	}

	a.mu.Lock()
	cfg, ok := a.services[ph.handle]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("dnssdadapter: unknown service handle")
	}

	txt := make(map[string]string, len(cfg.Text)+1)
	for k, v := range cfg.Text {
		txt[k] = v
	}
	txt[key] = value
	cfg.Text = txt

	a.responder.Remove(ph.handle)
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("dnssdadapter: new service: %w", err)
	}
	newHandle, err := a.responder.Add(svc)
	if err != nil {
		return fmt.Errorf("dnssdadapter: add service: %w", err)
	}

	a.mu.Lock()
	delete(a.services, ph.handle)
	a.services[newHandle] = cfg
	a.mu.Unlock()
	ph.handle = newHandle
	return nil
}

// qualifiedType appends a non-default domain to serviceType in the
// "_type._proto.domain." form dnssd.LookupType accepts; an empty domain
// leaves the lookup scoped to the default "local." domain.
func qualifiedType(serviceType, domain string) string {
	if domain == "" {
		return serviceType
	}
	return serviceType + "." + domain
}
