package server

import (
	"net"
	"sync"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/pkg/logger"
)

// Pool tracks which connections subscribed to which update type and fans
// pushed updates out to them. Connections that fail a write are dropped
// from the subscription.
type Pool struct {
	mu  sync.RWMutex
	m   map[common.UpdateType][]net.Conn
	log logger.Logger
}

func NewPool(l logger.Logger) *Pool {
	return &Pool{
		m:   make(map[common.UpdateType][]net.Conn),
		log: l,
	}
}

// Subscribe registers conn for updates of the given type. Subscribing the
// same connection twice is a no-op.
func (p *Pool) Subscribe(utype common.UpdateType, conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.m[utype] {
		if c == conn {
			return
		}
	}
	p.m[utype] = append(p.m[utype], conn)
}

// Unsubscribe removes conn from the given update type's subscribers.
func (p *Pool) Unsubscribe(utype common.UpdateType, conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns := p.m[utype]
	for i, c := range conns {
		if c == conn {
			conns[i] = conns[len(conns)-1]
			p.m[utype] = conns[:len(conns)-1]
			return
		}
	}
}

// Drop removes conn from every subscription. Called when a client
// connection closes.
func (p *Pool) Drop(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for utype, conns := range p.m {
		for i, c := range conns {
			if c == conn {
				conns[i] = conns[len(conns)-1]
				p.m[utype] = conns[:len(conns)-1]
				break
			}
		}
	}
}

// Broadcast sends msg, framed as an update of the given type, to every
// subscriber. Failed connections are closed and dropped.
func (p *Pool) Broadcast(utype common.UpdateType, msg any) {
	data := MakeResult(utype, msg)
	head := intToBytes(uint32(len(data)))

	p.mu.RLock()
	conns := make([]net.Conn, len(p.m[utype]))
	copy(conns, p.m[utype])
	p.mu.RUnlock()

	var failed []net.Conn
	for _, conn := range conns {
		if _, err := conn.Write(head); err != nil {
			p.log.Warning("dropping %s subscriber: %s", utype, err.Error())
			failed = append(failed, conn)
			continue
		}
		if _, err := conn.Write(data); err != nil {
			p.log.Warning("dropping %s subscriber: %s", utype, err.Error())
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		_ = conn.Close()
		p.Drop(conn)
	}
}

// Subscribers returns the number of connections subscribed to utype.
func (p *Pool) Subscribers(utype common.UpdateType) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m[utype])
}
