// Package crankcli is the client library the CLI uses to talk to a running
// crankd daemon over its local socket transport.
package crankcli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/crankd/crankd/common"
)

type Client struct {
	mu   sync.Mutex
	d    *Dispatcher
	conn net.Conn
}

// NewClient connects to the daemon over the platform transport: Unix socket
// or named pipe, falling back to TCP.
func NewClient() (*Client, error) {
	conn, err := dial()
	if err != nil {
		return nil, fmt.Errorf("error connecting to daemon: %s", err.Error())
	}
	return &Client{
		conn: conn,
		d:    &Dispatcher{},
	}, nil
}

// Close terminates the daemon connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// AddHandler registers a handler for pushed updates of the given type.
func (c *Client) AddHandler(utype common.UpdateType, h Handler) {
	if c.d.Handlers == nil {
		c.d.Handlers = make(map[common.UpdateType]Handler)
	}
	c.d.Handlers[utype] = h
}

// Listen consumes pushed updates until the connection closes or a handler
// returns ErrDisconnect.
func (c *Client) Listen() (err error) {
	defer c.conn.Close()
	for {
		var buf []byte
		buf, err = read(c.conn)
		if err != nil {
			err = fmt.Errorf("error reading: %s", err.Error())
			return
		}
		err = c.d.process(buf)
		if err != nil {
			if errors.Is(err, ErrDisconnect) {
				return nil
			}
			err = fmt.Errorf("error processing: %s", err.Error())
			return
		}
	}
}

func (c *Client) invoke(method common.UpdateType, message any) (json.RawMessage, error) {
	// one request-response exchange at a time per connection
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := json.Marshal(&Request{
		Method:  method,
		Message: message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	err = write(c.conn, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	buf, err = read(c.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %s", method, err.Error())
	}
	var res Response
	err = json.Unmarshal(buf, &res)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %s", method, err.Error())
	}
	if !res.Ok {
		return nil, errors.New(res.Error)
	}
	if res.Update == nil {
		return nil, fmt.Errorf("malformed %s response: missing update", method)
	}
	return res.Update.Message, nil
}
