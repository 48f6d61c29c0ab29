// Package hermes publishes and consumes scout's NATS events.
package hermes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Handler processes one message. Handlers run on their own goroutine and may
// take as long as a research run.
type Handler func(subject string, data []byte)

// Options tune how a Client consumes subjects.
type Options struct {
	// Name identifies the connection on the server. Defaults to "scout".
	Name string
	// Queue is the queue group subscriptions join, so that each request is
	// handled by one scout instance. Empty means every instance receives
	// every message.
	Queue string
	// MaxInFlight bounds concurrently running handlers per client.
	// Defaults to 4.
	MaxInFlight int
}

type Client struct {
	conn  *nats.Conn
	queue string
	subs  []*nats.Subscription
	work  *dispatcher

	logger *slog.Logger
}

func NewClient(url, token string, o Options, logger *slog.Logger) (*Client, error) {
	if o.Name == "" {
		o.Name = "scout"
	}
	opts := []nats.Option{
		nats.Name(o.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{
		conn:   nc,
		queue:  o.Queue,
		work:   newDispatcher(o.MaxInFlight, logger),
		logger: logger,
	}, nil
}

// Publish sends data as a JSON payload on subject.
func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe runs handler for every message on subject, joining the client's
// queue group when one is set. Once MaxInFlight handlers are busy, delivery
// waits for one of them to finish.
func (c *Client) Subscribe(subject string, handler Handler) error {
	cb := func(msg *nats.Msg) {
		c.work.dispatch(msg.Subject, msg.Data, handler)
	}

	var (
		sub *nats.Subscription
		err error
	)
	if c.queue != "" {
		sub, err = c.conn.QueueSubscribe(subject, c.queue, cb)
	} else {
		sub, err = c.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject, "queue", c.queue)
	return nil
}

// Connected reports whether the connection is currently up.
func (c *Client) Connected() bool {
	return c.conn.IsConnected()
}

// Close stops delivery, waits for running handlers and closes the
// connection.
func (c *Client) Close() {
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("nats unsubscribe failed", "subject", sub.Subject, "error", err)
		}
	}
	c.work.wait()
	c.conn.Close()
}

// dispatcher runs handlers concurrently, at most n at a time.
type dispatcher struct {
	slots  chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

func newDispatcher(n int, logger *slog.Logger) *dispatcher {
	if n <= 0 {
		n = 4
	}
	return &dispatcher{slots: make(chan struct{}, n), logger: logger}
}

// dispatch blocks until a slot is free, then runs h on its own goroutine.
// A panicking handler is logged and does not take the process down.
func (d *dispatcher) dispatch(subject string, data []byte, h Handler) {
	d.slots <- struct{}{}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.slots }()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("event handler panicked", "subject", subject, "panic", r)
			}
		}()
		h(subject, data)
	}()
}

func (d *dispatcher) wait() {
	d.wg.Wait()
}
