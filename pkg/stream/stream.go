// Package stream keeps a transactionSubscribe websocket open against a
// program and hands every received frame to a handler.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/radiantsdao/burnwatch/pkg/logging"
)

const (
	DefaultPingInterval   = 30 * time.Second
	DefaultReconnectDelay = 5 * time.Second

	subscriptionID = 420
	pingDeadline   = 10 * time.Second
)

// State is the lifecycle state of a Connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Socket is an open websocket. *websocket.Conn implements it.
type Socket interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	// Proxy is an optional proxy URL; empty means the environment's.
	Proxy string
}

func (d WebsocketDialer) Dial(ctx context.Context, rawURL string) (Socket, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	if d.Proxy != "" {
		proxyURL, err := url.Parse(d.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
	}
	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

type subscriptionRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type transactionFilter struct {
	AccountInclude []string `json:"accountInclude"`
}

type transactionOptions struct {
	Commitment                     string `json:"commitment"`
	Encoding                       string `json:"encoding"`
	TransactionDetails             string `json:"transactionDetails"`
	ShowRewards                    bool   `json:"showRewards"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
}

// SubscriptionRequest is the message sent once per connection to receive
// finalized transactions that touch program.
func SubscriptionRequest(program solana.PublicKey) interface{} {
	return subscriptionRequest{
		JSONRPC: "2.0",
		ID:      subscriptionID,
		Method:  "transactionSubscribe",
		Params: []interface{}{
			transactionFilter{AccountInclude: []string{program.String()}},
			transactionOptions{
				Commitment:                     "finalized",
				Encoding:                       "jsonParsed",
				TransactionDetails:             "full",
				ShowRewards:                    false,
				MaxSupportedTransactionVersion: 0,
			},
		},
	}
}

// Connection owns one logical subscription. Run keeps at most one socket
// open at a time and replaces it after every close.
type Connection struct {
	Name    string
	URL     string
	Program solana.PublicKey
	Dialer  Dialer
	// Policy defaults to FixedDelay(DefaultReconnectDelay).
	Policy ReconnectPolicy
	// PingInterval defaults to DefaultPingInterval.
	PingInterval time.Duration
	// Handler is called on the connection's goroutine for every frame, in
	// arrival order.
	Handler func(frame []byte)
	Log     logging.Logger

	OnStateChange func(State)
	OnReconnect   func(attempt int, delay time.Duration)

	mu    sync.RWMutex
	state State

	// after is time.After; tests replace it.
	after func(time.Duration) <-chan time.Time
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.OnStateChange != nil {
		c.OnStateChange(s)
	}
}

// Run connects, subscribes and reads until ctx is done. Every close, clean
// or not, schedules exactly one reconnect after the policy's delay. Run
// returns nil once ctx is cancelled.
func (c *Connection) Run(ctx context.Context) error {
	if c.Dialer == nil || c.Handler == nil {
		return fmt.Errorf("stream %s: dialer and handler are required", c.Name)
	}
	log := logging.OrNop(c.Log)
	policy := c.Policy
	if policy == nil {
		policy = FixedDelay(DefaultReconnectDelay)
	}
	after := c.after
	if after == nil {
		after = time.After
	}

	attempt := 0
	for {
		c.setState(StateConnecting)
		subscribed, err := c.session(ctx, log)
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			log.Infof("Stream %s stopped", c.Name)
			return nil
		}
		if subscribed {
			attempt = 0
		}

		delay := policy.NextDelay(attempt)
		attempt++
		log.Warnf("Stream %s closed: %v. Reconnecting in %s", c.Name, err, delay)
		if c.OnReconnect != nil {
			c.OnReconnect(attempt, delay)
		}

		select {
		case <-ctx.Done():
			log.Infof("Stream %s stopped", c.Name)
			return nil
		case <-after(delay):
		}
	}
}

// session runs one socket from dial to close. subscribed reports whether the
// subscription request was written.
func (c *Connection) session(ctx context.Context, log logging.Logger) (subscribed bool, err error) {
	log.Infof("Connecting stream %s", c.Name)
	sock, err := c.Dialer.Dial(ctx, c.URL)
	if err != nil {
		return false, err
	}
	defer sock.Close()

	if err := sock.WriteJSON(SubscriptionRequest(c.Program)); err != nil {
		return false, fmt.Errorf("send subscription: %w", err)
	}
	c.setState(StateSubscribed)
	log.Infof("Stream %s subscribed to %s", c.Name, c.Program)

	done := make(chan struct{})
	defer close(done)
	go c.keepalive(ctx, sock, done, log)

	for {
		_, frame, err := sock.ReadMessage()
		if err != nil {
			return true, err
		}
		c.Handler(frame)
	}
}

// keepalive pings the socket until done, and closes it when ctx ends so the
// blocked read returns.
func (c *Connection) keepalive(ctx context.Context, sock Socket, done <-chan struct{}, log logging.Logger) {
	interval := c.PingInterval
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			sock.Close()
			return
		case <-ticker.C:
			if err := sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingDeadline)); err != nil {
				log.Debugf("Ping on stream %s failed: %v", c.Name, err)
			}
		}
	}
}
