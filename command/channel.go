package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hub-control/hubcore/config"
	"github.com/hub-control/hubcore/transport"
)

// ErrQueueClosed indicates an enqueue after DisconnectAll.
var ErrQueueClosed = errors.New("DISCONNECTED")

// Outbound is one message submitted to the channel.
type Outbound struct {
	// Conn is the connection the frame is written to.
	Conn transport.Connection

	// Frame is the encoded wire payload.
	Frame []byte

	// Token correlates an expected reply back to this command. Enqueue
	// assigns one when left empty.
	Token string

	// ExpectReply parks the consumer until Resolve(Token, …) or timeout.
	ExpectReply bool

	// Hub and Label identify the submitter in logs.
	Hub   string
	Label string
}

// Pending is the caller's handle for one in-flight command.
type Pending struct {
	// Token is the correlation token assigned at enqueue.
	Token string

	once  sync.Once
	done  chan struct{}
	value []byte
	err   error
}

// resolve settles the handle exactly once; later calls are ignored.
func (p *Pending) resolve(value []byte, err error) {
	p.once.Do(func() {
		p.value = value
		p.err = err
		close(p.done)
	})
}

// Wait suspends the caller until the command resolves or ctx is done.
func (p *Pending) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done exposes the resolution signal for select loops.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

type entry struct {
	out Outbound
	p   *Pending
}

// Channel serializes all outbound writes through a single consumer.
type Channel struct {
	tr  transport.Transport
	cfg *config.Config
	log zerolog.Logger

	queue chan entry
	stop  chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	pending  map[string]*Pending
	stopping bool
}

// NewChannel creates the channel and starts its consumer goroutine.
func NewChannel(tr transport.Transport, cfg *config.Config, log zerolog.Logger) *Channel {
	c := &Channel{
		tr:      tr,
		cfg:     cfg,
		log:     log.With().Str("component", "command-channel").Logger(),
		queue:   make(chan entry, cfg.QueueDepth),
		stop:    make(chan struct{}),
		pending: make(map[string]*Pending),
	}
	c.wg.Add(1)
	go c.consume()
	return c
}

// Enqueue admits one outbound message and returns its pending handle. It
// blocks only on queue admission, never on transmission or replies.
func (c *Channel) Enqueue(out Outbound) (*Pending, error) {
	if out.Token == "" {
		out.Token = uuid.NewString()
	}
	p := &Pending{Token: out.Token, done: make(chan struct{})}

	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		p.resolve(nil, transport.ErrDisconnected)
		return p, ErrQueueClosed
	}
	c.pending[out.Token] = p
	c.mu.Unlock()

	select {
	case c.queue <- entry{out: out, p: p}:
		return p, nil
	case <-c.stop:
		c.settle(out.Token, nil, transport.ErrDisconnected)
		return p, ErrQueueClosed
	}
}

// Resolve settles the pending command registered under token with a reply
// value. Returns false when no such command is awaiting resolution.
func (c *Channel) Resolve(token string, value []byte) bool {
	return c.settle(token, value, nil)
}

// settle removes the pending entry for token and resolves it.
func (c *Channel) settle(token string, value []byte, err error) bool {
	c.mu.Lock()
	p, ok := c.pending[token]
	if ok {
		delete(c.pending, token)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.resolve(value, err)
	return true
}

// consume is the single writer loop: strict FIFO, one frame at a time.
func (c *Channel) consume() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case e := <-c.queue:
			c.transmit(e)
		}
	}
}

// transmit writes one frame and, for reply-bearing commands, parks until the
// reply or the bounded timeout.
func (c *Channel) transmit(e entry) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	err := c.tr.Write(ctx, e.out.Conn, e.out.Frame)
	cancel()

	if err != nil {
		c.log.Debug().Str("hub", e.out.Hub).Str("label", e.out.Label).Err(err).Msg("write failed")
		c.settle(e.out.Token, nil, err)
		return
	}

	if !e.out.ExpectReply {
		c.settle(e.out.Token, nil, nil)
		return
	}

	timer := time.NewTimer(c.cfg.CommandTimeout)
	defer timer.Stop()
	select {
	case <-e.p.Done():
		// Resolved by the hub's dispatch loop.
	case <-timer.C:
		c.log.Debug().Str("hub", e.out.Hub).Str("label", e.out.Label).Msg("reply timeout")
		c.settle(e.out.Token, nil, transport.ErrTimeout)
	case <-c.stop:
		c.settle(e.out.Token, nil, transport.ErrDisconnected)
	}
}

// DisconnectAll stops the consumer, fails every queued and in-flight command
// with transport.ErrDisconnected, and force-closes every connection the
// transport still holds. It returns the number of connections it had to
// close. Safe to call more than once.
func (c *Channel) DisconnectAll() (int, error) {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return 0, nil
	}
	c.stopping = true
	c.mu.Unlock()

	close(c.stop)
	c.wg.Wait()

	// Drain whatever the consumer never reached.
	for {
		select {
		case e := <-c.queue:
			c.settle(e.out.Token, nil, transport.ErrDisconnected)
			continue
		default:
		}
		break
	}

	// Fail any handle still registered (enqueued but unsettled).
	c.mu.Lock()
	stragglers := make([]*Pending, 0, len(c.pending))
	for token, p := range c.pending {
		delete(c.pending, token)
		stragglers = append(stragglers, p)
	}
	c.mu.Unlock()
	for _, p := range stragglers {
		p.resolve(nil, transport.ErrDisconnected)
	}

	closed, err := c.tr.CloseAll()
	if closed > 0 {
		c.log.Info().Int("connections", closed).Msg("forced transport close at teardown")
	}
	return closed, err
}
