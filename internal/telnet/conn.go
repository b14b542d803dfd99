package telnet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zlib"
	"go.uber.org/zap"

	"github.com/cory-johannsen/portal/internal/zstream"
)

// Limits bounds the per-connection decode buffers.
type Limits struct {
	// MaxMessageBuffer caps the live decode buffer.
	MaxMessageBuffer int
	// MaxAppdataBuffer caps the unterminated line accumulator.
	MaxAppdataBuffer int
}

// DefaultLimits returns the standard buffer bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxMessageBuffer: 2 * 1024 * 1024,
		MaxAppdataBuffer: 64 * 1024,
	}
}

// ConnConfig tunes a single connection.
type ConnConfig struct {
	Limits             Limits
	NegotiationTimeout time.Duration
	KeepAliveInterval  time.Duration
	CompressionLevel   int
}

// DefaultConnConfig returns the standard connection tuning.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		Limits:             DefaultLimits(),
		NegotiationTimeout: 2 * time.Second,
		KeepAliveInterval:  30 * time.Second,
		CompressionLevel:   zlib.BestCompression,
	}
}

const channelCapacity = 100

var connSeq atomic.Int64

// Conn drives one telnet session: it owns the socket, the outgoing message
// channel, the to-game and to-telnet channels, and the per-option state
// machines. Run composes four tasks (reader, writer, keep-alive, and link
// delivery) racing on a single cancellation; the first to signal shutdown
// decides the reason.
type Conn struct {
	id     int64
	stream net.Conn
	logger *zap.Logger
	cfg    ConnConfig

	outgoing chan outgoingMessage
	toGame   chan ToGame
	toTelnet chan ToTelnet

	options      map[byte]*option
	optionOrder  []byte
	pending      map[string]chan struct{}
	pendingOrder []string

	cdMu sync.Mutex
	cd   ClientData

	telnetMode           atomic.Bool
	negotiationCompleted atomic.Bool

	reason atomic.Int32 // DisconnectReason; negative while unset

	ctx     context.Context
	cancel  context.CancelFunc
	started chan struct{}

	appdata []byte
}

// NewConn wraps an accepted stream. tlsActive marks sessions arriving on
// the TLS listener.
func NewConn(stream net.Conn, tlsActive bool, cfg ConnConfig, logger *zap.Logger) *Conn {
	cd := NewClientData()
	cd.ClientProtocol = "telnet"
	cd.TLS = tlsActive
	if addr, ok := stream.RemoteAddr().(*net.TCPAddr); ok {
		cd.ClientAddress = addr.IP.String()
		cd.ClientHostname = addr.IP.String()
	} else if stream.RemoteAddr() != nil {
		cd.ClientAddress = stream.RemoteAddr().String()
		cd.ClientHostname = stream.RemoteAddr().String()
	}

	c := &Conn{
		id:       connSeq.Add(1),
		stream:   stream,
		logger:   logger,
		cfg:      cfg,
		outgoing: make(chan outgoingMessage, channelCapacity),
		toGame:   make(chan ToGame, channelCapacity),
		toTelnet: make(chan ToTelnet, channelCapacity),
		pending:  map[string]chan struct{}{},
		started:  make(chan struct{}),
		cd:       cd,
	}
	c.reason.Store(-1)
	c.options = newOptions(c)
	c.optionOrder = []byte{
		OptSGA, OptNAWS, OptCharset, OptMTTS, OptMSSP,
		OptMCCP2, OptMCCP3, OptGMCP, OptLinemode, OptEOR,
	}
	return c
}

// ID returns the connection's sequence number.
func (c *Conn) ID() int64 {
	return c.id
}

// ClientData returns a snapshot of the current client capabilities.
func (c *Conn) ClientData() ClientData {
	c.cdMu.Lock()
	defer c.cdMu.Unlock()
	return c.cd
}

// ToGameChannel returns the channel carrying messages for the game side.
func (c *Conn) ToGameChannel() <-chan ToGame {
	return c.toGame
}

// SendToClient enqueues a game-side message for delivery: application
// data passes through, GMCP and MSSP become subnegotiations, and a
// Disconnect closes the session after the queue drains.
func (c *Conn) SendToClient(msg ToTelnet) {
	switch m := msg.(type) {
	case AppData:
		c.enqueue(m)
	case Gmcp:
		c.enqueue(m)
	case Mssp:
		c.enqueue(m)
	case Disconnect:
		c.enqueue(m)
	}
}

// SendGmcp enqueues an outbound GMCP message. data may be nil for a bare
// package name.
func (c *Conn) SendGmcp(command string, data json.RawMessage) {
	c.enqueue(Gmcp{Package: command, Data: data})
}

// SetClientName records the client's self-identification and publishes
// the capability delta.
func (c *Conn) SetClientName(name, version string) {
	c.updateClientData(func(cd *ClientData) {
		cd.ClientName = name
		cd.ClientVersion = version
	})
	c.publishCapabilities(map[string]any{"client_name": name, "client_version": version})
}

// NegotiationCompleted reports whether the negotiation barrier has
// released the link.
func (c *Conn) NegotiationCompleted() bool {
	return c.negotiationCompleted.Load()
}

// Run starts the option negotiations and drives the four connection tasks
// until the first of them signals shutdown. It returns the shutdown
// reason recorded by the winning task.
func (c *Conn) Run(ctx context.Context) DisconnectReason {
	ctx, cancel := context.WithCancel(ctx)
	c.ctx = ctx
	c.cancel = cancel
	defer cancel()

	for _, code := range c.optionOrder {
		c.options[code].start()
	}
	close(c.started)

	// Unblock the reader and writer when the race is decided.
	go func() {
		<-ctx.Done()
		c.stream.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); c.runReader() }()
	go func() { defer wg.Done(); c.runWriter() }()
	go func() { defer wg.Done(); c.runKeepAlive() }()
	go func() { defer wg.Done(); c.runLink() }()
	wg.Wait()

	reason := DisconnectReason(c.reason.Load())
	if reason < 0 {
		reason = ReasonUnknown
	}
	c.logger.Info("telnet connection closed",
		zap.Int64("connection_id", c.id),
		zap.String("reason", reason.String()),
	)
	return reason
}

// signalShutdown records the reason and cancels every task. Only the
// first caller's reason is kept; later calls are idempotent.
func (c *Conn) signalShutdown(reason DisconnectReason) {
	if c.reason.CompareAndSwap(-1, int32(reason)) {
		c.cancel()
	}
}

// runReader reads socket bytes, inflates them once MCCP3 is active,
// parses messages off the decode buffer, and dispatches them.
func (c *Conn) runReader() {
	decompressing := false
	inflater := zstream.NewInflateStream()
	var buf []byte
	chunk := make([]byte, 4096)

	appendDecompressed := func(p []byte) {
		buf = append(buf, p...)
	}

	for {
		n, err := c.stream.Read(chunk)
		if n > 0 {
			if decompressing {
				if _, zerr := inflater.Write(chunk[:n], appendDecompressed); zerr != nil {
					c.logger.Error("inflate failed",
						zap.Int64("connection_id", c.id),
						zap.Error(zerr),
					)
					c.forwardToGame(Disconnect{Reason: ReasonProtocolError})
					c.signalShutdown(ReasonProtocolError)
					return
				}
			} else {
				buf = append(buf, chunk[:n]...)
			}

			if len(buf) > c.cfg.Limits.MaxMessageBuffer {
				c.enqueue(AppData{Data: []byte("Error: protocol buffer exceeded, disconnecting.\r\n")})
				c.forwardToGame(Disconnect{Reason: ReasonBufferOverflow})
				c.signalShutdown(ReasonBufferOverflow)
				return
			}

			for len(buf) > 0 {
				msg, consumed, perr := Parse(buf)
				if errors.Is(perr, ErrIncomplete) {
					break
				}
				buf = buf[consumed:]

				if sub, ok := msg.(Subnegotiation); ok && sub.Option == OptMCCP3 && !decompressing {
					// Everything after the closing SE is compressed input.
					c.updateClientData(func(cd *ClientData) { cd.Mccp3Enabled = true })
					c.publishCapabilities(map[string]any{"mccp3_enabled": true})
					decompressing = true
					inflater.Reset()

					rest := buf
					buf = nil
					if len(rest) > 0 {
						if _, zerr := inflater.Write(rest, appendDecompressed); zerr != nil {
							c.logger.Error("inflate failed",
								zap.Int64("connection_id", c.id),
								zap.Error(zerr),
							)
							c.forwardToGame(Disconnect{Reason: ReasonProtocolError})
							c.signalShutdown(ReasonProtocolError)
							return
						}
					}
				}

				if overflow := c.dispatch(msg); overflow {
					c.enqueue(AppData{Data: []byte("Error: input line too long, disconnecting.\r\n")})
					c.forwardToGame(Disconnect{Reason: ReasonAppdataOverflow})
					c.signalShutdown(ReasonAppdataOverflow)
					return
				}
			}
		}

		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if isEOFLike(err) {
				c.forwardToGame(Disconnect{Reason: ReasonRemoteDisconnect})
			} else {
				c.logger.Warn("read error",
					zap.Int64("connection_id", c.id),
					zap.Error(err),
				)
				c.forwardToGame(Disconnect{Reason: ReasonError})
			}
			c.signalShutdown(ReasonError)
			return
		}
	}
}

func isEOFLike(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}

// dispatch routes one parsed message. It reports an app-data accumulator
// overflow, which is fatal for the connection.
func (c *Conn) dispatch(msg Message) (overflow bool) {
	switch m := msg.(type) {
	case AppData:
		return c.handleAppData(m.Data)

	case Negotiation:
		c.telnetMode.Store(true)
		if opt, ok := c.options[m.Option]; ok {
			opt.receiveNegotiation(m.Command)
			return false
		}
		// unknown options are refused cleanly
		switch m.Command {
		case DO, DONT:
			c.sendNegotiation(WONT, m.Option)
		case WILL, WONT:
			c.sendNegotiation(DONT, m.Option)
		}

	case Subnegotiation:
		c.telnetMode.Store(true)
		if opt, ok := c.options[m.Option]; ok {
			opt.receiveSubnegotiation(m.Data)
		}

	case Command:
		c.telnetMode.Store(true)

	case Gmcp, Mssp:
		// never produced by Parse; lifted forms are option-level
	}
	return false
}

// handleAppData accumulates application bytes and cuts complete lines
// onto the to-game channel. A trailing \r before the newline is stripped.
func (c *Conn) handleAppData(data []byte) (overflow bool) {
	c.appdata = append(c.appdata, data...)

	for {
		nl := -1
		for i, b := range c.appdata {
			if b == '\n' {
				nl = i
				break
			}
		}
		if nl < 0 {
			break
		}
		line := c.appdata[:nl]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		out := make([]byte, len(line))
		copy(out, line)
		c.forwardToGame(AppData{Data: out})
		c.appdata = c.appdata[nl+1:]
	}

	return len(c.appdata) > c.cfg.Limits.MaxAppdataBuffer
}

// runWriter drains the outgoing channel, encoding and writing each
// message. Writing a MCCP2 subnegotiation turns outbound compression on
// for every following byte.
func (c *Conn) runWriter() {
	compressing := false
	var deflater *zstream.DeflateStream

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.outgoing:
			if d, ok := msg.(Disconnect); ok {
				c.signalShutdown(d.Reason)
				return
			}

			wire := Encode(msg.(Message))
			if len(wire) == 0 {
				continue
			}

			out := wire
			if compressing {
				var compressed []byte
				_, err := deflater.Write(wire, func(p []byte) {
					compressed = append(compressed, p...)
				}, zstream.FlushSync)
				if err != nil {
					c.logger.Error("deflate failed",
						zap.Int64("connection_id", c.id),
						zap.Error(err),
					)
					c.signalShutdown(ReasonError)
					return
				}
				out = compressed
			}

			if _, err := c.stream.Write(out); err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Warn("write error",
					zap.Int64("connection_id", c.id),
					zap.Error(err),
				)
				c.signalShutdown(ReasonError)
				return
			}

			if sub, ok := msg.(Subnegotiation); ok && sub.Option == OptMCCP2 && !compressing {
				df, err := zstream.NewDeflateStream(c.cfg.CompressionLevel)
				if err != nil {
					c.logger.Error("deflate init failed",
						zap.Int64("connection_id", c.id),
						zap.Error(err),
					)
					c.signalShutdown(ReasonError)
					return
				}
				deflater = df
				compressing = true
				c.updateClientData(func(cd *ClientData) { cd.Mccp2Enabled = true })
				c.publishCapabilities(map[string]any{"mccp2_enabled": true})
			}
		}
	}
}

// runKeepAlive emits IAC NOP every interval once the peer has spoken
// telnet at least once.
func (c *Conn) runKeepAlive() {
	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.telnetMode.Load() {
				c.enqueue(Command{Code: NOP})
			}
		}
	}
}

// runLink waits for the negotiation barrier, hands the link to the portal
// via the process-wide link channel, then bridges the to-telnet channel
// into the outgoing queue until cancelled.
func (c *Conn) runLink() {
	c.negotiateOptions()
	c.negotiationCompleted.Store(true)

	link := c.makeLink()
	select {
	case <-c.ctx.Done():
		return
	case linkChannel <- link:
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.toTelnet:
			c.SendToClient(msg)
		}
	}
}

// negotiateOptions awaits every registered pending signal against the
// configured deadline. The deadline firing is success too: the link
// proceeds with whatever capabilities were discovered.
func (c *Conn) negotiateOptions() {
	deadline := time.NewTimer(c.cfg.NegotiationTimeout)
	defer deadline.Stop()

	for _, name := range c.pendingOrder {
		select {
		case <-c.pending[name]:
		case <-deadline.C:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) makeLink() *Link {
	return &Link{
		ConnectionID: c.id,
		RemoteAddr:   c.stream.RemoteAddr(),
		Hostname:     c.ClientData().ClientHostname,
		ClientData:   c.ClientData(),
		ToGame:       c.toGame,
		ToTelnet:     c.toTelnet,
	}
}

// enqueue places a message on the outgoing queue, giving up on
// cancellation.
func (c *Conn) enqueue(msg outgoingMessage) {
	if c.ctx == nil {
		// before Run: no cancellation exists yet
		c.outgoing <- msg
		return
	}
	select {
	case c.outgoing <- msg:
	case <-c.ctx.Done():
	}
}

// optionHost implementation

func (c *Conn) sendNegotiation(command, opt byte) {
	c.enqueue(Negotiation{Command: command, Option: opt})
}

func (c *Conn) sendSubnegotiation(opt byte, data []byte) {
	c.enqueue(Subnegotiation{Option: opt, Data: data})
}

func (c *Conn) publishCapabilities(delta map[string]any) {
	payload, err := json.Marshal(delta)
	if err != nil {
		c.logger.Error("capability delta marshal failed", zap.Error(err))
		return
	}
	c.forwardToGame(ChangeCapabilities{Capabilities: payload})
}

func (c *Conn) registerPending(name string) {
	if _, ok := c.pending[name]; ok {
		return
	}
	c.pending[name] = make(chan struct{}, 1)
	c.pendingOrder = append(c.pendingOrder, name)
}

func (c *Conn) markNegotiationComplete(name string) {
	ch, ok := c.pending[name]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (c *Conn) forwardToGame(msg ToGame) {
	if c.ctx == nil {
		c.toGame <- msg
		return
	}
	select {
	case c.toGame <- msg:
	case <-c.ctx.Done():
	}
}

func (c *Conn) updateClientData(fn func(cd *ClientData)) {
	c.cdMu.Lock()
	defer c.cdMu.Unlock()
	fn(&c.cd)
}
