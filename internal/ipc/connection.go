package ipc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
)

// State is the IPC connection's lifecycle state (spec.md §4.2).
type State uint8

const (
	StateConnected State = iota
	StateDisconnected
)

func (s State) String() string {
	if s == StateConnected {
		return "Connected"
	}
	return "Disconnected"
}

// backpressureThreshold is the default queue-size warning threshold
// (spec.md §4.2: "configuration constant, default 100 entries").
const backpressureThreshold = 100

// ReceiveCallback is invoked once per fully-received frame.
type ReceiveCallback func(Message)

// DisconnectCallback is invoked exactly once when the connection
// transitions to Disconnected (spec.md §4.2, P9's upstream trigger).
type DisconnectCallback func()

// txEntry is one queued outbound frame (spec.md §3 "SD entry queue"
// sibling for IPC: "TransmissionQueueEntry").
type txEntry struct {
	generic  GenericHeader
	specific SpecificHeader
	payload  []byte
}

// Connection is the IPC Connection component (C2): length-prefixed
// framed transport to one application, with an unbounded FIFO TX queue
// and a backpressure monitor. Grounded on the teacher's goroutine-per-
// session pattern (internal/bfd/session.go): one owning goroutine drains
// the TX queue, a second reads frames and invokes the reception
// callback.
type Connection struct {
	conn   net.Conn
	logger *slog.Logger

	mu                 sync.Mutex
	state              State
	txQueue            []txEntry
	txWake             chan struct{}
	backpressureWarned bool

	receiveCb    ReceiveCallback
	disconnectCb DisconnectCallback
	disconnected sync.Once

	stop chan struct{}
	done chan struct{}
}

// New wraps conn as an IPC Connection and starts its send loop. Call
// StartReceive to begin the receive loop once callbacks are registered.
func New(conn net.Conn, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{
		conn:   conn,
		logger: logger.With("component", "ipc", "peer", conn.RemoteAddr()),
		txWake: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.sendLoop()
	return c
}

// StartReceive registers the reception and disconnection callbacks and
// begins pulling frames (spec.md §4.6 "StartReceive registers a
// disconnection callback and begins pulling frames").
func (c *Connection) StartReceive(receiveCb ReceiveCallback, disconnectCb DisconnectCallback) {
	c.receiveCb = receiveCb
	c.disconnectCb = disconnectCb
	go c.receiveLoop()
}

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendMessage enqueues a generic frame (spec.md §4.2 "generic SendMessage").
func (c *Connection) SendMessage(mt MessageType, specific SpecificHeader, payload []byte) {
	c.enqueue(txEntry{generic: GenericHeader{ProtocolVersion: protocolVersion, MessageType: mt, BodyLength: uint32(len(payload))}, specific: specific, payload: payload})
}

// SendSomeIpMessage enqueues a routing-SOME/IP frame.
func (c *Connection) SendSomeIpMessage(instanceID uint16, payload []byte) {
	c.SendMessage(MessageTypeRoutingSomeIp, SpecificHeader{InstanceID: instanceID}, payload)
}

// SendPduMessage enqueues a routing-PDU frame.
func (c *Connection) SendPduMessage(instanceID uint16, payload []byte) {
	c.SendMessage(MessageTypeRoutingPdu, SpecificHeader{InstanceID: instanceID}, payload)
}

// SendInitialFieldNotificationMessage enqueues a routing-notification
// frame carrying the subscribing ClientId (spec.md §4.4).
func (c *Connection) SendInitialFieldNotificationMessage(instanceID, clientID uint16, payload []byte) {
	c.SendMessage(MessageTypeRoutingNotification, SpecificHeader{InstanceID: instanceID, ClientID: clientID}, payload)
}

func (c *Connection) enqueue(e txEntry) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.txQueue = append(c.txQueue, e)
	size := len(c.txQueue)
	if size > backpressureThreshold && !c.backpressureWarned {
		c.backpressureWarned = true
		c.logger.Warn("ipc tx queue backpressure", "queue_size", size, "threshold", backpressureThreshold)
	}
	c.mu.Unlock()

	select {
	case c.txWake <- struct{}{}:
	default:
	}
}

// sendLoop drains the TX queue strictly FIFO (P8), one frame at a time.
func (c *Connection) sendLoop() {
	defer close(c.done)

	w := bufio.NewWriter(c.conn)
	for {
		entry, ok := c.dequeue()
		if !ok {
			select {
			case <-c.txWake:
				continue
			case <-c.stop:
				return
			}
		}

		if err := writeFrame(w, entry); err != nil {
			c.fail(fmt.Errorf("ipc send: %w", err))
			return
		}
		if err := w.Flush(); err != nil {
			c.fail(fmt.Errorf("ipc flush: %w", err))
			return
		}
	}
}

func (c *Connection) dequeue() (txEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.txQueue) == 0 {
		return txEntry{}, false
	}
	e := c.txQueue[0]
	c.txQueue = c.txQueue[1:]
	if remaining := len(c.txQueue); remaining <= backpressureThreshold {
		c.backpressureWarned = false
	}
	return e, true
}

func writeFrame(w io.Writer, e txEntry) error {
	var hdr [8]byte
	hdr[0] = e.generic.ProtocolVersion
	hdr[1] = byte(e.generic.MessageType)
	binary.NativeEndian.PutUint32(hdr[4:8], e.generic.BodyLength)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	var specific [16]byte
	binary.NativeEndian.PutUint16(specific[0:2], e.specific.InstanceID)
	binary.NativeEndian.PutUint16(specific[2:4], e.specific.ClientID)
	binary.NativeEndian.PutUint32(specific[4:8], e.specific.ReturnCode)
	binary.NativeEndian.PutUint16(specific[8:10], e.specific.Service)
	specific[10] = e.specific.Major
	binary.NativeEndian.PutUint32(specific[11:15], e.specific.Minor)
	if _, err := w.Write(specific[:]); err != nil {
		return err
	}

	if len(e.payload) > 0 {
		if _, err := w.Write(e.payload); err != nil {
			return err
		}
	}
	return nil
}

// receiveLoop reads frames and invokes the reception callback
// (spec.md §4.2 "Receive path").
func (c *Connection) receiveLoop() {
	r := bufio.NewReader(c.conn)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			c.fail(fmt.Errorf("ipc receive: %w", err))
			return
		}

		generic := GenericHeader{
			ProtocolVersion: hdr[0],
			MessageType:     MessageType(hdr[1]),
			BodyLength:      binary.NativeEndian.Uint32(hdr[4:8]),
		}

		var specificBuf [16]byte
		if _, err := io.ReadFull(r, specificBuf[:]); err != nil {
			c.fail(fmt.Errorf("ipc receive specific header: %w", err))
			return
		}
		specific := SpecificHeader{
			InstanceID: binary.NativeEndian.Uint16(specificBuf[0:2]),
			ClientID:   binary.NativeEndian.Uint16(specificBuf[2:4]),
			ReturnCode: binary.NativeEndian.Uint32(specificBuf[4:8]),
			Service:    binary.NativeEndian.Uint16(specificBuf[8:10]),
			Major:      specificBuf[10],
			Minor:      binary.NativeEndian.Uint32(specificBuf[11:15]),
		}

		bufSize := generic.BodyLength
		if bufSize < minRecvBufferSize {
			bufSize = minRecvBufferSize
		}
		payload := make([]byte, generic.BodyLength, bufSize)
		if generic.BodyLength > 0 {
			if _, err := io.ReadFull(r, payload); err != nil {
				c.fail(fmt.Errorf("ipc receive payload: %w", err))
				return
			}
		}

		if c.receiveCb != nil {
			c.receiveCb(Message{Generic: generic, Specific: specific, Payload: payload})
		}
	}
}

// fail transitions the connection to Disconnected and invokes the
// disconnection callback exactly once (spec.md §4.2).
func (c *Connection) fail(err error) {
	c.mu.Lock()
	alreadyDisconnected := c.state == StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()

	if alreadyDisconnected {
		return
	}

	if err != nil && !errors.Is(err, io.EOF) {
		c.logger.Debug("ipc connection failed", "error", err)
	}

	c.disconnected.Do(func() {
		if c.disconnectCb != nil {
			c.disconnectCb()
		}
	})
}

// Close shuts down the connection and stops both loops.
func (c *Connection) Close() error {
	close(c.stop)
	err := c.conn.Close()
	c.fail(nil)
	return err
}
