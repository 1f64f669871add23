package sdnet

import (
	"errors"
	"net/netip"
)

// DefaultMulticastAddr is the conventional SOME/IP-SD multicast group.
const DefaultMulticastAddr = "224.244.224.245"

// DefaultPort is the conventional SOME/IP-SD UDP port.
const DefaultPort uint16 = 30490

// PacketMeta is the transport metadata attached to a received datagram,
// the sdnet analogue of the teacher's netio.PacketMeta.
type PacketMeta struct {
	// SrcAddr is the sender's address and port.
	SrcAddr netip.AddrPort

	// IfName is the network interface the datagram arrived on.
	IfName string

	// Multicast reports whether the datagram was received on the
	// multicast group socket rather than the unicast socket.
	Multicast bool
}

// PacketConn abstracts a single UDP socket's send/receive operations.
// Kept minimal, like the teacher's netio.PacketConn, so tests can supply
// an in-memory fake without a real socket.
type PacketConn interface {
	ReadPacket(buf []byte) (n int, meta PacketMeta, err error)
	WritePacket(buf []byte, dst netip.AddrPort) error
	Close() error
	LocalAddr() netip.AddrPort
}

var (
	// ErrSocketClosed indicates an operation on a closed socket.
	ErrSocketClosed = errors.New("sdnet: socket closed")

	// ErrUnexpectedConnType indicates net.ListenPacket returned something
	// other than a *net.UDPConn.
	ErrUnexpectedConnType = errors.New("sdnet: unexpected connection type from ListenPacket")
)
