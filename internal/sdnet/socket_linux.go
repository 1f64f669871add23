//go:build linux

package sdnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// UDPConn implements PacketConn over a real UDP socket, optionally joined
// to the SOME/IP-SD multicast group. Grounded on the teacher's
// netio.LinuxPacketConn: a ListenConfig.Control callback configures
// socket options before the kernel binds, and the multicast join (not
// needed by BFD, which is always unicast) is layered on top via
// golang.org/x/net/ipv4, the idiomatic Go multicast API.
type UDPConn struct {
	conn      *net.UDPConn
	pconn     *ipv4.PacketConn // non-nil only for multicast-joined sockets
	localAddr netip.AddrPort
	ifName    string
	multicast bool

	mu     sync.Mutex
	closed bool
}

// ListenUnicast opens a UDP socket bound to addr:port for unicast SD
// traffic (FindService replies, SubscribeEventgroup to a specific
// offerer).
func ListenUnicast(ctx context.Context, addr netip.Addr, port uint16, ifName string) (*UDPConn, error) {
	laddr := netip.AddrPortFrom(addr, port)

	conn, err := listenUDP(ctx, laddr, ifName)
	if err != nil {
		return nil, fmt.Errorf("sdnet: listen unicast %s: %w", laddr, err)
	}

	return &UDPConn{conn: conn, localAddr: laddr, ifName: ifName}, nil
}

// ListenMulticast opens a UDP socket bound to groupAddr:port and joins
// the multicast group on the named interface, per SOME/IP-SD's use of a
// well-known multicast group (default 224.244.224.245:30490) for offers
// and service discovery.
func ListenMulticast(ctx context.Context, groupAddr netip.Addr, port uint16, ifName string) (*UDPConn, error) {
	laddr := netip.AddrPortFrom(groupAddr, port)

	conn, err := listenUDP(ctx, netip.AddrPortFrom(netip.IPv4Unspecified(), port), ifName)
	if err != nil {
		return nil, fmt.Errorf("sdnet: listen multicast %s: %w", laddr, err)
	}

	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		closeErr := conn.Close()
		return nil, errors.Join(fmt.Errorf("sdnet: resolve interface %s: %w", ifName, err), closeErr)
	}

	pconn := ipv4.NewPacketConn(conn)
	group := net.UDPAddr{IP: groupAddr.AsSlice()}
	if err := pconn.JoinGroup(iface, &group); err != nil {
		closeErr := conn.Close()
		return nil, errors.Join(fmt.Errorf("sdnet: join multicast group %s on %s: %w", groupAddr, ifName, err), closeErr)
	}

	return &UDPConn{
		conn:      conn,
		pconn:     pconn,
		localAddr: laddr,
		ifName:    ifName,
		multicast: true,
	}, nil
}

// ReadPacket reads a single SD datagram.
func (c *UDPConn) ReadPacket(buf []byte) (int, PacketMeta, error) {
	n, src, err := c.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return 0, PacketMeta{}, fmt.Errorf("sdnet: read packet: %w", err)
	}

	return n, PacketMeta{SrcAddr: src, IfName: c.ifName, Multicast: c.multicast}, nil
}

// WritePacket sends buf to dst.
func (c *UDPConn) WritePacket(buf []byte, dst netip.AddrPort) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("sdnet: write to %s: %w", dst, ErrSocketClosed)
	}
	c.mu.Unlock()

	if _, err := c.conn.WriteToUDPAddrPort(buf, dst); err != nil {
		return fmt.Errorf("sdnet: write packet to %s: %w", dst, err)
	}
	return nil
}

// Close releases the underlying socket; a joined multicast group
// membership ends with it.
func (c *UDPConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("sdnet: close socket: %w", err)
	}
	return nil
}

// LocalAddr returns the bound local address.
func (c *UDPConn) LocalAddr() netip.AddrPort {
	return c.localAddr
}

func listenUDP(ctx context.Context, laddr netip.AddrPort, ifName string) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setSocketOpts(c, ifName)
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp4", laddr.String())
	if err != nil {
		return nil, fmt.Errorf("listen UDP %s: %w", laddr, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		closeErr := pc.Close()
		return nil, errors.Join(fmt.Errorf("listen UDP %s: %w", laddr, ErrUnexpectedConnType), closeErr)
	}

	return conn, nil
}

// setSocketOpts sets SO_REUSEADDR (so the multicast group and unicast
// listener can coexist across restarts) and SO_BINDTODEVICE when a
// specific interface was requested.
func setSocketOpts(c syscall.RawConn, ifName string) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		//nolint:gosec // G115: fd uintptr->int is safe; kernel FDs are always small positive integers.
		intFD := int(fd)

		if sockErr = unix.SetsockoptInt(intFD, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
			sockErr = fmt.Errorf("set SO_REUSEADDR: %w", sockErr)
			return
		}

		if ifName == "" {
			return
		}
		if sockErr = unix.SetsockoptString(intFD, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifName); sockErr != nil {
			sockErr = fmt.Errorf("set SO_BINDTODEVICE(%s): %w", ifName, sockErr)
		}
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}

	return sockErr
}
