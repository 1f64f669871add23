// Package sdnet is the daemon's UDP transport for SOME/IP-SD: joining the
// multicast group, sending and receiving datagrams, and the per-packet
// metadata (source address, interface, multicast flag) the receive path
// reports. The SOME/IP-SD wire byte layout
// itself (entry/option binary framing) is out of scope (spec.md
// Non-goals); this package's codec is an envelope around the already
// decoded sdmessage.Message, the same boundary original_source draws
// between its scheduler_interface.h and the socket layer beneath it.
package sdnet
