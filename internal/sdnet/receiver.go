package sdnet

import (
	"context"
	"errors"
	"log/slog"

	"github.com/someipd/someipd/internal/reboot"
	"github.com/someipd/someipd/internal/sdmessage"
)

// ErrNoListeners indicates Run was called without any sockets to read.
var ErrNoListeners = errors.New("sdnet: receiver run: no listeners provided")

// Sink receives a decoded SD message off the wire, the sdnet analogue of
// the teacher's netio.Demuxer. Satisfied by *sdmessage.Processor.
type Sink interface {
	OnSdMessageReceived(peer reboot.PeerKey, isMulticast bool, msg sdmessage.Message)
}

const maxDatagramSize = 65507

// Receiver reads SD datagrams from one or more sockets and hands decoded
// messages to a Sink. Directly grounded on the teacher's netio.Receiver:
// one goroutine per listener, errors logged and otherwise ignored, only
// context cancellation stops the loop.
type Receiver struct {
	sink   Sink
	logger *slog.Logger
}

// NewReceiver creates a Receiver that forwards decoded messages to sink.
func NewReceiver(sink Sink, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{sink: sink, logger: logger.With(slog.String("component", "sdnet.receiver"))}
}

// Run reads from every conn concurrently until ctx is cancelled.
func (r *Receiver) Run(ctx context.Context, conns ...PacketConn) error {
	if len(conns) == 0 {
		return ErrNoListeners
	}

	done := make(chan struct{}, len(conns))
	for _, c := range conns {
		go func(conn PacketConn) {
			r.recvLoop(ctx, conn)
			done <- struct{}{}
		}(c)
	}

	for range len(conns) {
		<-done
	}
	return nil
}

func (r *Receiver) recvLoop(ctx context.Context, conn PacketConn) {
	buf := make([]byte, maxDatagramSize)
	for {
		if ctx.Err() != nil {
			return
		}

		n, meta, err := conn.ReadPacket(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("recv error", slog.String("error", err.Error()))
			continue
		}

		msg, err := DecodeMessage(buf[:n])
		if err != nil {
			r.logger.Debug("invalid sd message",
				slog.String("src", meta.SrcAddr.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		peer := reboot.PeerKey{Addr: meta.SrcAddr.Addr().String(), Port: meta.SrcAddr.Port()}
		r.sink.OnSdMessageReceived(peer, meta.Multicast, msg)
	}
}
