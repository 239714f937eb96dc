package sink

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const maxMsgSize = 64 * 1024 * 1024

// TraceBatch is the wire message sent to the collector: a node-tagged
// slice of events, gob-encoded by gobCodec rather than protoc-generated.
type TraceBatch struct {
	NodeName string
	Events   []TraceEvent
}

// CollectorAck is the empty acknowledgement the collector returns.
type CollectorAck struct{}

// GRPCSink batches emitted events and forwards them to a collector daemon
// over gRPC, the same shape as the upstream gRPC forwarding client this
// package is modeled on: an internal channel decouples callers of Emit
// (harvester goroutines) from the network send loop.
type GRPCSink struct {
	conn     *grpc.ClientConn
	nodeName string
	logger   *zap.Logger

	eventCh chan TraceEvent
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
}

func NewGRPCSink(address, port, nodeName string, logger *zap.Logger) (*GRPCSink, error) {
	serverAddress := fmt.Sprintf("%s:%s", address, port)
	conn, err := grpc.NewClient(serverAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
			grpc.CallContentSubtype(codecName),
		),
	)
	if err != nil {
		return nil, err
	}

	s := &GRPCSink{
		conn:     conn,
		nodeName: nodeName,
		logger:   logger,
		eventCh:  make(chan TraceEvent, 4096),
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

func (s *GRPCSink) Emit(ev TraceEvent) error {
	select {
	case s.eventCh <- ev:
		return nil
	case <-s.done:
		return fmt.Errorf("vktiming: grpc sink closed")
	}
}

func (s *GRPCSink) sendBatch(ctx context.Context, batch TraceBatch) (*CollectorAck, error) {
	s.logger.Info("batch size", zap.Int("size", len(batch.Events)))
	ack := new(CollectorAck)
	if err := s.conn.Invoke(ctx, "/vktiming.TraceCollector/SendBatch", &batch, ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// run drains eventCh into fixed-size batches and forwards each batch,
// mirroring the batching send loop this sink is modeled on. It shuts down
// on an Unavailable/Canceled status from the collector, exactly as that
// loop does.
func (s *GRPCSink) run() {
	defer s.wg.Done()

	const batchSize = 256
	batch := make([]TraceEvent, 0, batchSize)
	// flush reports whether the collector looks gone for good, in which
	// case run stops rather than keep batching into a sink no one drains.
	flush := func() bool {
		if len(batch) == 0 {
			return false
		}
		_, err := s.sendBatch(context.Background(), TraceBatch{NodeName: s.nodeName, Events: batch})
		batch = make([]TraceEvent, 0, batchSize)
		if err != nil {
			s.logger.Error("error sending batch", zap.Error(err))
			if st, ok := status.FromError(err); ok && (st.Code() == codes.Unavailable || st.Code() == codes.Canceled) {
				s.logger.Warn("collector unavailable, sink shutting down")
				return true
			}
		}
		return false
	}

	for {
		select {
		case <-s.done:
			flush()
			return
		case ev := <-s.eventCh:
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				if flush() {
					s.closeOnce.Do(func() { close(s.done) })
					return
				}
			}
		}
	}
}

func (s *GRPCSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return s.conn.Close()
}
