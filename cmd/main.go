// Command vktiming-smoketest exercises the timing layer's in-process
// pipeline (submission wrapper, harvester worker, event sink) without a
// live Vulkan loader or driver attached. It drives a queue with a
// zero-valued dispatch table, so every simulated driver call underneath
// submit.Submit is a safe no-op, and only the layer's own control flow
// (ring allocation, pending deque, harvester drain, sink emission) runs
// for real. Useful for a quick manual check that a build of the layer
// behaves before wiring it up under an actual loader.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quartzgfx/vktiming/internal/clock"
	"github.com/quartzgfx/vktiming/internal/collector/aggregator"
	"github.com/quartzgfx/vktiming/internal/config"
	"github.com/quartzgfx/vktiming/internal/harvester"
	"github.com/quartzgfx/vktiming/internal/queue"
	"github.com/quartzgfx/vktiming/internal/sink"
	"github.com/quartzgfx/vktiming/internal/submit"
	"github.com/quartzgfx/vktiming/internal/vkabi"
	"github.com/quartzgfx/vktiming/pkg/logutil"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	logutil.InitLogger()
	logger := logutil.GetLogger()
	defer logger.Sync()

	go func() {
		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigch
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	cfg := config.LoadConfig()

	var evSink sink.EventSink = sink.NewLogSink(logger)
	evSink = aggregator.NewAggregatingSink(evSink, 2*time.Second, logger)
	defer evSink.Close()

	dev := &vkabi.DeviceRecord{Handle: vkabi.VkDevice(1)}
	q := queue.New(vkabi.VkQueue(1), dev.Handle, 0, 0, cfg.MaxQueries, logger)
	q.SupportsTimestamps = true
	q.TsPeriod = 1.0
	now := clock.BootNS()
	q.BeginSync(now)
	q.EndSync()

	w := harvester.New(dev, q, evSink, uint32(os.Getpid()), cfg.SyncPollBudget, logger)
	w.Start()

	logger.Info("driving synthetic submissions against a no-op dispatch table")
	for i := 0; i < 8; i++ {
		infos := []submit.SubmitInfo{{CommandBuffers: []vkabi.VkCommandBuffer{vkabi.VkCommandBuffer(1000 + i)}}}
		if res := submit.Submit(dev, q, infos, 0, cfg.SyncInterval, logger); res != vkabi.VkSuccess {
			logger.Warn("simulated submit failed", zap.Int32("result", int32(res)))
		}
		select {
		case <-ctx.Done():
			break
		case <-time.After(50 * time.Millisecond):
		}
	}

	logger.Info("draining harvester before shutdown")
	time.Sleep(200 * time.Millisecond)
	if err := w.Close(); err != nil {
		logger.Error("error tearing down harvester worker", zap.Error(err))
	}
	logger.Info("smoke test finished")
}
