// camrelayd relays live camera video to websocket viewers.
//
// Each viewer session gets its own capture pipeline, started and stopped
// over the session's websocket with start_stream/stop_stream messages.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgecam/camrelay/internal/config"
	"github.com/edgecam/camrelay/internal/log"
	"github.com/edgecam/camrelay/pkg/camera"
	"github.com/edgecam/camrelay/pkg/server"
	"github.com/edgecam/camrelay/pkg/stream"
)

func main() {
	port := flag.String("port", config.Port(), "listen port")
	camerasPath := flag.String("cameras", config.CamerasPath(), "camera registry file")
	paramsPath := flag.String("params", config.ParamsPath(), "stream parameter file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)

	cams := camera.NewRegistry(*camerasPath)
	if err := cams.Load(); err != nil {
		log.Error("failed to load camera registry", "path", *camerasPath, "err", err)
		os.Exit(1)
	}
	log.Info("camera registry loaded", "path", *camerasPath, "cameras", len(cams.List()))

	// Parameters are re-read on every worker start so edits apply to the
	// next stream without a restart.
	params := func() config.Stream { return config.LoadStream(*paramsPath) }

	streams := stream.NewRegistry(cams, params)
	srv := server.New(*port, cams, streams, params)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			log.Warn("shutdown error", "err", err)
		}
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}
}
