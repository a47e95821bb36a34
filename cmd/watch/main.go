// watch is a terminal viewer for camrelayd.
//
// It connects to the daemon, starts a stream for one camera, and prints
// frame statistics until interrupted.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edgecam/camrelay/pkg/protocol"
)

func main() {
	addr := flag.String("addr", "localhost:5000", "camrelayd address")
	camID := flag.Int("cam", 1, "camera id to stream")
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	fmt.Printf("Connecting to %s...\n", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	start, err := protocol.NewStartStreamMessage(*camID)
	if err != nil {
		fmt.Printf("Failed to build start request: %v\n", err)
		os.Exit(1)
	}
	if err := conn.WriteJSON(start); err != nil {
		fmt.Printf("Failed to send start request: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Streaming camera %d (Ctrl+C to stop)...\n", *camID)

	frameCount := 0
	byteCount := 0
	startTime := time.Now()

	go func() {
		<-sigChan
		if stop, err := protocol.NewStopStreamMessage(); err == nil {
			conn.WriteJSON(stop)
		}
		// Give the daemon a moment to acknowledge with stream_stopped.
		time.Sleep(500 * time.Millisecond)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			fmt.Printf("\nBad message: %v\n", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeFrame:
			var frame protocol.FrameData
			if err := msg.ParseData(&frame); err != nil {
				continue
			}
			jpeg, err := base64.StdEncoding.DecodeString(frame.Image)
			if err != nil {
				continue
			}
			frameCount++
			byteCount += len(jpeg)
			elapsed := time.Since(startTime).Seconds()
			fmt.Printf("\rFrame %d | %.1f fps | %.1f KB/s   ",
				frameCount, float64(frameCount)/elapsed,
				float64(byteCount)/elapsed/1024)

		case protocol.TypeStreamError:
			var e protocol.StreamErrorData
			msg.ParseData(&e)
			fmt.Printf("\nStream error: %s\n", e.Message)

		case protocol.TypeStreamStopped:
			var stopped protocol.StreamStoppedData
			msg.ParseData(&stopped)
			fmt.Printf("\nStream stopped (camera %d)\n", stopped.CamID)
		}
	}

	elapsed := time.Since(startTime).Seconds()
	if elapsed > 0 {
		fmt.Printf("\n%d frames in %.1fs (%.1f fps)\n",
			frameCount, elapsed, float64(frameCount)/elapsed)
	}
}
