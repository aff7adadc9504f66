// pad_listen is a small diagnostic client for btpad's serve mode: it
// connects to the WebSocket stream and prints every frame. Useful for
// checking mappings from another machine without touching the pipeline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type controlData struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8385/ws", "btpad serve-mode websocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON frames instead of formatted output")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to the websocket (pings vs. any
	// future requests).
	var writeMu sync.Mutex

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	go func() {
		<-sigc
		log.Println("interrupted, closing")
		writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		_ = conn.Close()
		os.Exit(0)
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("read failed: %v", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if *raw {
			fmt.Printf("%s\n", message)
			continue
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			fmt.Printf("%s\n", message)
			continue
		}

		switch env.Type {
		case "state_init":
			var pretty map[string]any
			if err := json.Unmarshal(env.Data, &pretty); err == nil {
				b, _ := json.MarshalIndent(pretty, "", "  ")
				fmt.Printf("state_init:\n%s\n", b)
			} else {
				fmt.Printf("state_init: %s\n", env.Data)
			}

		case "control":
			var c controlData
			if err := json.Unmarshal(env.Data, &c); err != nil {
				fmt.Printf("control: %s\n", env.Data)
				continue
			}
			fmt.Printf("%-20s %+.3f\n", c.Name, c.Value)

		default:
			fmt.Printf("%s: %s\n", env.Type, env.Data)
		}
	}
}
