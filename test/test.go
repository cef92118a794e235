package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// Replays transactionNotification frames to anyone who subscribes, so the
// watcher can be run locally with helius.ws_url: ws://localhost:8900
//
// Usage: go run test/test.go -frames frames.jsonl

func main() {
	framesFlag := flag.String("frames", "", "File with one notification frame per line")
	listenFlag := flag.String("listen", "localhost:8900", "Listen address")
	everyFlag := flag.Duration("every", time.Second, "Delay between frames")
	flag.Parse()

	frames, err := readFrames(*framesFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	upgrader := websocket.Upgrader{}
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			fmt.Println(err)
			return
		}
		defer conn.Close()

		// Wait for the subscription request and acknowledge it
		_, req, err := conn.ReadMessage()
		if err != nil {
			return
		}
		fmt.Printf("subscribe: %s\n", req)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","result":1,"id":420}`))

		ticker := time.NewTicker(*everyFlag)
		defer ticker.Stop()
		for _, f := range frames {
			<-ticker.C
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				fmt.Println(err)
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	})

	fmt.Printf("Replaying %d frames on ws://%s\n", len(frames), *listenFlag)
	if err := http.ListenAndServe(*listenFlag, nil); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func readFrames(path string) ([][]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("-frames is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var frames [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if line := sc.Bytes(); len(line) > 0 {
			frames = append(frames, append([]byte(nil), line...))
		}
	}
	return frames, sc.Err()
}
