//go:build ignore

// Manual smoke tool: post a fake operator update to a locally running
// daemon's webhook endpoint.
//
//	go run debug_webhook.go -chat 777 -text "/status"
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
)

func main() {
	url := flag.String("url", "http://localhost:8080/webhook", "webhook endpoint")
	chat := flag.Int64("chat", 777, "sender chat id")
	text := flag.String("text", "/ping", "message text")
	flag.Parse()

	payload := fmt.Sprintf(`{"message":{"chat":{"id":%d},"text":%q}}`, *chat, *text)
	resp, err := http.Post(*url, "application/json", bytes.NewReader([]byte(payload)))
	if err != nil {
		log.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status: %s\nbody: %s\n", resp.Status, body)
}
