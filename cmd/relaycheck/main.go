// relaycheck sends one prompt through a running relay and prints the
// assembled assistant reply, decoding the SSE stream the same way the
// browser consumer does. Useful as a deploy smoke check.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"portfolio-relay/internal/domain"
	"portfolio-relay/internal/sse"
)

func main() {
	url := flag.String("url", "http://localhost:8080/chat", "relay chat endpoint")
	prompt := flag.String("prompt", "What does the portfolio owner do?", "user message to send")
	flag.Parse()

	if err := run(*url, *prompt); err != nil {
		fmt.Fprintln(os.Stderr, "relaycheck:", err)
		os.Exit(1)
	}
}

func run(url, prompt string) error {
	body, err := json.Marshal(domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: prompt}},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	res, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("relay returned %d: %s", res.StatusCode, raw)
	}

	dec := sse.NewDecoder(res.Body)
	for {
		chunk, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("decode stream: %w", err)
		}
		delta, err := chunk.Delta()
		if err != nil {
			return fmt.Errorf("parse chunk: %w", err)
		}
		fmt.Print(delta)
	}
	fmt.Println()
	return nil
}
