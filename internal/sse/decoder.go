// Package sse decodes server-sent-event streams incrementally. It exists for
// consumers of the relay's pass-through output: the relay itself forwards
// bytes verbatim and never decodes them.
package sse

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Chunk is one complete decoded `data:` payload from an SSE stream.
type Chunk struct {
	Data []byte
}

// completionChunk is the minimal OpenAI-style streaming chunk shape.
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Delta extracts choices[0].delta.content from an OpenAI-style chunk. Chunks
// without choices (e.g. keep-alives) yield an empty string, not an error.
func (c Chunk) Delta() (string, error) {
	var payload completionChunk
	if err := json.Unmarshal(c.Data, &payload); err != nil {
		return "", fmt.Errorf("sse: decode chunk: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", nil
	}
	return payload.Choices[0].Delta.Content, nil
}

// Decoder yields complete data payloads from a raw SSE byte stream. Lines
// split across network chunks are reassembled by the buffered reader, so a
// payload is only ever surfaced whole. The decoder stops at the `[DONE]`
// sentinel and tolerates a truncated stream: a final unterminated data line
// is still surfaced before io.EOF.
type Decoder struct {
	r    *bufio.Reader
	done bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next complete chunk. It returns io.EOF once the stream is
// exhausted, either by the sentinel or by the underlying reader ending.
func (d *Decoder) Next() (Chunk, error) {
	if d.done {
		return Chunk{}, io.EOF
	}
	for {
		line, err := d.r.ReadBytes('\n')
		if len(line) > 0 {
			if payload, ok := dataPayload(line); ok {
				if string(payload) == doneSentinel {
					d.done = true
					return Chunk{}, io.EOF
				}
				return Chunk{Data: payload}, nil
			}
		}
		if err != nil {
			d.done = true
			if err == io.EOF {
				return Chunk{}, io.EOF
			}
			return Chunk{}, fmt.Errorf("sse: read stream: %w", err)
		}
	}
}

// dataPayload strips the `data: ` prefix and line terminators. Comment lines,
// field lines other than data and blank event separators are skipped.
func dataPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return nil, false
	}
	return line[len(dataPrefix):], true
}
