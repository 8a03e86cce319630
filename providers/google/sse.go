package google

import (
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/stepkit/step/providers/base"
)

var (
	sseDataPrefix = []byte("data:")
	sseDone       = []byte("[DONE]")
)

const previewLen = 200

// sseParser turns the raw bytes of an SSE response into decoded chunks.
//
// Reads may split lines (and UTF-8 sequences) anywhere; only complete lines
// are parsed and the trailing partial line waits for the next Feed.
type sseParser struct {
	buf   []byte
	log   zerolog.Logger
	debug *base.DebugLogger
}

func newSSEParser(log zerolog.Logger, debug *base.DebugLogger) *sseParser {
	return &sseParser{log: log, debug: debug}
}

// Feed consumes one read and returns the chunks it completed, in order.
func (p *sseParser) Feed(b []byte) []GenerateContentResponse {
	p.buf = append(p.buf, b...)

	var out []GenerateContentResponse
	start := 0
	for {
		i := bytes.IndexByte(p.buf[start:], '\n')
		if i < 0 {
			break
		}
		line := p.buf[start : start+i]
		start += i + 1
		if resp, ok := p.parseLine(line); ok {
			out = append(out, resp)
		}
	}

	n := copy(p.buf, p.buf[start:])
	p.buf = p.buf[:n]
	return out
}

// Flush parses whatever is left once the input has ended. A final line
// without a trailing newline is complete at that point.
func (p *sseParser) Flush() []GenerateContentResponse {
	if len(p.buf) == 0 {
		return nil
	}
	line := p.buf
	p.buf = nil
	if resp, ok := p.parseLine(line); ok {
		return []GenerateContentResponse{resp}
	}
	return nil
}

func (p *sseParser) parseLine(line []byte) (GenerateContentResponse, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(bytes.TrimSpace(line)) == 0 || line[0] == ':' {
		return GenerateContentResponse{}, false
	}
	if !bytes.HasPrefix(line, sseDataPrefix) {
		return GenerateContentResponse{}, false
	}
	payload := bytes.TrimSpace(line[len(sseDataPrefix):])
	if len(payload) == 0 || bytes.Equal(payload, sseDone) {
		return GenerateContentResponse{}, false
	}

	var resp GenerateContentResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		p.log.Warn().Err(err).Str("payload", preview(payload)).Msg("skipping undecodable stream chunk")
		return GenerateContentResponse{}, false
	}
	p.debug.RecordJSON("chunk", payload)
	return resp, true
}

func preview(b []byte) string {
	if len(b) <= previewLen {
		return string(b)
	}
	return string(b[:previewLen]) + "..."
}
