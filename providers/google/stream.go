package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stepkit/step"
	"github.com/stepkit/step/providers/base"
)

const readBufSize = 32 << 10

// Stream starts one streamGenerateContent call. Failures after this point,
// including a missing API key, are reported through the stream's terminal
// error event and Result.
func (p *provider) Stream(ctx context.Context, req step.Request) (step.AssistantStream, error) {
	debug, err := base.NewDebugLogger(p.cfg.DebugPath, ProviderName, p.model)
	if err != nil {
		return nil, errors.Wrap(err, "open debug log")
	}

	ctx, cancel := context.WithCancel(ctx)
	s := step.NewEventStream(cancel)
	log := p.cfg.NewLogger(ProviderName, p.model).With().
		Str("request_id", uuid.NewString()).
		Logger()

	go p.run(ctx, req, s, log, debug)
	return s, nil
}

func (p *provider) run(ctx context.Context, req step.Request, s *step.EventStream, log zerolog.Logger, debug *base.DebugLogger) {
	out := &step.AssistantMessage{
		Provider:  ProviderName,
		Model:     p.model,
		Timestamp: time.Now().UnixMilli(),
	}
	asm := newAssembler(out, p.cfg.Cost, func(ev step.AssistantEvent) { s.Push(ev) }, log)

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("google: stream panic: %v", r)
		}
		switch {
		case err == nil:
			asm.finish()
		case ctx.Err() != nil:
			err = ctx.Err()
			asm.fail(step.StopAborted, "request aborted: "+err.Error())
		default:
			asm.fail(step.StopError, err.Error())
		}

		ev := asm.terminal()
		logEvent := log.Debug()
		switch {
		case out.StopReason == step.StopError && err != nil:
			logEvent = log.Error().Err(err)
		case ev.Type == step.EventError:
			logEvent = log.Warn().Str("error", out.ErrorMessage)
		}
		logEvent.Str("stop_reason", string(out.StopReason)).Msg("stream finished")

		s.Push(ev)
		_ = debug.Close()
		s.End(out.Snapshot(), err)
	}()

	if p.cfg.APIKey == "" {
		err = errMissingAPIKey
		return
	}
	asm.start()
	err = p.stream(ctx, req, asm, log, debug)
}

func (p *provider) stream(ctx context.Context, req step.Request, asm *assembler, log zerolog.Logger, debug *base.DebugLogger) error {
	body := p.buildRequest(req)
	debug.Record("request", body)

	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	raw, err = base.MergeExtraBody(raw, p.cfg.ExtraBody)
	if err != nil {
		return errors.Wrap(err, "merge extra body")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(p.redact(err), "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range p.cfg.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	log.Debug().Int("history", len(req.History)).Int("tools", len(req.Tools)).Msg("sending request")
	resp, err := p.cfg.Client().Do(httpReq)
	if err != nil {
		return errors.Wrap(p.redact(err), "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}

	parser := newSSEParser(log, debug)
	buf := make([]byte, readBufSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			for _, chunk := range parser.Feed(buf[:n]) {
				asm.handle(chunk)
			}
		}
		if rerr == io.EOF {
			for _, chunk := range parser.Flush() {
				asm.handle(chunk)
			}
			return nil
		}
		if rerr != nil {
			return errors.Wrap(rerr, "read stream")
		}
	}
}

func (p *provider) endpoint() string {
	return p.redactedEndpoint() + "&key=" + url.QueryEscape(p.cfg.APIKey)
}

// redactedEndpoint is endpoint without the key, for errors and logs.
func (p *provider) redactedEndpoint() string {
	return fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.model)
}

// redact replaces the request URL in a *url.Error so the key never reaches
// error events, results or logs.
func (p *provider) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = p.redactedEndpoint()
	}
	return err
}

func (p *provider) buildRequest(req step.Request) GenerateContentRequest {
	body := GenerateContentRequest{
		Contents: convertMessages(req.History, convertOptions{
			provider:       ProviderName,
			model:          p.model,
			toolResultRole: p.cfg.ToolResultRole,
		}),
		Tools: convertTools(req.Tools),
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &Content{Parts: []WirePart{{Data: Text(req.SystemPrompt)}}}
	}

	gen := GenerationConfig{
		Temperature:     p.cfg.Temperature,
		MaxOutputTokens: p.cfg.MaxOutputTokens,
	}
	if p.cfg.ThinkingEnabled {
		gen.ThinkingConfig = &ThinkingConfig{IncludeThoughts: true, ThinkingBudget: p.cfg.ThinkingBudget}
	}
	if gen != (GenerationConfig{}) {
		body.GenerationConfig = &gen
	}

	if len(body.Tools) > 0 && p.cfg.ToolChoice != "" {
		body.ToolConfig = &ToolConfig{FunctionCallingConfig: FunctionCallingConfig{Mode: p.cfg.ToolChoice}}
	}
	return body
}
