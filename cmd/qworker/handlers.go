package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qworkerhq/qworker/pkg/handler"
)

// demoHandlers returns the small set of demonstration handlers that
// `worker start` registers, mirroring the end-to-end scenarios of
// spec.md's testable-properties section: echo (S1), sleep (S2), and sum.
func demoHandlers() *handler.Registry {
	reg := handler.NewRegistry()
	reg.Register("echo", echoHandler)
	reg.Register("sleep", sleepHandler)
	reg.Register("sum", sumHandler)
	return reg
}

func echoHandler(ctx context.Context, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("echo: requires one argument")
	}
	var n float64
	if err := json.Unmarshal(args[0], &n); err != nil {
		return nil, fmt.Errorf("echo: decode argument: %w", err)
	}
	return n + 1, nil
}

func sleepHandler(ctx context.Context, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
	seconds := 1.0
	if len(args) > 0 {
		_ = json.Unmarshal(args[0], &seconds)
	}
	result := "ok"
	if len(args) > 1 {
		_ = json.Unmarshal(args[1], &result)
	}

	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func sumHandler(ctx context.Context, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error) {
	total := 0.0
	for i, raw := range args {
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("sum: decode argument %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}
