package inference

import (
	"context"
	"log/slog"
	"time"
)

type observed struct {
	next   Invoker
	logger *slog.Logger
}

// Observe wraps inv so every call logs a start and a finish line with its
// duration and, on failure, the failure reason.
func Observe(inv Invoker, logger *slog.Logger) Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &observed{next: inv, logger: logger}
}

func (o *observed) Invoke(ctx context.Context, req Request) (string, error) {
	started := time.Now()
	o.logger.Debug("inference start",
		"media_type", req.MediaType,
		"payload_bytes", len(req.Payload),
		"instruction_chars", len(req.Instruction),
	)

	text, err := o.next.Invoke(ctx, req)

	duration := time.Since(started)
	if err != nil {
		o.logger.Warn("inference failed",
			"reason", ReasonOf(err),
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		return "", err
	}
	o.logger.Info("inference complete",
		"result_chars", len(text),
		"duration_ms", duration.Milliseconds(),
	)
	return text, nil
}
