package app

import (
	"context"
	"encoding/json"
	"time"

	"quiz-pipeline-service/internal/domain"
	"quiz-pipeline-service/internal/logger"
)

const agentOrchestrator = "Orchestrator"

// tracer writes one record per pipeline step. Writes are best effort and
// never fail the step they describe.
type tracer struct {
	repo      Repository
	log       *logger.Logger
	now       func() time.Time
	requestID string
	last      int
}

func (t *tracer) write(ctx context.Context, step int, agent string, status domain.TraceStatus, input, output any, stepErr error) {
	if step > t.last {
		t.last = step
	}
	rec := domain.TraceRecord{
		RequestID: t.requestID,
		Step:      step,
		Agent:     agent,
		Status:    status,
		Input:     snapshot(input),
		Output:    snapshot(output),
		Timestamp: t.now().UTC(),
	}
	if stepErr != nil {
		rec.Error = stepErr.Error()
	}
	if err := t.repo.CreateTraceRecord(ctx, rec); err != nil {
		t.log.Warn("trace write failed", "request_id", t.requestID, "step", step, "agent", agent, "error", err)
	}
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

// traced runs fn as pipeline step n, marking it in_progress first and then
// completed or failed.
func traced[T any](ctx context.Context, t *tracer, n int, agent string, input any, fn func() (T, error)) (T, error) {
	t.write(ctx, n, agent, domain.StatusInProgress, input, nil, nil)
	out, err := fn()
	if err != nil {
		t.write(ctx, n, agent, domain.StatusFailed, input, nil, err)
		return out, err
	}
	t.write(ctx, n, agent, domain.StatusCompleted, input, out, nil)
	return out, nil
}
