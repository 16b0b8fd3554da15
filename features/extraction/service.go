package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sarvottam-bhagat/docu-ai-processor/internal/adapter/abbyy"
	"github.com/sarvottam-bhagat/docu-ai-processor/internal/config"
	"github.com/sarvottam-bhagat/docu-ai-processor/internal/middleware"
)

// Engine is the external extraction engine boundary: one submission
// call yielding a document handle, one status query per poll.
type Engine interface {
	Submit(ctx context.Context, name, contentType string, data []byte, modelType string) (string, error)
	Fields(ctx context.Context, modelType, documentID string) (*abbyy.StatusResponse, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	engine      Engine
	pub         EventPublisher
	interval    time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewService(engine Engine, pub EventPublisher) *Service {
	return &Service{
		engine:      engine,
		pub:         pub,
		interval:    PollInterval,
		maxAttempts: MaxPollAttempts,
		sleep:       sleepCtx,
	}
}

// Process drives one document from submission to a terminal state.
// Status queries are strictly sequential on a constant cadence; there
// is no retry beyond the fixed attempt budget and no backoff.
func (s *Service) Process(ctx context.Context, doc Document, modelType string) (*Result, error) {
	if !ValidModelType(modelType) {
		return nil, fmt.Errorf("unknown model type %q", modelType)
	}

	docID, err := s.engine.Submit(ctx, doc.Name, doc.ContentType, doc.Data, modelType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if docID == "" {
		return nil, ErrSubmission
	}

	slog.InfoContext(ctx, "document submitted", "document_id", docID, "model_type", modelType, "file", doc.Name)

	job := Job{DocumentID: docID, Status: StatusSubmitted, SubmittedAt: time.Now()}
	for !job.Status.Terminal() {
		if err := s.sleep(ctx, s.interval); err != nil {
			return nil, err
		}

		resp, err := s.engine.Fields(ctx, modelType, docID)
		if err != nil {
			return nil, fmt.Errorf("status check failed: %w", err)
		}

		job = job.Next(Status(resp.Status), s.maxAttempts)
		slog.InfoContext(ctx, "polling attempt", "document_id", docID, "attempt", job.Attempts, "status", resp.Status)

		switch job.Status {
		case StatusProcessed:
			result := &Result{Status: StatusProcessed, Fields: resp.Fields, Raw: resp.Raw}
			s.publishResult(ctx, modelType, docID, result)
			return result, nil
		case StatusFailed:
			return nil, &ProcessingFailedError{Detail: resp.Raw}
		case StatusTimedOut:
			return nil, ErrTimedOut
		}
	}

	return nil, ErrTimedOut
}

// publishResult hands the terminal payload to downstream consumers.
// Delivery is best effort; the synchronous response is the contract.
func (s *Service) publishResult(ctx context.Context, modelType, docID string, result *Result) {
	if s.pub == nil {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"document_id":    docID,
		"model_type":     modelType,
		"status":         result.Status,
		"fields":         result.Fields,
		"correlation_id": middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicExtractionResult, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish extraction.result event", "error", err, "document_id", docID)
	} else {
		slog.InfoContext(ctx, "published extraction.result event", "document_id", docID, "model_type", modelType)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
