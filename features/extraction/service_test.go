package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sarvottam-bhagat/docu-ai-processor/internal/adapter/abbyy"
	"github.com/sarvottam-bhagat/docu-ai-processor/internal/config"
)

// --- Mocks ---

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Submit(ctx context.Context, name, contentType string, data []byte, modelType string) (string, error) {
	args := m.Called(ctx, name, contentType, data, modelType)
	return args.String(0), args.Error(1)
}

func (m *MockEngine) Fields(ctx context.Context, modelType, documentID string) (*abbyy.StatusResponse, error) {
	args := m.Called(ctx, modelType, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*abbyy.StatusResponse), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func newTestService(engine Engine, pub EventPublisher) (*Service, *[]time.Duration) {
	svc := NewService(engine, pub)
	sleeps := &[]time.Duration{}
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		*sleeps = append(*sleeps, d)
		return nil
	}
	return svc, sleeps
}

func testDoc() Document {
	return Document{Name: "scan.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 fake")}
}

func processingResp() *abbyy.StatusResponse {
	return &abbyy.StatusResponse{Status: "Processing", Raw: json.RawMessage(`{"invoice":{"meta":{"status":"Processing"}}}`)}
}

func processedResp() *abbyy.StatusResponse {
	return &abbyy.StatusResponse{
		Status: "Processed",
		Fields: map[string]abbyy.Field{
			"Total": {Value: json.RawMessage(`"42.00"`)},
		},
		Raw: json.RawMessage(`{"invoice":{"meta":{"status":"Processed"},"fields":{"Total":{"value":"42.00"}}}}`),
	}
}

// --- Tests ---

func TestProcess_TerminatesOnKthQuery(t *testing.T) {
	const k = 5

	engine := new(MockEngine)
	engine.On("Submit", mock.Anything, "scan.pdf", "application/pdf", mock.Anything, "invoice").
		Return("doc-1", nil)
	engine.On("Fields", mock.Anything, "invoice", "doc-1").Return(processingResp(), nil).Times(k - 1)
	engine.On("Fields", mock.Anything, "invoice", "doc-1").Return(processedResp(), nil).Once()

	svc, sleeps := newTestService(engine, nil)

	result, err := svc.Process(context.Background(), testDoc(), "invoice")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, result.Status)

	// Field map passes through unchanged.
	assert.Equal(t, json.RawMessage(`"42.00"`), result.Fields["Total"].Value)
	assert.JSONEq(t, string(processedResp().Raw), string(result.Raw))

	// Exactly K queries, each separated by the fixed interval.
	engine.AssertNumberOfCalls(t, "Fields", k)
	assert.Len(t, *sleeps, k)
	for _, d := range *sleeps {
		assert.Equal(t, PollInterval, d)
	}
}

func TestProcess_TimedOutAfterBudget(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "invoice").
		Return("doc-1", nil)
	engine.On("Fields", mock.Anything, "invoice", "doc-1").Return(processingResp(), nil)

	svc, _ := newTestService(engine, nil)

	_, err := svc.Process(context.Background(), testDoc(), "invoice")
	assert.ErrorIs(t, err, ErrTimedOut)

	// Never a 21st query.
	engine.AssertNumberOfCalls(t, "Fields", MaxPollAttempts)
}

func TestProcess_FailedStopsEarly(t *testing.T) {
	detail := json.RawMessage(`{"invoice":{"meta":{"status":"Failed"}}}`)

	engine := new(MockEngine)
	engine.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "invoice").
		Return("doc-1", nil)
	engine.On("Fields", mock.Anything, "invoice", "doc-1").Return(processingResp(), nil).Twice()
	engine.On("Fields", mock.Anything, "invoice", "doc-1").
		Return(&abbyy.StatusResponse{Status: "Failed", Raw: detail}, nil).Once()

	svc, _ := newTestService(engine, nil)

	_, err := svc.Process(context.Background(), testDoc(), "invoice")

	var failed *ProcessingFailedError
	require.ErrorAs(t, err, &failed)
	assert.JSONEq(t, string(detail), string(failed.Detail))
	assert.NotErrorIs(t, err, ErrTimedOut)

	engine.AssertNumberOfCalls(t, "Fields", 3)
}

func TestProcess_SubmissionRejected(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "invoice").
		Return("", errors.New("401 unauthorized"))

	svc, _ := newTestService(engine, nil)

	_, err := svc.Process(context.Background(), testDoc(), "invoice")
	assert.ErrorIs(t, err, ErrSubmission)

	// Fatal, no retry, no polling.
	engine.AssertNumberOfCalls(t, "Submit", 1)
	engine.AssertNotCalled(t, "Fields", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_MissingDocumentHandle(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "invoice").
		Return("", nil)

	svc, _ := newTestService(engine, nil)

	_, err := svc.Process(context.Background(), testDoc(), "invoice")
	assert.ErrorIs(t, err, ErrSubmission)
}

func TestProcess_UnknownModelType(t *testing.T) {
	engine := new(MockEngine)
	svc, _ := newTestService(engine, nil)

	_, err := svc.Process(context.Background(), testDoc(), "crystal_ball")
	assert.Error(t, err)
	engine.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_PublishesResultEvent(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "invoice").
		Return("doc-1", nil)
	engine.On("Fields", mock.Anything, "invoice", "doc-1").Return(processedResp(), nil).Once()

	pub := new(MockPublisher)
	pub.On("Publish", config.TopicExtractionResult, mock.Anything).Return(nil)

	svc, _ := newTestService(engine, pub)

	_, err := svc.Process(context.Background(), testDoc(), "invoice")
	require.NoError(t, err)

	pub.AssertCalled(t, "Publish", config.TopicExtractionResult, mock.MatchedBy(func(body []byte) bool {
		var event map[string]interface{}
		if err := json.Unmarshal(body, &event); err != nil {
			return false
		}
		return event["document_id"] == "doc-1" && event["model_type"] == "invoice"
	}))
}

func TestProcess_PublishFailureDoesNotFailRequest(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "invoice").
		Return("doc-1", nil)
	engine.On("Fields", mock.Anything, "invoice", "doc-1").Return(processedResp(), nil).Once()

	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nsqd down"))

	svc, _ := newTestService(engine, pub)

	result, err := svc.Process(context.Background(), testDoc(), "invoice")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, result.Status)
}

func TestProcess_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	engine := new(MockEngine)
	engine.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "invoice").
		Return("doc-1", nil)
	engine.On("Fields", mock.Anything, "invoice", "doc-1").
		Return(processingResp(), nil).
		Run(func(args mock.Arguments) { cancel() }).
		Once()

	svc, _ := newTestService(engine, nil)

	_, err := svc.Process(ctx, testDoc(), "invoice")
	assert.ErrorIs(t, err, context.Canceled)

	// No status query after teardown.
	engine.AssertNumberOfCalls(t, "Fields", 1)
}

func TestProcess_StatusQueryError(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "invoice").
		Return("doc-1", nil)
	engine.On("Fields", mock.Anything, "invoice", "doc-1").Return(nil, errors.New("503"))

	svc, _ := newTestService(engine, nil)

	_, err := svc.Process(context.Background(), testDoc(), "invoice")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimedOut)
	engine.AssertNumberOfCalls(t, "Fields", 1)
}
