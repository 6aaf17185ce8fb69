package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"transcribot/internal/app/api"
)

var _ api.Transcriber = (*MockTranscriber)(nil)

// MockTranscriber is a configurable implementation of the api.Transcriber interface.
// Behavior is keyed by call number because chunk files get random temporary names.
type MockTranscriber struct {
	mock.Mock
	mu sync.RWMutex

	// Configuration options
	DefaultLatency  time.Duration
	DefaultError    error
	DefaultResponse string
	// UseExpectations routes every call through the embedded testify mock.
	UseExpectations bool

	ResponseMap map[int]string
	ErrorMap    map[int]error
	LatencyMap  map[int]time.Duration

	// State tracking
	CallCount   int
	CallHistory []TranscriptionCall
}

// TranscriptionCall represents a single transcription call for tracking
type TranscriptionCall struct {
	Number        int
	InputFilePath string
	Language      string
	// FileExisted reports whether the chunk file was on disk when the call started.
	FileExisted bool
	Timestamp   time.Time
	Duration    time.Duration
	Response    string
	Error       error
}

// NewMockTranscriber creates a new MockTranscriber returning one generic cue.
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{
		DefaultResponse: SRT("This is a mock transcription result."),
		ResponseMap:     make(map[int]string),
		ErrorMap:        make(map[int]error),
		LatencyMap:      make(map[int]time.Duration),
	}
}

// Transcript implements the api.Transcriber interface
func (m *MockTranscriber) Transcript(ctx context.Context, inputFilePath string, language string) (string, error) {
	startTime := time.Now()
	_, statErr := os.Stat(inputFilePath)

	m.mu.Lock()
	number := m.CallCount
	m.CallCount++
	latency := m.DefaultLatency
	if custom, ok := m.LatencyMap[number]; ok {
		latency = custom
	}
	response, err := m.DefaultResponse, m.DefaultError
	if custom, ok := m.ResponseMap[number]; ok {
		response = custom
	}
	if custom, ok := m.ErrorMap[number]; ok {
		err = custom
	}
	useExpectations := m.UseExpectations
	m.mu.Unlock()

	if latency > 0 {
		// Remote APIs ignore cancellation of abandoned calls, so the latency is not interruptible either.
		time.Sleep(latency)
	}

	if useExpectations {
		args := m.Called(ctx, inputFilePath, language)
		response, err = args.String(0), args.Error(1)
	}
	if err != nil {
		response = ""
	}

	m.mu.Lock()
	m.CallHistory = append(m.CallHistory, TranscriptionCall{
		Number:        number,
		InputFilePath: inputFilePath,
		Language:      language,
		FileExisted:   statErr == nil,
		Timestamp:     startTime,
		Duration:      time.Since(startTime),
		Response:      response,
		Error:         err,
	})
	m.mu.Unlock()

	return response, err
}

// Configuration Methods

// WithDefaultLatency sets the default processing latency
func (m *MockTranscriber) WithDefaultLatency(latency time.Duration) *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DefaultLatency = latency
	return m
}

// WithDefaultError sets the default error to return
func (m *MockTranscriber) WithDefaultError(err error) *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DefaultError = err
	return m
}

// WithDefaultResponse sets the default SRT payload
func (m *MockTranscriber) WithDefaultResponse(response string) *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DefaultResponse = response
	return m
}

// SetResponseForCall sets the SRT payload returned by call number n (0-based)
func (m *MockTranscriber) SetResponseForCall(n int, response string) *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResponseMap[n] = response
	return m
}

// SetErrorForCall makes call number n fail
func (m *MockTranscriber) SetErrorForCall(n int, err error) *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorMap[n] = err
	return m
}

// SetLatencyForCall delays call number n
func (m *MockTranscriber) SetLatencyForCall(n int, latency time.Duration) *MockTranscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LatencyMap[n] = latency
	return m
}

// SimulateNetworkError makes call number n fail the way an unreachable API does
func (m *MockTranscriber) SimulateNetworkError(n int) *MockTranscriber {
	return m.SetErrorForCall(n, fmt.Errorf("network error: connection reset by peer"))
}

// State Inspection Methods

// GetCallCount returns the total number of calls started
func (m *MockTranscriber) GetCallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCount
}

// GetCallHistory returns the calls that have returned so far
func (m *MockTranscriber) GetCallHistory() []TranscriptionCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := make([]TranscriptionCall, len(m.CallHistory))
	copy(history, m.CallHistory)
	return history
}

// Reset clears call tracking
func (m *MockTranscriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount = 0
	m.CallHistory = nil
}
