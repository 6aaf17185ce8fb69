package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"transcribot/internal/api/v1/dto"
)

// MockServices contains all mock services for testing
type MockServices struct {
	TranscriptionService *MockTranscriptionService
	QuotaService         *MockQuotaService
}

// NewMockServices creates a new instance of mock services
func NewMockServices(t *testing.T) *MockServices {
	return &MockServices{
		TranscriptionService: NewMockTranscriptionService(t),
		QuotaService:         NewMockQuotaService(t),
	}
}

// MockTranscriptionService is a mock implementation of TranscriptionService
type MockTranscriptionService struct {
	mock.Mock
}

func NewMockTranscriptionService(t *testing.T) *MockTranscriptionService {
	m := &MockTranscriptionService{}
	m.Test(t)
	return m
}

func (m *MockTranscriptionService) Transcribe(ctx context.Context, userID, stagedPath, format string) (*dto.TranscriptionResponse, error) {
	args := m.Called(ctx, userID, stagedPath, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TranscriptionResponse), args.Error(1)
}

// MockQuotaService is a mock implementation of QuotaService
type MockQuotaService struct {
	mock.Mock
}

func NewMockQuotaService(t *testing.T) *MockQuotaService {
	m := &MockQuotaService{}
	m.Test(t)
	return m
}

func (m *MockQuotaService) GetQuota(ctx context.Context, userID string) (*dto.QuotaResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.QuotaResponse), args.Error(1)
}

func (m *MockQuotaService) Credit(ctx context.Context, userID string, req *dto.CreditRequest) (*dto.QuotaResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.QuotaResponse), args.Error(1)
}
