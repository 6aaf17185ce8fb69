package services

import (
	"context"

	"transcribot/internal/api/errors"
	"transcribot/internal/api/v1/dto"
	"transcribot/internal/app/message"
	"transcribot/internal/app/model"
)

// Orchestrator is the transcription core as seen by the API.
type Orchestrator interface {
	Transcribe(ctx context.Context, job model.TranscriptionJob) (*model.TranscriptionOutcome, error)
}

// TranscriptionServiceImpl implements TranscriptionService
type TranscriptionServiceImpl struct {
	orchestrator Orchestrator
	paymentURL   string
	pageLimit    int
}

// NewTranscriptionService creates a new transcription service
func NewTranscriptionService(orchestrator Orchestrator, paymentURL string) TranscriptionService {
	return &TranscriptionServiceImpl{
		orchestrator: orchestrator,
		paymentURL:   paymentURL,
		pageLimit:    message.DefaultPageLimit,
	}
}

// Transcribe runs the job and shapes the reply
func (s *TranscriptionServiceImpl) Transcribe(ctx context.Context, userID, stagedPath, format string) (*dto.TranscriptionResponse, error) {
	outcome, err := s.orchestrator.Transcribe(ctx, model.TranscriptionJob{
		SourceFilePath: stagedPath,
		MediaFormat:    format,
		UserID:         userID,
	})
	if err != nil {
		return nil, errors.FromDomain(err, s.paymentURL)
	}

	messages := message.Paginate(message.Compose(outcome), s.pageLimit)
	if messages == nil {
		messages = []string{}
	}
	return &dto.TranscriptionResponse{
		JobID:              outcome.JobID,
		Text:               outcome.ResultText,
		TruncationNotice:   outcome.TruncationNotice,
		Messages:           messages,
		TranscribedSeconds: outcome.TranscribedSeconds,
		RemainingSeconds:   outcome.RemainingSeconds,
	}, nil
}
