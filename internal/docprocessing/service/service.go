package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chefos/chefos-backend/internal/docprocessing/domain"
	"github.com/chefos/chefos-backend/internal/docprocessing/processor"
	"github.com/chefos/chefos-backend/internal/docprocessing/storage"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/logger"
)

// TextRecognizer turns a document image into raw text
type TextRecognizer interface {
	Recognize(ctx context.Context, imageData []byte, docType domain.DocumentType) (string, error)
}

// Service orchestrates document processing: recognize text → dispatch → cleanup
type Service struct {
	registry *processor.Registry
	ocr      TextRecognizer
	storage  *storage.TempStorage
	log      *logger.Logger
}

// NewService creates a new document processing service.
// ocr may be nil, in which case only text parsing is available.
func NewService(registry *processor.Registry, ocr TextRecognizer, store *storage.TempStorage, log *logger.Logger) *Service {
	return &Service{
		registry: registry,
		ocr:      ocr,
		storage:  store,
		log:      log,
	}
}

// Parse structures already recognized text synchronously
func (s *Service) Parse(ctx context.Context, text string, docType domain.DocumentType) (*domain.ExtractionResult, error) {
	processors := s.registry.FindProcessors(docType)
	if len(processors) == 0 {
		return nil, errors.BadRequest(fmt.Sprintf("tipo de documento no soportado: %s", docType))
	}
	return s.runProcessors(ctx, "", text, docType, processors)
}

// StartExtraction creates a job and recognizes and parses the image in the background.
// The job is returned immediately so the caller can poll for results.
// Image bytes are zeroed as soon as recognition finishes.
func (s *Service) StartExtraction(ctx context.Context, orgID string, imageData []byte, docType domain.DocumentType) (*domain.ExtractionJob, error) {
	if s.ocr == nil {
		storage.ZeroBytes(imageData)
		return nil, errors.New("OCR_UNAVAILABLE", "el reconocimiento de imágenes no está configurado", http.StatusServiceUnavailable)
	}

	jobID := storage.GenerateJobID()
	s.storage.StoreJob(&domain.ExtractionJob{
		JobID:     jobID,
		OrgID:     orgID,
		Status:    domain.StatusProcessing,
		CreatedAt: time.Now(),
	})

	processors := s.registry.FindProcessors(docType)
	if len(processors) == 0 {
		s.storage.UpdateJob(jobID, func(j *domain.ExtractionJob) {
			j.Status = domain.StatusFailed
			j.Error = fmt.Sprintf("no processor available for document type: %s", docType)
		})
		storage.ZeroBytes(imageData)
		return s.storage.GetJob(jobID), nil
	}

	// detached from the request; the client polls
	go s.processAsync(context.WithoutCancel(ctx), jobID, imageData, docType, processors)

	return s.storage.GetJob(jobID), nil
}

func (s *Service) processAsync(ctx context.Context, jobID string, imageData []byte, docType domain.DocumentType, processors []processor.Processor) {
	text, err := s.ocr.Recognize(ctx, imageData, docType)
	storage.ZeroBytes(imageData)

	if err != nil {
		s.fail(jobID, err)
		return
	}

	result, err := s.runProcessors(ctx, jobID, text, docType, processors)
	if err != nil {
		s.fail(jobID, err)
		return
	}

	s.storage.UpdateJob(jobID, func(j *domain.ExtractionJob) {
		j.Status = domain.StatusCompleted
		j.Result = result
	})

	s.log.Info().
		Str("job_id", jobID).
		Int("warnings", len(result.Warnings)).
		Int64("duration_ms", result.ProcessingTimeMs).
		Msg("document extraction completed")
}

// runProcessors tries processors in order; if one fails, it falls through to the next
func (s *Service) runProcessors(ctx context.Context, jobID, text string, docType domain.DocumentType, processors []processor.Processor) (*domain.ExtractionResult, error) {
	var lastErr error
	for _, proc := range processors {
		result, err := proc.Process(ctx, text, docType)
		if err == nil {
			return result, nil
		}
		lastErr = err
		s.log.Warn().Err(err).
			Str("job_id", jobID).
			Str("processor", proc.Name()).
			Msg("processor failed, trying next")
	}
	return nil, lastErr
}

func (s *Service) fail(jobID string, err error) {
	s.storage.UpdateJob(jobID, func(j *domain.ExtractionJob) {
		j.Status = domain.StatusFailed
		j.Error = err.Error()
	})
	s.log.Error().Err(err).Str("job_id", jobID).Msg("document extraction failed")
}

// GetJob returns a job owned by orgID
func (s *Service) GetJob(orgID, jobID string) (*domain.ExtractionJob, error) {
	job := s.storage.GetJob(jobID)
	if job == nil || job.OrgID != orgID {
		return nil, errors.NotFound("job")
	}
	return job, nil
}
