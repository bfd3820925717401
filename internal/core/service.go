package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/lending/internal/config"
	"github.com/JonMunkholm/lending/internal/logging"
)

// DefaultUploadTimeout bounds one upload request when no timeout is configured.
const DefaultUploadTimeout = 10 * time.Minute

// Service provides the CSV upload operation used by the web layer and the CLI.
type Service struct {
	db       TxBeginner
	loader   *BatchLoader
	timeout  time.Duration
	messages *config.Constants
}

// NewService wires a loader from the upload configuration.
func NewService(db TxBeginner, cfg *config.UploadConfig, consts *config.Constants) (*Service, error) {
	identity, err := cfg.IdentityMap()
	if err != nil {
		return nil, err
	}

	sanitizer, err := NewSanitizer(DefaultSanitizeRules)
	if err != nil {
		return nil, fmt.Errorf("compile sanitizer: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}

	return &Service{
		db:       db,
		loader:   NewBatchLoader(sanitizer, NewSchemaBuilder(sanitizer, cfg.ColumnType, identity), cfg.BatchSize),
		timeout:  timeout,
		messages: consts,
	}, nil
}

// Upload loads files as one all-or-nothing job. A job id is assigned unless
// ctx already carries one.
func (s *Service) Upload(ctx context.Context, files []UploadedFile) (*LoadResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if JobIDFromContext(ctx) == "" {
		ctx, _ = NewJobContext(ctx)
	}

	logger := logging.WithFields(ctx,
		"job_id", JobIDFromContext(ctx),
		"operator", OperatorFromContext(ctx),
	)
	logger.Info("upload started", "files", len(files))

	result, err := s.loader.Load(ctx, s.db, files)
	if err != nil {
		return nil, err
	}

	logger.Info("upload committed",
		"files", len(result.Files),
		"records", result.Total,
		"duration", result.Duration,
	)
	return result, nil
}

// SuccessMessage renders the operator-facing confirmation for result.
func (s *Service) SuccessMessage(result *LoadResult) string {
	return result.Message(s.messages.UploadSuccess)
}
