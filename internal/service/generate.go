// Package service provides business logic for the application.
package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/eralens/eralens/internal/auth"
	"github.com/eralens/eralens/internal/metrics"
	"github.com/eralens/eralens/internal/store"
	"github.com/eralens/eralens/internal/upstream"
)

// Service errors.
var (
	ErrInvalidPayload      = errors.New("invalid generation payload")
	ErrOutOfCredits        = errors.New("out of credits")
	ErrUpstreamTimeout     = errors.New("upstream timed out")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// modelNameRegexChars are the only characters allowed in a model name
// used to build the upstream URL.
const modelNameAllowed = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789.-"

// UpstreamCaller is the slice of the upstream client the service needs.
type UpstreamCaller interface {
	GenerateContent(ctx context.Context, model string, body []byte) (*upstream.Result, error)
}

// GenerateService meters and forwards image-generation requests.
// The balance check and the credit reservation are a single atomic store
// operation performed before the upstream call; a failed upstream call
// does not refund the credit.
type GenerateService struct {
	store    store.AccountStore
	upstream UpstreamCaller
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewGenerateService creates a new GenerateService.
func NewGenerateService(accounts store.AccountStore, up UpstreamCaller, recorder metrics.Recorder, logger *slog.Logger) *GenerateService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &GenerateService{
		store:    accounts,
		upstream: up,
		metrics:  recorder,
		logger:   logger,
	}
}

// GenerateInput defines input for a metered generation.
type GenerateInput struct {
	AccountID string
	Email     string
	Model     string
	Body      []byte
}

// GenerateOutput is the relayed upstream response plus metering metadata.
type GenerateOutput struct {
	JobID       string
	StatusCode  int
	ContentType string
	Body        []byte
	Balance     int
}

// generateRequest is the minimal shape the gateway validates before
// touching credits. Both protobuf-JSON spellings are accepted.
type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text            string      `json:"text"`
			InlineData      *inlinePart `json:"inline_data"`
			InlineDataCamel *inlinePart `json:"inlineData"`
		} `json:"parts"`
	} `json:"contents"`
}

type inlinePart struct {
	MimeType      string `json:"mime_type"`
	MimeTypeCamel string `json:"mimeType"`
	Data          string `json:"data"`
}

func (p *inlinePart) mimeType() string {
	if p.MimeType != "" {
		return p.MimeType
	}
	return p.MimeTypeCamel
}

// Generate runs the metered generation flow:
// validate payload, reserve one credit, forward upstream, relay.
func (s *GenerateService) Generate(ctx context.Context, input GenerateInput) (*GenerateOutput, error) {
	start := time.Now()
	jobID := ulid.Make().String()

	logger := s.logger.With(
		slog.String("job_id", jobID),
		slog.String("account_id", input.AccountID),
		slog.String("email", auth.MaskEmail(input.Email)),
		slog.String("model", input.Model),
	)

	if err := validateGenerateRequest(input.Model, input.Body); err != nil {
		s.metrics.IncGeneration(metrics.GenerationInvalid)
		logger.Warn("generation rejected", slog.String("reason", err.Error()))
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	// Reserve the credit before the expensive upstream call. This bounds
	// abuse from many concurrent requests against a thin balance.
	balance, err := s.store.TryDeductCredit(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrOutOfCredits) {
			s.metrics.IncGeneration(metrics.GenerationOutOfCredits)
			logger.Info("generation refused", slog.String("reason", "out_of_credits"))
			return nil, ErrOutOfCredits
		}
		return nil, fmt.Errorf("reserve credit: %w", err)
	}
	s.metrics.IncCreditsDeducted()

	// The reservation is committed. If the client has already gone away,
	// skip the upstream call; the credit stays spent.
	if err := ctx.Err(); err != nil {
		s.metrics.IncGeneration(metrics.GenerationUpstreamError)
		logger.Info("generation abandoned before upstream call",
			slog.Int("balance", balance))
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, err)
	}

	result, err := s.upstream.GenerateContent(ctx, input.Model, input.Body)
	if err != nil {
		// No refund: the credit was spent when the reservation committed.
		s.metrics.IncGeneration(metrics.GenerationUpstreamError)
		logger.Error("upstream call failed",
			slog.String("error", err.Error()),
			slog.Int("balance", balance),
		)
		if errors.Is(err, upstream.ErrTimeout) {
			return nil, ErrUpstreamTimeout
		}
		return nil, ErrUpstreamUnavailable
	}

	outcome := metrics.GenerationSuccess
	if !result.OK() {
		outcome = metrics.GenerationUpstreamError
	}
	s.metrics.IncGeneration(outcome)
	s.metrics.ObserveGenerationDuration(time.Since(start))

	logger.Info("generation completed",
		slog.Int("upstream_status", result.StatusCode),
		slog.Int("balance", balance),
		slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
	)

	return &GenerateOutput{
		JobID:       jobID,
		StatusCode:  result.StatusCode,
		ContentType: result.ContentType,
		Body:        result.Body,
		Balance:     balance,
	}, nil
}

// validateGenerateRequest checks the request shape before any credit or
// network is touched: a routable model name and at least one inline
// image part that decomposes into a mime type and valid base64 data.
func validateGenerateRequest(model string, body []byte) error {
	if model == "" {
		return errors.New("missing model name")
	}
	for _, r := range model {
		if !strings.ContainsRune(modelNameAllowed, r) {
			return fmt.Errorf("invalid model name character %q", r)
		}
	}

	var req generateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("body is not valid JSON: %s", err)
	}
	if len(req.Contents) == 0 {
		return errors.New("missing contents")
	}

	for _, content := range req.Contents {
		for _, part := range content.Parts {
			inline := part.InlineData
			if inline == nil {
				inline = part.InlineDataCamel
			}
			if inline == nil {
				continue
			}

			mime := inline.mimeType()
			if !strings.HasPrefix(mime, "image/") {
				return fmt.Errorf("unsupported inline mime type %q", mime)
			}
			if inline.Data == "" {
				return errors.New("inline image data is empty")
			}
			if _, err := base64.StdEncoding.DecodeString(inline.Data); err != nil {
				return errors.New("inline image data is not valid base64")
			}
			return nil
		}
	}

	return errors.New("missing inline image part")
}
