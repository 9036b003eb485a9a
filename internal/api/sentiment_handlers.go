package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/suggest"
)

func (s *Server) registerSentimentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "analyzeSentiment",
		Method:      http.MethodPost,
		Path:        "/api/v1/sentiment/analyze",
		Summary:     "Suggest a label",
		Description: "Suggests a sentiment label for one text. Falls back to keyword matching when the model is unavailable.",
		Tags:        []string{"Sentiment"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAnalyzeSentiment)

	huma.Register(s.api, huma.Operation{
		OperationID: "analyzeSentimentBatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/sentiment/analyze-batch",
		Summary:     "Suggest labels for several texts",
		Tags:        []string{"Sentiment"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAnalyzeSentimentBatch)
}

// AnalyzeRequest is the body for a single suggestion.
type AnalyzeRequest struct {
	Text   string `json:"text" maxLength:"10000" doc:"Text to classify"`
	Binary bool   `json:"binary,omitempty" doc:"Fold neutral into negative"`
}

// AnalyzeInput wraps the analyze request for Huma.
type AnalyzeInput struct {
	Body AnalyzeRequest
}

// AnalyzeOutput wraps the suggestion for Huma.
type AnalyzeOutput struct {
	Body *suggest.Result
}

// AnalyzeBatchRequest is the body for a batch suggestion.
type AnalyzeBatchRequest struct {
	Texts  []string `json:"texts" minItems:"1" maxItems:"100" doc:"Texts to classify"`
	Binary bool     `json:"binary,omitempty" doc:"Fold neutral into negative"`
}

// AnalyzeBatchInput wraps the batch request for Huma.
type AnalyzeBatchInput struct {
	Body AnalyzeBatchRequest
}

// AnalyzeBatchResponse lists per-text results in input order.
type AnalyzeBatchResponse struct {
	Results []suggest.BatchItem `json:"results"`
}

// AnalyzeBatchOutput wraps the batch response for Huma.
type AnalyzeBatchOutput struct {
	Body AnalyzeBatchResponse
}

func (s *Server) handleAnalyzeSentiment(ctx context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	res, err := s.services.Sentiment.Analyze(ctx, input.Body.Text, input.Body.Binary)
	if err != nil {
		if errors.Is(err, suggest.ErrEmptyText) {
			return nil, domainerrors.Validation("text is required")
		}
		return nil, err
	}
	return &AnalyzeOutput{Body: res}, nil
}

func (s *Server) handleAnalyzeSentimentBatch(ctx context.Context, input *AnalyzeBatchInput) (*AnalyzeBatchOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}
	items := s.services.Sentiment.AnalyzeBatch(ctx, input.Body.Texts, input.Body.Binary)
	return &AnalyzeBatchOutput{Body: AnalyzeBatchResponse{Results: items}}, nil
}
