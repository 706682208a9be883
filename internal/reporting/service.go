package reporting

import (
	"context"
	"errors"

	"voice-agent-admin/internal/calls"
	"voice-agent-admin/internal/transcript"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// CallSource abstracts call-record access for reporting. Satisfied by
// *calls.Service.
type CallSource interface {
	List(ctx context.Context, limit int) ([]calls.CallRecord, error)
	ListByConfig(ctx context.Context, configID int64, limit int) ([]calls.CallRecord, error)
}

type Service struct {
	source CallSource
}

func NewService(source CallSource) *Service { return &Service{source: source} }

// CallsSummary aggregates call records into operator dashboard metrics.
// Sentiment and delivery counters read the stored structured_summary, so
// they reflect whatever the summarizer derived at webhook time.
func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.AgentConfigID < 0 || req.Limit < 0 {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.source == nil {
		return CallsSummary{}, errors.New("reporting: call source not configured")
	}

	var (
		rows []calls.CallRecord
		err  error
	)
	if req.AgentConfigID > 0 {
		rows, err = s.source.ListByConfig(ctx, req.AgentConfigID, req.Limit)
	} else {
		rows, err = s.source.List(ctx, req.Limit)
	}
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{AgentConfigID: req.AgentConfigID}
	durated := 0
	for _, rec := range rows {
		out.TotalCalls++

		switch rec.Status {
		case calls.StatusPending:
			out.PendingCalls++
		case calls.StatusInProgress:
			out.InProgressCalls++
		case calls.StatusCompleted:
			out.CompletedCalls++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusCancelled:
			out.CancelledCalls++
		}

		if rec.DurationSeconds != nil {
			out.TotalDurationSeconds += *rec.DurationSeconds
			durated++
		}

		if confirmed, ok := rec.StructuredSummary["delivery_confirmed"].(bool); ok && confirmed {
			out.DeliveriesConfirmed++
		}
		if hasEntries(rec.StructuredSummary["issues_identified"]) {
			out.CallsWithIssues++
		}
		switch sentiment(rec.StructuredSummary) {
		case transcript.SentimentPositive:
			out.SentimentPositive++
		case transcript.SentimentNegative:
			out.SentimentNegative++
		default:
			out.SentimentNeutral++
		}
	}
	if durated > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / durated
	}
	return out, nil
}

// hasEntries tolerates both in-process ([]string) and JSON-decoded
// ([]any) list shapes.
func hasEntries(v any) bool {
	switch list := v.(type) {
	case []string:
		return len(list) > 0
	case []any:
		return len(list) > 0
	default:
		return false
	}
}

func sentiment(summary map[string]any) string {
	s, _ := summary["driver_sentiment"].(string)
	if s == "" {
		return transcript.SentimentNeutral
	}
	return s
}
