package reporting

// CallsSummaryRequest requests aggregated call metrics. AgentConfigID
// zero means all configurations; Limit zero means the store default.
type CallsSummaryRequest struct {
	AgentConfigID int64 `json:"agent_config_id,omitempty"`
	Limit         int   `json:"limit,omitempty"`
}

type CallsSummary struct {
	AgentConfigID int64 `json:"agent_config_id,omitempty"`

	TotalCalls      int `json:"total_calls"`
	PendingCalls    int `json:"pending_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	CancelledCalls  int `json:"cancelled_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	DeliveriesConfirmed int `json:"deliveries_confirmed"`
	CallsWithIssues     int `json:"calls_with_issues"`

	SentimentPositive int `json:"sentiment_positive"`
	SentimentNegative int `json:"sentiment_negative"`
	SentimentNeutral  int `json:"sentiment_neutral"`
}
