package metrics

// ConversationUsage is the aggregated token and cost accounting for one
// conversation, derived from its append-only TokenUsageRow ledger. This is
// the "what did this conversation cost" read path; Telemetry.RecordTokenUsage
// in telemetry.go is the "record what just happened" write path.
type ConversationUsage struct {
	ConversationID      string
	InputTokens         int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	OutputTokens        int64
	TotalCostUSD        float64
	CallCount           int
}

// UsageRow is the narrow slice of persistence.TokenUsageRow this package
// aggregates over; defined locally so pkg/metrics doesn't import
// pkg/persistence just for a struct shape.
type UsageRow struct {
	InputTokens         int
	CacheCreationTokens int
	CacheReadTokens     int
	OutputTokens        int
	CostUSD             float64
}

// Aggregate sums a conversation's usage rows into one ConversationUsage.
// Aggregation happens over the persisted ledger rather than Prometheus
// because Prometheus counters are an operational/ops-monitoring view with
// retention limits; per-conversation billing accounting must be exact and
// durable, which is what the database ledger guarantees.
func Aggregate(conversationID string, rows []UsageRow) ConversationUsage {
	u := ConversationUsage{ConversationID: conversationID, CallCount: len(rows)}
	for _, r := range rows {
		u.InputTokens += int64(r.InputTokens)
		u.CacheCreationTokens += int64(r.CacheCreationTokens)
		u.CacheReadTokens += int64(r.CacheReadTokens)
		u.OutputTokens += int64(r.OutputTokens)
		u.TotalCostUSD += r.CostUSD
	}
	return u
}
