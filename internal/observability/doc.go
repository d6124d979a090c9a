// Package observability provides the agent event log, metrics aggregation,
// and alerting for rovermon. Events are persisted as JSON Lines (JSONL) and
// aggregates are derived on demand from the log.
package observability
