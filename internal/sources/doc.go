// Package sources implements the ingestion tasks run by the coordinator.
//
// Each source fetches records from an external HTTP API for the window it is
// given and upserts them into the sink, so running a task twice over the same
// window leaves the sink unchanged.
//
// Current implementations:
//   - SnapTrade: brokerage activities for a date range (default: Lookback 24h)
//   - Discord: channel messages past a stored cursor (default: Unbounded)
//   - OHLCV: daily price bars per symbol (default: previous business day)
//
// Build turns the configured tasks into registry descriptors.
package sources
