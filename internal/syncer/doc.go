// Package syncer drives a single annotation sync pass.
//
// A pass parses the document namespace, connects to the cluster for the
// namespace's environment, renders the global annotations once and then
// renders, merges and patches every service in document order.
//
// Failures are split into two tiers. A malformed namespace aborts the pass
// before any cluster call. Everything that goes wrong for one service
// (empty annotations, a missing cluster client, API errors) is logged,
// recorded in the Result and the pass moves on to the next service.
package syncer
