// Package resolver provides semantic resolver implementations.
//
// The factory creates resolvers based on provider configuration.
// Currently supports:
//   - Anthropic Claude (live resolution)
//   - Echo (deterministic, for tests and offline runs)
package resolver
