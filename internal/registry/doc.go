// Package registry is the read side of the agent directory: listing, lookup,
// name search and live subscriptions that deliver the full list on every change.
package registry
