// Package redis builds the go-redis clients used by the archive queue and the
// agent registry change notifier.
package redis
