// Package archive persists completed timelines. A Dispatcher publishes records
// onto a queue, a Worker drains the queue into a Store, and DirectArchiver
// writes synchronously when no queue is configured.
package archive
