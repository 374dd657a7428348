// Package mysql opens MySQL connections and applies the embedded schema
// migrations shared by the archive and registry stores.
package mysql
