// Package timeline folds workflow progress events into the ordered, deduplicated
// list of entries shown to the submitting user.
package timeline
