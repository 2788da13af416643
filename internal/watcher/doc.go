// Package watcher keeps the index in step with a repository on disk. It
// watches every directory the loader would walk and, once changes to
// recognized files have been quiet for the debounce period, runs a full
// rebuild through the indexer.
package watcher
