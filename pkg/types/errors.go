package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidDocumentType = errors.New("invalid document type")
	ErrMissingSource       = errors.New("source path and file name are required")
	ErrInvalidChunkIndex   = errors.New("chunk index must be >= 0")
)

// Pipeline errors shared by the indexer, retriever and tool surfaces
var (
	ErrIndexFailed        = errors.New("index build failed")
	ErrIndexingInProgress = errors.New("indexing already in progress")
	ErrNoIndex            = errors.New("repository has not been indexed")
	ErrInvalidK           = errors.New("k must be >= 1")
	ErrSearchFailed       = errors.New("search failed")
)
