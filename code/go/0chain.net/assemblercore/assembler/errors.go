package assembler

import "github.com/0chain/errors"

var (
	// ErrInvalidMetadata the chunk's metadata is missing or malformed; nothing was written
	ErrInvalidMetadata = errors.New("invalid_metadata", "invalid chunk metadata")
	// ErrChunkWriteFailed the chunk could not be persisted
	ErrChunkWriteFailed = errors.New("chunk_write_failed", "failed to store chunk")
	// ErrMergeFailed the merge failed; chunks are kept and the next delivery retries
	ErrMergeFailed = errors.New("merge_failed", "failed to merge chunks")
	// ErrCleanupFailed chunks were left behind after a successful merge; never returned to callers
	ErrCleanupFailed = errors.New("cleanup_failed", "failed to delete merged chunks")
	// ErrFileAlreadyMerged the file id was merged already
	ErrFileAlreadyMerged = errors.New("file_already_merged", "file was already merged")
	// ErrStoreUnavailable stored chunks could not be listed
	ErrStoreUnavailable = errors.New("store_unavailable", "chunk store unavailable")
)
