// Package checkpoint provides resumable-position persistence for the
// streaming file processor.
package checkpoint

import "time"

// Checkpoint captures enough state to resume a stream operation from the
// exact byte it left off at.
type Checkpoint struct {
	CheckpointID  string    `json:"checkpoint_id"`
	CreatedAt     time.Time `json:"created_at"`
	PositionBytes int64     `json:"position_bytes"`
	// OutputBytesWritten is how many bytes had been written to the output
	// file at this checkpoint, tracked independently of PositionBytes (an
	// input-stream offset) since a processor that doesn't preserve length
	// chunk-for-chunk, like RegexProcessor or a compressing BinaryProcessor,
	// writes a different number of bytes than it reads.
	OutputBytesWritten int64          `json:"output_bytes_written"`
	ChunksDone         int            `json:"chunks_done"`
	LinesDone          int            `json:"lines_done"`
	CustomState        map[string]any `json:"custom_state,omitempty"`
	FilePath           string         `json:"file_path"`
}
