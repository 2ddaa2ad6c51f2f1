package pipeline

// Defaults for statement archiving.
const (
	// DefaultFilename is used when an upload arrives without a name.
	DefaultFilename = "statement.ofx"

	// maxErrorMessageLen bounds the failure cause stored on a statement.
	maxErrorMessageLen = 2000
)
