package constants

const (
	// SSEScannerInitialBufferSize defines the initial buffer for SSE scanners (64KB).
	SSEScannerInitialBufferSize = 64 * 1024

	// SSEScannerMaxBufferSize caps a single SSE event (4MB); model output chunks
	// with inline image data can be large.
	SSEScannerMaxBufferSize = 4 * 1024 * 1024
)
