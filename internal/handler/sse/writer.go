package sse

// KeepAliveComment is the frame that keeps idle connections open.
// Lines starting with : are SSE comments, ignored by clients.
const KeepAliveComment = ": keepalive\n\n"

// FrameWriter enqueues keep-alive comments onto a client's outbound frame
// channel. The connection goroutine is the only writer to the wire, so
// keep-alives ride the same channel as events instead of racing them.
type FrameWriter struct {
	frames chan<- string
}

// NewFrameWriter creates a keep-alive writer backed by the given channel
func NewFrameWriter(frames chan<- string) *FrameWriter {
	return &FrameWriter{frames: frames}
}

// WriteKeepAlive enqueues a keep-alive comment. A full buffer means the
// client is already behind on real events, so the comment is dropped.
func (f *FrameWriter) WriteKeepAlive() error {
	select {
	case f.frames <- KeepAliveComment:
	default:
	}
	return nil
}
