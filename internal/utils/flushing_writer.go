package utils

import "io"

type flusher interface {
	Flush() error
}

type flushingWriter struct {
	destination io.Writer
	flusher     flusher
}

// NewFlushingWriter wraps destination so every write is followed by a flush when
// the destination supports it.
func NewFlushingWriter(destination io.Writer) io.Writer {
	if destination == nil {
		return io.Discard
	}
	flushable, supportsFlush := destination.(flusher)
	if !supportsFlush {
		return destination
	}
	return &flushingWriter{destination: destination, flusher: flushable}
}

func (writer *flushingWriter) Write(data []byte) (int, error) {
	bytesWritten, writeError := writer.destination.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}
	return bytesWritten, writer.flusher.Flush()
}
