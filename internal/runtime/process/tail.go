package process

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// tailChunkSize is how much of the file end each backward read covers.
const tailChunkSize = 8192

// tailFile returns the last n lines of the file at path, reading backwards
// from the end so large console logs are never loaded whole.
func tailFile(path string, n int) (string, error) {
	if n <= 0 {
		n = 100
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat log file: %w", err)
	}

	size := info.Size()
	if size == 0 {
		return "", nil
	}

	var collected []byte
	offset := size
	for offset > 0 {
		chunk := int64(tailChunkSize)
		if offset < chunk {
			chunk = offset
		}
		offset -= chunk

		buf := make([]byte, chunk)
		if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read log file: %w", err)
		}
		collected = append(buf, collected...)

		if countLines(collected) > n {
			break
		}
	}

	lines := splitLines(collected)
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return string(bytes.Join(lines, []byte("\n"))), nil
}

// countLines counts content lines, ignoring a trailing newline.
func countLines(data []byte) int {
	return len(splitLines(data))
}

func splitLines(data []byte) [][]byte {
	data = bytes.TrimSuffix(data, []byte("\n"))
	if len(data) == 0 {
		return nil
	}
	return bytes.Split(data, []byte("\n"))
}
