package storage

import (
	"bufio"
	"compress/gzip"
	"io"

	"vqtlbrowser/internal/errors"
)

// Decompress returns a reader over r's content, transparently inflating gzip
// input detected by its magic bytes. Close releases the gzip reader only;
// the caller still owns r.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, _ := br.Peek(2)
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
		return gz, nil
	}
	return io.NopCloser(br), nil
}
