package imgio

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Checksum streams the file at path through xxHash64 and returns the sum
// as 16 hex characters. Resume keys and content-addressed artifacts are
// built from these.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// ChecksumBytes returns the xxHash64 of data as 16 hex characters.
func ChecksumBytes(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
