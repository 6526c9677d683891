package corpus

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrBadGolden is returned when a golden-hash sidecar file is malformed.
var ErrBadGolden = errors.New("corpus: malformed golden hash file")

// GoldenSuffix is appended to a stream path to locate its hash sidecar.
const GoldenSuffix = ".md5"

// LoadGoldenHashes reads the newline-separated MD5 sidecar next to a
// stream file. Each non-empty line must be exactly 32 hex characters.
func LoadGoldenHashes(streamPath string) ([]string, error) {
	data, err := os.ReadFile(streamPath + GoldenSuffix)
	if err != nil {
		return nil, fmt.Errorf("read golden hashes: %w", err)
	}

	var hashes []string
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) != 32 {
			return nil, fmt.Errorf("%w: line %d is %d chars, want 32", ErrBadGolden, i+1, len(line))
		}
		for _, c := range line {
			if !isHex(c) {
				return nil, fmt.Errorf("%w: line %d has non-hex character %q", ErrBadGolden, i+1, c)
			}
		}
		hashes = append(hashes, strings.ToLower(line))
	}
	if len(hashes) == 0 {
		return nil, fmt.Errorf("%w: no hashes", ErrBadGolden)
	}
	return hashes, nil
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
