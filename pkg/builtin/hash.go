package builtin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"localagent/pkg/capability"
)

// ErrDigestMismatch is returned by hash_file when the computed digest
// differs from the expected one.
var ErrDigestMismatch = errors.New("digest mismatch")

func hashCapabilities(deps Deps) []capability.Descriptor {
	return []capability.Descriptor{
		describe("hash_file", "Log the digest of a file, optionally verifying it",
			capability.Signature{
				pathParam,
				capability.Optional("algorithm", "blake3 (default) or sha256"),
				capability.Optional("expected", "hex digest the file must match"),
			},
			func(ctx context.Context, params capability.Params) error {
				path, err := params.String("path")
				if err != nil {
					return err
				}
				algorithm, err := params.StringOr("algorithm", "blake3")
				if err != nil {
					return err
				}
				expected, err := params.StringOr("expected", "")
				if err != nil {
					return err
				}
				digest, size, err := hashFile(path, algorithm)
				if err != nil {
					return err
				}
				if expected != "" && !strings.EqualFold(expected, digest) {
					deps.Logger.WarnContext(ctx, "File digest mismatch",
						"path", path, "algorithm", algorithm, "digest", digest, "expected", expected)
					return fmt.Errorf("%s: %w", path, ErrDigestMismatch)
				}
				deps.Logger.InfoContext(ctx, "File digest",
					"path", path, "algorithm", algorithm, "digest", digest, "bytes", size,
					"verified", expected != "")
				return nil
			}),
	}
}

func hashFile(path, algorithm string) (string, int64, error) {
	var hasher hash.Hash
	switch strings.ToLower(algorithm) {
	case "blake3":
		hasher = blake3.New()
	case "sha256":
		hasher = sha256.New()
	default:
		return "", 0, fmt.Errorf("unknown hash algorithm '%s'", algorithm)
	}
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open '%s': %w", path, err)
	}
	defer file.Close()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, fmt.Errorf("read '%s': %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
