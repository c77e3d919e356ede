package builtin

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"localagent/pkg/capability"
)

const (
	formatZstd = "zstd"
	formatLZ4  = "lz4"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

func compressCapabilities(deps Deps) []capability.Descriptor {
	return []capability.Descriptor{
		describe("compress_file", "Compress a file with zstd or lz4",
			capability.Signature{
				pathParam,
				capability.Optional("format", "zstd (default) or lz4"),
				outputParam,
			},
			func(ctx context.Context, params capability.Params) error {
				path, err := params.String("path")
				if err != nil {
					return err
				}
				format, err := params.StringOr("format", formatZstd)
				if err != nil {
					return err
				}
				format = strings.ToLower(format)
				suffix, err := formatSuffix(format)
				if err != nil {
					return err
				}
				output, err := outputPath(params, path, withSuffix(suffix))
				if err != nil {
					return err
				}
				written, err := transformFile(path, output, func(dst io.Writer, src io.Reader) error {
					return compressStream(format, dst, src)
				})
				if err != nil {
					return fmt.Errorf("compress '%s': %w", path, err)
				}
				deps.Logger.InfoContext(ctx, "Compressed file",
					"path", path, "output", output, "format", format, "bytes", written)
				return nil
			}),
		describe("decompress_file", "Decompress a zstd or lz4 file, detecting the format",
			capability.Signature{pathParam, outputParam},
			func(ctx context.Context, params capability.Params) error {
				path, err := params.String("path")
				if err != nil {
					return err
				}
				output, err := outputPath(params, path, withoutSuffix(".zst", ".lz4"))
				if err != nil {
					return err
				}
				var format string
				written, err := transformFile(path, output, func(dst io.Writer, src io.Reader) error {
					detected, decodeErr := decompressStream(dst, src)
					format = detected
					return decodeErr
				})
				if err != nil {
					return fmt.Errorf("decompress '%s': %w", path, err)
				}
				deps.Logger.InfoContext(ctx, "Decompressed file",
					"path", path, "output", output, "format", format, "bytes", written)
				return nil
			}),
	}
}

func formatSuffix(format string) (string, error) {
	switch format {
	case formatZstd:
		return ".zst", nil
	case formatLZ4:
		return ".lz4", nil
	default:
		return "", fmt.Errorf("unknown compression format '%s'", format)
	}
}

func compressStream(format string, dst io.Writer, src io.Reader) error {
	var writer io.WriteCloser
	switch format {
	case formatZstd:
		encoder, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("zstd encoder: %w", err)
		}
		writer = encoder
	case formatLZ4:
		writer = lz4.NewWriter(dst)
	default:
		return fmt.Errorf("unknown compression format '%s'", format)
	}
	if _, err := io.Copy(writer, src); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

// decompressStream sniffs the frame magic of src and decodes it into dst.
func decompressStream(dst io.Writer, src io.Reader) (string, error) {
	buffered := bufio.NewReader(src)
	magic, err := buffered.Peek(4)
	if err != nil && err != io.EOF {
		return "", err
	}
	switch {
	case bytes.Equal(magic, zstdMagic):
		decoder, err := zstd.NewReader(buffered)
		if err != nil {
			return "", fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
		_, err = io.Copy(dst, decoder)
		return formatZstd, err
	case bytes.Equal(magic, lz4Magic):
		_, err := io.Copy(dst, lz4.NewReader(buffered))
		return formatLZ4, err
	default:
		return "", fmt.Errorf("unrecognized compression format")
	}
}

