package builtin

import (
	"os"
	"strings"
	"testing"

	"localagent/pkg/capability"
)

func TestCompressRoundTrip(t *testing.T) {
	payload := strings.Repeat("local agent payload ", 512)
	for _, format := range []string{"zstd", "lz4"} {
		t.Run(format, func(t *testing.T) {
			h := newHarness(t)
			source := h.write(t, "data.txt", payload)
			if err := h.invoke(t, "compress_file", capability.Params{"path": source, "format": format}); err != nil {
				t.Fatal(err)
			}
			suffix, _ := formatSuffix(format)
			compressed := source + suffix
			info, err := os.Stat(compressed)
			if err != nil {
				t.Fatal(err)
			}
			if info.Size() >= int64(len(payload)) {
				t.Fatalf("compressed size %d not smaller than %d", info.Size(), len(payload))
			}

			restored := h.path("restored.txt")
			if err := h.invoke(t, "decompress_file", capability.Params{"path": compressed, "output": restored}); err != nil {
				t.Fatal(err)
			}
			if got := readFile(t, restored); got != payload {
				t.Fatal("decompressed payload differs")
			}
			h.assertLogged(t, "format="+format)
		})
	}
}

func TestDecompressDerivesOutput(t *testing.T) {
	h := newHarness(t)
	source := h.write(t, "report.csv", "a,b\n1,2\n")
	if err := h.invoke(t, "compress_file", capability.Params{"path": source}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(source); err != nil {
		t.Fatal(err)
	}
	if err := h.invoke(t, "decompress_file", capability.Params{"path": source + ".zst"}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, source); got != "a,b\n1,2\n" {
		t.Fatalf("content = %q", got)
	}
}

func TestCompressErrors(t *testing.T) {
	h := newHarness(t)
	source := h.write(t, "plain.txt", "not compressed")

	if err := h.invoke(t, "compress_file", capability.Params{"path": source, "format": "gzip"}); err == nil {
		t.Error("unknown format accepted")
	}
	if err := h.invoke(t, "decompress_file", capability.Params{"path": source}); err == nil {
		t.Error("plain text decompressed")
	}
	if _, err := os.Stat(source + ".out"); !os.IsNotExist(err) {
		t.Error("failed decompress left an output file")
	}
	if err := h.invoke(t, "compress_file", capability.Params{"path": source, "output": source}); err == nil {
		t.Error("compressing onto the input succeeded")
	}
	if got := readFile(t, source); got != "not compressed" {
		t.Errorf("input clobbered: %q", got)
	}
}
