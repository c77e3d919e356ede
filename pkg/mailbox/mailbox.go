// Package mailbox implements the single-slot, file-backed handoff point
// between a request producer and the agent. The slot is either empty
// (absent, zero-length or whitespace) or occupied by one JSON payload.
// Consuming a payload empties the slot before the payload is returned, so
// a crash while the payload is being handled can never replay it.
package mailbox

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// placeholder is written by Ensure when the slot does not exist yet.
var placeholder = []byte("{}")

// Message is one payload taken from the slot.
type Message struct {
	// Payload is the decoded JSON value. It may be any JSON type;
	// the request package decides whether it is a usable request.
	Payload any
	// Fingerprint is a short BLAKE3 digest of the raw bytes, used to
	// correlate producer writes with agent log records.
	Fingerprint string
	// Size is the length of the raw content in bytes.
	Size int
}

// Mailbox is the file-backed request slot.
type Mailbox struct {
	path   string
	perm   os.FileMode
	logger *slog.Logger
}

// New returns a mailbox backed by the file at path. A nil logger discards
// log output.
func New(path string, logger *slog.Logger) *Mailbox {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mailbox{path: path, perm: 0o600, logger: logger}
}

// Path returns the backing file path.
func (m *Mailbox) Path() string {
	return m.path
}

// Ensure creates the slot holding the "{}" placeholder if it does not
// exist. An existing slot is left untouched.
func (m *Mailbox) Ensure() error {
	if _, err := os.Stat(m.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat mailbox %s: %w", m.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create mailbox directory: %w", err)
	}
	if err := os.WriteFile(m.path, placeholder, m.perm); err != nil {
		return fmt.Errorf("create mailbox %s: %w", m.path, err)
	}
	m.logger.Info("Created command file", "path", m.path)
	return nil
}

// Peek returns the raw slot content without consuming it. An absent slot
// reads as empty.
func (m *Mailbox) Peek() ([]byte, error) {
	content, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mailbox %s: %w", m.path, err)
	}
	return content, nil
}

// Occupied reports whether the slot holds non-blank content.
func (m *Mailbox) Occupied() (bool, error) {
	content, err := m.Peek()
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(content)) > 0, nil
}

// Consume takes the payload out of the slot. It returns false, with no
// side effects, when the slot is absent or blank. Otherwise the slot is
// cleared first and the content decoded; content that is not valid JSON
// is dropped and reported as no work.
func (m *Mailbox) Consume() (Message, bool) {
	content, err := m.Peek()
	if err != nil {
		m.logger.Error("Could not read command file", "path", m.path, "error", err)
		return Message{}, false
	}
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return Message{}, false
	}

	if err := m.Clear(); err != nil {
		m.logger.Error("Could not clear command file", "path", m.path, "error", err)
	}

	message := Message{Fingerprint: Fingerprint(content), Size: len(content)}
	if err := json.Unmarshal(content, &message.Payload); err != nil {
		m.logger.Warn("Invalid JSON in command file. Clearing it.",
			"path", m.path, "fingerprint", message.Fingerprint, "error", err)
		return Message{}, false
	}
	return message, true
}

// Clear truncates the slot to zero length, creating it if needed. It is
// idempotent: clearing an empty slot succeeds and changes nothing.
func (m *Mailbox) Clear() error {
	file, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, m.perm)
	if err != nil {
		return fmt.Errorf("clear mailbox %s: %w", m.path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("clear mailbox %s: %w", m.path, err)
	}
	return nil
}

// Write replaces the slot content with payload encoded as JSON. The new
// content is written to a temporary file in the same directory and
// renamed over the slot, so the agent never observes a partial payload.
func (m *Mailbox) Write(payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return m.WriteRaw(encoded)
}

// WriteRaw replaces the slot content with data verbatim.
func (m *Mailbox) WriteRaw(data []byte) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mailbox directory: %w", err)
	}
	temp, err := os.CreateTemp(dir, "."+filepath.Base(m.path)+".*")
	if err != nil {
		return fmt.Errorf("create temporary mailbox file: %w", err)
	}
	tempPath := temp.Name()
	defer os.Remove(tempPath)

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return fmt.Errorf("write temporary mailbox file: %w", err)
	}
	if err := temp.Chmod(m.perm); err != nil {
		temp.Close()
		return fmt.Errorf("chmod temporary mailbox file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("close temporary mailbox file: %w", err)
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		return fmt.Errorf("replace mailbox %s: %w", m.path, err)
	}
	return nil
}

// Fingerprint returns the first 16 hex digits of the BLAKE3 digest of content.
func Fingerprint(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:8])
}
