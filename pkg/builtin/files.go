package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"localagent/pkg/capability"
)

var (
	pathParam    = capability.Required("path", "target path")
	fromParam    = capability.Required("from_path", "source path")
	toParam      = capability.Required("to_path", "destination path")
	contentParam = capability.Required("content", "text to write")
)

func fileCapabilities(deps Deps) []capability.Descriptor {
	files := fileHandlers{deps: deps}
	return []capability.Descriptor{
		describe("create_file", "Create a file, optionally with content",
			capability.Signature{pathParam, capability.Optional("content", "initial content, default empty")},
			files.createFile),
		describe("create_folder", "Create a folder and any missing parents",
			capability.Signature{pathParam}, files.createFolder),
		describe("write_file", "Replace a file's content",
			capability.Signature{pathParam, contentParam}, files.writeFile),
		describe("append_file", "Append content to a file",
			capability.Signature{pathParam, contentParam}, files.appendFile),
		describe("read_file", "Log the content of a text file",
			capability.Signature{pathParam}, files.readFile),
		describe("list_dir", "Log the entries of a directory",
			capability.Signature{pathParam}, files.listDir),
		describe("copy_file", "Copy a file, preserving its mode",
			capability.Signature{fromParam, toParam}, files.copyFile),
		describe("move_file", "Move a file",
			capability.Signature{fromParam, toParam}, files.moveFile),
		describe("rename_file", "Rename a file within its directory",
			capability.Signature{pathParam, capability.Required("new_name", "new base name")},
			files.renameFile),
		describe("delete_file", "Delete a file; requires confirm=true",
			capability.Signature{pathParam, capability.Optional("confirm", "must be true")},
			files.deleteFile),
	}
}

type fileHandlers struct {
	deps Deps
}

func (h fileHandlers) createFile(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	content, err := params.StringOr("content", "")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("create file '%s': %w", path, err)
	}
	h.deps.Logger.InfoContext(ctx, "Created file", "path", path)
	return nil
}

func (h fileHandlers) createFolder(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create folder '%s': %w", path, err)
	}
	h.deps.Logger.InfoContext(ctx, "Created folder", "path", path)
	return nil
}

func (h fileHandlers) writeFile(ctx context.Context, params capability.Params) error {
	path, content, err := pathAndContent(params)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write file '%s': %w", path, err)
	}
	h.deps.Logger.InfoContext(ctx, "Wrote to file", "path", path, "bytes", len(content))
	return nil
}

func (h fileHandlers) appendFile(ctx context.Context, params capability.Params) error {
	path, content, err := pathAndContent(params)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append to file '%s': %w", path, err)
	}
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return fmt.Errorf("append to file '%s': %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("append to file '%s': %w", path, err)
	}
	h.deps.Logger.InfoContext(ctx, "Appended to file", "path", path, "bytes", len(content))
	return nil
}

func (h fileHandlers) readFile(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file '%s': %w", path, err)
	}
	h.deps.Logger.InfoContext(ctx, "File content", "path", path, "content", string(content))
	return nil
}

func (h fileHandlers) listDir(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("list directory '%s': %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += string(filepath.Separator)
		}
		names = append(names, name)
	}
	h.deps.Logger.InfoContext(ctx, "Files in directory", "path", path, "entries", names)
	return nil
}

func (h fileHandlers) copyFile(ctx context.Context, params capability.Params) error {
	from, to, err := fromAndTo(params)
	if err != nil {
		return err
	}
	if err := copyFile(from, to); err != nil {
		return err
	}
	h.deps.Logger.InfoContext(ctx, "Copied file", "from", from, "to", to)
	return nil
}

func (h fileHandlers) moveFile(ctx context.Context, params capability.Params) error {
	from, to, err := fromAndTo(params)
	if err != nil {
		return err
	}
	if info, err := os.Stat(to); err == nil && info.IsDir() {
		to = filepath.Join(to, filepath.Base(from))
	}
	if err := os.Rename(from, to); err != nil {
		if !crossDevice(err) {
			return fmt.Errorf("move '%s' to '%s': %w", from, to, err)
		}
		if copyErr := copyFile(from, to); copyErr != nil {
			return fmt.Errorf("move '%s' to '%s': %w", from, to, copyErr)
		}
		if removeErr := os.Remove(from); removeErr != nil {
			return fmt.Errorf("remove '%s' after copy: %w", from, removeErr)
		}
	}
	h.deps.Logger.InfoContext(ctx, "Moved file", "from", from, "to", to)
	return nil
}

func (h fileHandlers) renameFile(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	newName, err := params.String("new_name")
	if err != nil {
		return err
	}
	if newName != filepath.Base(newName) {
		return fmt.Errorf("new_name '%s' must be a base name, not a path", newName)
	}
	newPath := filepath.Join(filepath.Dir(path), newName)
	if err := os.Rename(path, newPath); err != nil {
		return fmt.Errorf("rename '%s': %w", path, err)
	}
	h.deps.Logger.InfoContext(ctx, "Renamed file", "from", path, "to", newPath)
	return nil
}

func (h fileHandlers) deleteFile(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	if !params.Confirmed() {
		h.deps.Logger.WarnContext(ctx, "delete_file called without confirm=true. Skipping.", "path", path)
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		h.deps.Logger.WarnContext(ctx, "File not found for deletion", "path", path)
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete file '%s': %w", path, err)
	}
	h.deps.Logger.InfoContext(ctx, "Successfully deleted file", "path", path)
	return nil
}

func pathAndContent(params capability.Params) (string, string, error) {
	path, err := params.String("path")
	if err != nil {
		return "", "", err
	}
	content, err := params.String("content")
	if err != nil {
		return "", "", err
	}
	return path, content, nil
}

func fromAndTo(params capability.Params) (string, string, error) {
	from, err := params.String("from_path")
	if err != nil {
		return "", "", err
	}
	to, err := params.String("to_path")
	if err != nil {
		return "", "", err
	}
	return from, to, nil
}

// crossDevice reports whether a rename failed only because source and
// destination are on different filesystems.
func crossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// copyFile copies from to to. A directory destination receives the source
// base name.
func copyFile(from, to string) error {
	source, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("open '%s': %w", from, err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat '%s': %w", from, err)
	}
	if info.IsDir() {
		return fmt.Errorf("'%s' is a directory", from)
	}
	if destInfo, err := os.Stat(to); err == nil && destInfo.IsDir() {
		to = filepath.Join(to, filepath.Base(from))
	}

	destination, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create '%s': %w", to, err)
	}
	if _, err := io.Copy(destination, source); err != nil {
		destination.Close()
		return fmt.Errorf("copy '%s' to '%s': %w", from, to, err)
	}
	if err := destination.Close(); err != nil {
		return fmt.Errorf("close '%s': %w", to, err)
	}
	return os.Chtimes(to, info.ModTime(), info.ModTime())
}
