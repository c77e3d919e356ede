package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"localagent/pkg/capability"
)

var repoParam = capability.Required("repo", "repository working tree")

func gitCapabilities(deps Deps) []capability.Descriptor {
	return []capability.Descriptor{
		describe("git_status", "Log the branch and changed files of a repository",
			capability.Signature{repoParam},
			func(ctx context.Context, params capability.Params) error {
				repo, err := params.String("repo")
				if err != nil {
					return err
				}
				output, err := runGit(ctx, repo, "status", "--porcelain=v1", "--branch")
				if err != nil {
					return err
				}
				branch, changes := parseStatus(output)
				deps.Logger.InfoContext(ctx, "Repository status",
					"repo", repo, "branch", branch, "changes", changes, "clean", len(changes) == 0)
				return nil
			}),
		describe("git_commit", "Commit staged changes, optionally staging everything first",
			capability.Signature{
				repoParam,
				capability.Required("message", "commit message"),
				capability.Optional("all", "stage all changes first, default false"),
			},
			func(ctx context.Context, params capability.Params) error {
				repo, err := params.String("repo")
				if err != nil {
					return err
				}
				message, err := params.String("message")
				if err != nil {
					return err
				}
				if strings.TrimSpace(message) == "" {
					return fmt.Errorf("commit message is empty")
				}
				all, err := params.BoolOr("all", false)
				if err != nil {
					return err
				}
				if all {
					if _, err := runGit(ctx, repo, "add", "--all"); err != nil {
						return err
					}
				}
				if _, err := runGit(ctx, repo, "commit", "--message", message); err != nil {
					return err
				}
				head, err := runGit(ctx, repo, "rev-parse", "HEAD")
				if err != nil {
					return err
				}
				deps.Logger.InfoContext(ctx, "Committed changes", "repo", repo, "commit", strings.TrimSpace(head))
				return nil
			}),
	}
}

// runGit executes git against repo via -C and returns stdout. Stderr is
// folded into the error on failure.
func runGit(ctx context.Context, repo string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", repo}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), repo, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// parseStatus splits porcelain v1 output into its branch header and the
// changed-file lines.
func parseStatus(output string) (string, []string) {
	var branch string
	changes := []string{}
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "## "):
			branch = strings.TrimPrefix(line, "## ")
			if head, _, ok := strings.Cut(branch, "..."); ok {
				branch = head
			}
		default:
			changes = append(changes, line)
		}
	}
	return branch, changes
}
