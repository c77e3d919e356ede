// Package reporter formats capabilities, dispatch outcomes and mailbox
// status for the command line.
package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"localagent/pkg/capability"
	"localagent/pkg/dispatch"
	"localagent/pkg/request"
)

var (
	success   = color.New(color.FgGreen).SprintFunc()
	failure   = color.New(color.FgRed).SprintFunc()
	highlight = color.New(color.FgCyan).SprintFunc()
	warning   = color.New(color.FgYellow).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

// tierColor renders a tier so that anything needing confirmation stands out.
func tierColor(tier capability.Tier) string {
	label := tier.String()
	switch tier {
	case capability.TierSafe:
		return success(label)
	case capability.TierMedium:
		return highlight(label)
	case capability.TierDangerous:
		return warning(label)
	default:
		return failure(label)
	}
}

// PrintCapabilities lists descriptors grouped by tier, safest first.
func PrintCapabilities(descriptors []capability.Descriptor, w io.Writer) {
	if len(descriptors) == 0 {
		fmt.Fprintln(w, "No capabilities registered.")
		return
	}
	sorted := append([]capability.Descriptor(nil), descriptors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Tier != sorted[j].Tier {
			return sorted[i].Tier < sorted[j].Tier
		}
		return sorted[i].Name < sorted[j].Name
	})

	width := 0
	for _, descriptor := range sorted {
		width = max(width, len(descriptor.Name))
	}

	current := capability.Tier(-1)
	for _, descriptor := range sorted {
		if descriptor.Tier != current {
			if current >= 0 {
				fmt.Fprintln(w)
			}
			current = descriptor.Tier
			header := tierColor(current)
			if current >= capability.TierDangerous {
				header += faint(" (requires confirm=true)")
			}
			fmt.Fprintln(w, header)
		}
		fmt.Fprintf(w, "  %-*s  %s\n", width, descriptor.Name, descriptor.Summary)
	}
	fmt.Fprintf(w, "\n%d capabilities\n", len(sorted))
}

// PrintDescriptor prints one capability with its parameters.
func PrintDescriptor(descriptor capability.Descriptor, w io.Writer) {
	fmt.Fprintf(w, "%s%s\n", highlight(descriptor.Name), descriptor.Signature)
	fmt.Fprintf(w, "  %s\n", descriptor.Summary)
	fmt.Fprintf(w, "  Tier: %s\n", tierColor(descriptor.Tier))
	if descriptor.Tier >= capability.TierDangerous {
		fmt.Fprintf(w, "  %s\n", warning("Requests must carry \"confirm\": true"))
	}
	if len(descriptor.Signature) == 0 {
		fmt.Fprintln(w, "  Parameters: none")
		return
	}
	fmt.Fprintln(w, "  Parameters:")
	for _, param := range descriptor.Signature {
		requirement := "optional"
		if param.Required {
			requirement = "required"
		}
		fmt.Fprintf(w, "    %-16s %-8s %s\n", param.Name, requirement, param.Doc)
	}
}

// PrintOutcome prints the result of one dispatch on a single line, with the
// error on the next.
func PrintOutcome(outcome dispatch.Outcome, w io.Writer) {
	var status string
	switch {
	case outcome.Kind == dispatch.Executed:
		status = success("EXECUTED")
	case outcome.Kind == dispatch.Ignored:
		status = faint("IGNORED")
	case outcome.Rejected():
		status = warning("REJECTED")
	default:
		status = failure("FAILED")
	}

	name := outcome.Name
	if name == "" {
		name = "(none)"
	}
	fmt.Fprintf(w, "%s %s", status, highlight(name))
	if outcome.Kind != dispatch.Ignored && name != "(none)" {
		fmt.Fprintf(w, " [%s]", tierColor(outcome.Tier))
	}
	fmt.Fprintf(w, " %s", faint(outcome.Kind.String()))
	if outcome.Duration > 0 {
		fmt.Fprintf(w, " %s", outcome.Duration.Round(time.Microsecond))
	}
	fmt.Fprintln(w)
	if outcome.Err != nil {
		fmt.Fprintf(w, "  %s\n", failure(outcome.Err.Error()))
	}
}

// PrintValidation prints the verdict on a candidate request: the canonical
// form it would dispatch as, or the reason it would be refused.
func PrintValidation(req request.CommandRequest, tier capability.Tier, err error, w io.Writer) {
	if err != nil {
		kind := dispatch.Classify(err)
		status := warning("INVALID")
		if kind == dispatch.Ignored {
			status = faint("IGNORED")
		}
		fmt.Fprintf(w, "%s %s\n  %s\n", status, faint(kind.String()), failure(err.Error()))
		return
	}
	fmt.Fprintf(w, "%s %s [%s]\n", success("VALID"), highlight(req.Name), tierColor(tier))
	for _, key := range req.Params.Keys() {
		fmt.Fprintf(w, "  %s = %v\n", key, req.Params[key])
	}
}

// Status describes the mailbox for PrintStatus.
type Status struct {
	Mailbox     string
	Occupied    bool
	Fingerprint string
	Pending     string
}

// PrintStatus prints the mailbox path and any request waiting in it.
func PrintStatus(status Status, w io.Writer) {
	fmt.Fprintf(w, "Mailbox: %s\n", status.Mailbox)
	if !status.Occupied {
		fmt.Fprintf(w, "State:   %s\n", success("idle"))
		return
	}
	fmt.Fprintf(w, "State:   %s (%s)\n", warning("pending"), status.Fingerprint)
	pending := strings.TrimSpace(status.Pending)
	if len(pending) > 200 {
		pending = pending[:197] + "..."
	}
	fmt.Fprintf(w, "Request: %s\n", pending)
}
