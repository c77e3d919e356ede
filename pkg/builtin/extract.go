package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"localagent/pkg/capability"
	"localagent/pkg/extractors"
)

var (
	attributeParam = capability.Optional("attribute", "attribute to read instead of the text")
	allParam       = capability.Optional("all", "return every match, default first only")
	resultParam    = capability.Optional("output", "file that receives the matches as JSON")
)

func extractCapabilities(deps Deps) []capability.Descriptor {
	extract := extractHandlers{deps: deps}
	return []capability.Descriptor{
		describe("extract_html", "Extract values from an HTML file by CSS selector",
			capability.Signature{pathParam, capability.Required("selector", "CSS selector"), attributeParam, allParam, resultParam},
			extract.html),
		describe("extract_xml", "Extract values from an XML file by XPath",
			capability.Signature{pathParam, capability.Required("xpath", "XPath expression"), attributeParam, allParam, resultParam},
			extract.xml),
		describe("extract_json", "Extract values from a JSON or JSONC file by path",
			capability.Signature{pathParam, capability.Required("json_path", "dotted path such as $.items[0].name"), resultParam},
			extract.json),
		describe("extract_regex", "Extract regular expression matches from a text file",
			capability.Signature{
				pathParam,
				capability.Required("pattern", "regular expression"),
				capability.Optional("group", "capture group, default 0"),
				allParam,
				resultParam,
			},
			extract.regex),
	}
}

type extractHandlers struct {
	deps Deps
}

func (h extractHandlers) html(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	selector, err := params.String("selector")
	if err != nil {
		return err
	}
	options, err := extractOptions(params)
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open '%s': %w", path, err)
	}
	defer file.Close()
	values, err := extractors.HTML(file, selector, options)
	if err != nil {
		return err
	}
	return h.report(ctx, params, path, values)
}

func (h extractHandlers) xml(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	xpath, err := params.String("xpath")
	if err != nil {
		return err
	}
	options, err := extractOptions(params)
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open '%s': %w", path, err)
	}
	defer file.Close()
	values, err := extractors.XML(file, xpath, options)
	if err != nil {
		return err
	}
	return h.report(ctx, params, path, values)
}

func (h extractHandlers) json(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	jsonPath, err := params.String("json_path")
	if err != nil {
		return err
	}
	document, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read '%s': %w", path, err)
	}
	values, err := extractors.JSON(document, jsonPath)
	if err != nil {
		return err
	}
	return h.report(ctx, params, path, values)
}

func (h extractHandlers) regex(ctx context.Context, params capability.Params) error {
	path, err := params.String("path")
	if err != nil {
		return err
	}
	pattern, err := params.String("pattern")
	if err != nil {
		return err
	}
	group, err := params.IntOr("group", 0)
	if err != nil {
		return err
	}
	all, err := params.BoolOr("all", false)
	if err != nil {
		return err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read '%s': %w", path, err)
	}
	values, err := extractors.Regex(string(text), pattern, group, all)
	if err != nil {
		return err
	}
	return h.report(ctx, params, path, values)
}

func extractOptions(params capability.Params) (extractors.Options, error) {
	attribute, err := params.StringOr("attribute", "")
	if err != nil {
		return extractors.Options{}, err
	}
	all, err := params.BoolOr("all", false)
	if err != nil {
		return extractors.Options{}, err
	}
	return extractors.Options{Attribute: attribute, All: all}, nil
}

// report logs the extracted values and, when output is set, writes them
// there as a JSON array.
func (h extractHandlers) report(ctx context.Context, params capability.Params, path string, values any) error {
	output, err := params.StringOr("output", "")
	if err != nil {
		return err
	}
	if output != "" {
		encoded, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return fmt.Errorf("encode matches: %w", err)
		}
		if err := os.WriteFile(output, append(encoded, '\n'), 0o644); err != nil {
			return fmt.Errorf("write matches to '%s': %w", output, err)
		}
	}
	h.deps.Logger.InfoContext(ctx, "Extracted values", "path", path, "values", values, "output", output)
	return nil
}
