package domain

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// DefaultViewCommand is the script emitted per job by the view command
// when the caller does not supply one. Placeholders: {src} is the job
// data directory, {head} and {tail} split the rendered view path.
const DefaultViewCommand = "mkdir -p {head}\nln -s {src} {head}/{tail}"

// DefaultViewCopyCommand is the copying variant used when the view is
// materialised with copies instead of symlinks.
const DefaultViewCopyCommand = "mkdir -p {head}\ncp -r {src} {head}/{tail}"

// ViewTemplate maps job parameters onto a human-navigable path, e.g.
// "a/{a}/b/{b}". Each {name} placeholder is replaced with the job's
// value for that parameter.
type ViewTemplate struct {
	raw          string
	placeholders []string
}

// ParseViewTemplate validates brace syntax and extracts placeholders.
func ParseViewTemplate(raw string) (*ViewTemplate, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty view template", ErrInvalidInput)
	}
	var placeholders []string
	rest := raw
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("%w: unmatched '}' in view template %q", ErrInvalidInput, raw)
			}
			break
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return nil, fmt.Errorf("%w: unmatched '{' in view template %q", ErrInvalidInput, raw)
		}
		name := rest[open+1 : open+closing]
		if name == "" {
			return nil, fmt.Errorf("%w: empty placeholder in view template %q", ErrInvalidInput, raw)
		}
		placeholders = append(placeholders, name)
		rest = rest[open+closing+1:]
	}
	if len(placeholders) == 0 {
		return nil, fmt.Errorf("%w: view template %q has no placeholders", ErrInvalidInput, raw)
	}
	return &ViewTemplate{raw: raw, placeholders: placeholders}, nil
}

// DefaultViewTemplate builds the template that lists every parameter key
// in sorted order: keys a and b become "a/{a}/b/{b}".
func DefaultViewTemplate(keys []string) (*ViewTemplate, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no parameter keys for default view", ErrInvalidInput)
	}
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	segments := make([]string, 0, len(sorted)*2)
	for _, key := range sorted {
		segments = append(segments, key, "{"+key+"}")
	}
	return ParseViewTemplate(strings.Join(segments, "/"))
}

// Placeholders returns the parameter names the template references.
func (t *ViewTemplate) Placeholders() []string {
	return t.placeholders
}

// String returns the raw template.
func (t *ViewTemplate) String() string {
	return t.raw
}

// Render substitutes the job's parameter values into the template.
// A referenced parameter missing from the job is an error; collisions
// between jobs are the caller's concern.
func (t *ViewTemplate) Render(params Parameters) (string, error) {
	rendered := t.raw
	for _, name := range t.placeholders {
		value, ok := params[name]
		if !ok {
			return "", fmt.Errorf("%w: view template references parameter %q not present in job", ErrInvalidInput, name)
		}
		rendered = strings.ReplaceAll(rendered, "{"+name+"}", formatParamValue(value))
	}
	return rendered, nil
}

// formatParamValue renders a parameter value as a path segment.
// Integral floats print without the trailing ".0" JSON decoding gives
// them, so a parameter 1 names the same directory whether it arrived as
// an int or via JSON.
func formatParamValue(v any) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}

// RenderViewCommand expands the per-job command template of a view
// script. The rendered view path splits into {head} (directory part)
// and {tail} (final element); {src} is the job data directory.
func RenderViewCommand(cmdTemplate, src, viewPath string) string {
	head, tail := path.Split(viewPath)
	head = strings.TrimSuffix(head, "/")
	if head == "" {
		head = "."
	}
	out := strings.ReplaceAll(cmdTemplate, "{src}", src)
	out = strings.ReplaceAll(out, "{head}", head)
	out = strings.ReplaceAll(out, "{tail}", tail)
	return out
}
