package orchestrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

// Parameter expressions reference dependency outputs declared on the hop:
// "$search.total_results", "$search.results[0]", or arithmetic over them
// ("$search.total_results - 1"). A plain string without '$' passes through
// untouched.
var refPattern = regexp.MustCompile(`\$([a-zA-Z0-9_]+)((?:\.[a-zA-Z0-9_]+|\[[0-9]+\])*)`)

// resolveParamValue resolves a single declared parameter value. Non-string
// values and strings without references to a declared dependency pass
// through unchanged. A string that is exactly one reference yields the
// referenced value as-is (any type); anything else is evaluated as a
// govaluate expression over the referenced scalars.
func resolveParamValue(value any, dependencyOutputs map[string]any) (any, error) {
	text, ok := value.(string)
	if !ok || !strings.Contains(text, "$") {
		return value, nil
	}

	matches := refPattern.FindAllString(text, -1)
	var refs []string
	for _, match := range matches {
		if _, ok := dependencyOutputs[hopNameOf(match)]; ok {
			refs = append(refs, match)
		}
	}
	// '$' tokens that name no declared dependency are literal text, not
	// references. "what is $100 in euros" searches as written.
	if len(refs) == 0 {
		return value, nil
	}

	// A bare reference returns the raw value, which may be a map or slice.
	if len(refs) == 1 && refs[0] == strings.TrimSpace(text) {
		resolved, err := resolveReference(strings.TrimSpace(text), dependencyOutputs)
		if err != nil {
			return nil, err
		}
		return resolved, nil
	}

	variables := make(map[string]any)
	var resolveErr error
	replaced := refPattern.ReplaceAllStringFunc(text, func(match string) string {
		if _, ok := dependencyOutputs[hopNameOf(match)]; !ok {
			return match
		}
		resolved, err := resolveReference(match, dependencyOutputs)
		if err != nil {
			if resolveErr == nil {
				resolveErr = err
			}
			return match
		}
		name := variableName(match)
		variables[name] = resolved
		return name
	})
	if resolveErr != nil {
		return nil, resolveErr
	}

	expr, err := govaluate.NewEvaluableExpression(replaced)
	if err != nil {
		return nil, fmt.Errorf("parse expression %q: %w", text, err)
	}
	result, err := expr.Evaluate(variables)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", text, err)
	}
	return result, nil
}

// resolveReference walks a "$hop.field[idx]" reference through the
// dependency outputs map.
func resolveReference(ref string, dependencyOutputs map[string]any) (any, error) {
	groups := refPattern.FindStringSubmatch(ref)
	if groups == nil {
		return nil, fmt.Errorf("malformed reference %q", ref)
	}
	hopName := groups[1]
	accessors := groups[2]

	value, ok := dependencyOutputs[hopName]
	if !ok {
		return nil, fmt.Errorf("reference %q names a hop not in this hop's dependencies", ref)
	}

	accessorPattern := regexp.MustCompile(`\.[a-zA-Z0-9_]+|\[[0-9]+\]`)
	for _, accessor := range accessorPattern.FindAllString(accessors, -1) {
		switch {
		case strings.HasPrefix(accessor, "."):
			field := accessor[1:]
			m, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("reference %q: cannot access field %q on %T", ref, field, value)
			}
			value, ok = m[field]
			if !ok {
				return nil, fmt.Errorf("reference %q: field %q not present", ref, field)
			}
		default:
			idx, err := strconv.Atoi(accessor[1 : len(accessor)-1])
			if err != nil {
				return nil, fmt.Errorf("reference %q: bad index %q", ref, accessor)
			}
			arr, ok := value.([]any)
			if !ok {
				return nil, fmt.Errorf("reference %q: cannot index %T", ref, value)
			}
			if idx < 0 || idx >= len(arr) {
				return nil, fmt.Errorf("reference %q: index %d out of range (len %d)", ref, idx, len(arr))
			}
			value = arr[idx]
		}
	}
	return value, nil
}

func hopNameOf(ref string) string {
	groups := refPattern.FindStringSubmatch(ref)
	if groups == nil {
		return ""
	}
	return groups[1]
}

func variableName(ref string) string {
	name := strings.TrimPrefix(ref, "$")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, "[", "_")
	name = strings.ReplaceAll(name, "]", "")
	return name
}
