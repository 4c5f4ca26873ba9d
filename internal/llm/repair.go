package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON signals that no parseable JSON value could be recovered from the
// model output. Callers must treat this as a hard failure for the call, not
// retry silently with the same input.
var ErrNoJSON = errors.New("no JSON found in model output")

// fenceRe matches a response that is one whole fenced code block, with an
// optional language tag.
var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\n(.*?)\\n```\\s*$")

// RepairJSON recovers a JSON value from noisy model output. Models sometimes
// add prose, nest explanations, or wrap answers in markdown fences despite
// explicit instructions not to, so parsing is attempted in layers:
//
//  1. strip a single wrapping fenced code block,
//  2. direct parse when the text already starts with '{' or '[',
//  3. bracket-depth scan from the first opening delimiter, parsing each
//     candidate substring where depth returns to zero,
//  4. trim everything outside the outermost delimiter pair and parse once more.
//
// When every layer fails it returns ErrNoJSON.
func RepairJSON(text string) (interface{}, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrNoJSON
	}

	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		trimmed = strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if v, err := parseJSON(trimmed); err == nil {
			return v, nil
		}
	}

	if v, ok := scanBalanced(trimmed); ok {
		return v, nil
	}

	if v, ok := trimToOutermost(trimmed); ok {
		return v, nil
	}

	return nil, ErrNoJSON
}

// scanBalanced finds the first opening delimiter and walks forward tracking
// nesting depth of that delimiter type, trying a parse each time depth comes
// back to zero. The count is naive about delimiters inside string literals,
// which is why parsing continues past failed candidates.
func scanBalanced(text string) (interface{}, bool) {
	first := firstDelimiter(text)
	if first < 0 {
		return nil, false
	}

	candidate := text[first:]
	open := candidate[0]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	for i := 0; i < len(candidate); i++ {
		switch candidate[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				if v, err := parseJSON(candidate[:i+1]); err == nil {
					return v, true
				}
			}
		}
	}

	return nil, false
}

// trimToOutermost drops everything before the first opening delimiter and
// after the last closing delimiter of the matching type.
func trimToOutermost(text string) (interface{}, bool) {
	first := firstDelimiter(text)
	if first < 0 {
		return nil, false
	}

	open := text[first]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	last := strings.LastIndexByte(text, close)
	if last <= first {
		return nil, false
	}

	if v, err := parseJSON(text[first : last+1]); err == nil {
		return v, true
	}

	return nil, false
}

// firstDelimiter returns the index of the first '{' or '[', whichever appears
// first, or -1.
func firstDelimiter(text string) int {
	obj := strings.IndexByte(text, '{')
	arr := strings.IndexByte(text, '[')
	switch {
	case obj < 0:
		return arr
	case arr < 0:
		return obj
	case arr < obj:
		return arr
	default:
		return obj
	}
}

func parseJSON(s string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}
