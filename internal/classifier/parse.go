package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Analysis is a classifier response that passed type validation
type Analysis struct {
	Category       string
	RelevanceScore float64
	AccessStatus   string
	Summary        string
	// Raw holds every field of the decoded object
	Raw map[string]any
}

// ParseError describes a classifier response that could not be used
type ParseError struct {
	Reason   string
	Response string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier response: %s: %v", e.Reason, e.Err)
	}
	return "classifier response: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	fenceOpen  = regexp.MustCompile("^```[a-zA-Z]*\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// ParseResponse validates the classifier's text as a JSON analysis object.
// Markdown code fences are stripped first. "access" is accepted in place of
// "access_status". Any failure is a *ParseError.
func ParseResponse(text string) (Analysis, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return Analysis{}, &ParseError{Reason: "empty response", Response: text}
	}

	raw, err := decodeObject(cleaned)
	if err != nil {
		return Analysis{}, &ParseError{Reason: "invalid json", Response: text, Err: err}
	}

	if _, ok := raw["access_status"]; !ok {
		if v, ok := raw["access"]; ok {
			raw["access_status"] = v
		}
	}

	var a Analysis
	var problems []string
	if a.Category, err = stringField(raw, "category"); err != nil {
		problems = append(problems, err.Error())
	}
	if a.RelevanceScore, err = numberField(raw, "relevance_score"); err != nil {
		problems = append(problems, err.Error())
	}
	if a.AccessStatus, err = stringField(raw, "access_status"); err != nil {
		problems = append(problems, err.Error())
	}
	if a.Summary, err = stringField(raw, "summary"); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return Analysis{}, &ParseError{Reason: strings.Join(problems, "; "), Response: text}
	}

	a.Raw = raw
	return a, nil
}

func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpen.ReplaceAllString(cleaned, "")
		cleaned = fenceClose.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}

// decodeObject decodes a JSON object, retrying on the outermost braces when
// the model wrapped the object in prose.
func decodeObject(s string) (map[string]any, error) {
	var raw map[string]any
	err := json.Unmarshal([]byte(s), &raw)
	if err == nil {
		if raw == nil {
			return nil, errors.New("not an object")
		}
		return raw, nil
	}

	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, err
	}
	var inner map[string]any
	if json.Unmarshal([]byte(s[start:end+1]), &inner) != nil || inner == nil {
		return nil, err
	}
	return inner, nil
}

func stringField(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", fmt.Errorf("missing %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q is not a string", key)
	}
	return s, nil
}

func numberField(raw map[string]any, key string) (float64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("missing %q", key)
	}
	n, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%q is not a number", key)
	}
	return n, nil
}
