// Package extract pulls delimited content out of model responses.
package extract

import (
	"errors"
	"fmt"
	"strings"
)

const fence = "```"

var ErrNoTag = errors.New("no data format or tag provided to extract data from the response")

type TagNotFoundError struct {
	Tag string
}

func (e *TagNotFoundError) Error() string {
	return fmt.Sprintf("tag %q not found in the response", e.Tag)
}

// Data returns the text between the last <tag> in response and the first
// </tag> after it, or the rest of the response when it is never closed.
// A fenced block inside that text is unwrapped to its content.
func Data(response, tag string) (string, error) {
	if tag == "" {
		return "", ErrNoTag
	}
	response = strings.TrimSpace(response)

	open := "<" + tag + ">"
	i := strings.LastIndex(response, open)
	if i == -1 {
		return "", &TagNotFoundError{Tag: tag}
	}
	s := response[i+len(open):]
	if j := strings.Index(s, "</"+tag+">"); j != -1 {
		s = s[:j]
	}
	s = strings.TrimSpace(s)

	s = strings.ReplaceAll(s, fence+"csv", fence)
	return strings.TrimSpace(firstFence(s)), nil
}

// firstFence returns the body of the first fenced block in s, or s unchanged
// when there is none. An unclosed fence runs to the end of s.
func firstFence(s string) string {
	i := strings.Index(s, fence)
	if i == -1 {
		return s
	}
	content := s[i+len(fence):]
	if j := strings.Index(content, fence); j != -1 {
		content = content[:j]
	}
	if nl := strings.IndexByte(content, '\n'); nl != -1 {
		if _, ok := fenceLabels[strings.ToLower(strings.TrimSpace(content[:nl]))]; ok {
			content = content[nl+1:]
		}
	}
	return content
}

// fenceLabels are info strings dropped from the fence line. Anything else on
// that line is treated as data.
var fenceLabels = map[string]struct{}{
	"json": {}, "jsonl": {}, "csv": {}, "tsv": {}, "txt": {}, "text": {}, "plaintext": {},
	"markdown": {}, "md": {}, "yaml": {}, "yml": {}, "xml": {}, "html": {},
	"sql": {}, "python": {}, "py": {}, "go": {}, "javascript": {}, "js": {},
	"typescript": {}, "ts": {}, "bash": {}, "sh": {}, "shell": {},
}
