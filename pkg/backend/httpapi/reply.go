package httpapi

import (
	"strings"

	"github.com/tidwall/gjson"

	backendtypes "healthchat/pkg/backend/types"
)

// replyShape is the top-level form of a /chat/send success body.
type replyShape int

const (
	shapeUnknown replyShape = iota
	shapeString
	shapeObject
	shapeSequence
)

func (s replyShape) String() string {
	switch s {
	case shapeString:
		return "string"
	case shapeObject:
		return "object"
	case shapeSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// replyExtractor pulls a candidate reply out of one recognized shape.
type replyExtractor struct {
	shape replyShape
	name  string
	fn    func(gjson.Result) string
}

// replyExtractors run in priority order; the first non-empty candidate wins.
var replyExtractors = []replyExtractor{
	{shape: shapeString, name: "string", fn: func(r gjson.Result) string { return r.String() }},
	{shape: shapeObject, name: "response", fn: stringField("response")},
	{shape: shapeObject, name: "message", fn: stringField("message")},
	{shape: shapeSequence, name: "0.content.text", fn: stringField("0.content.text")},
	{shape: shapeSequence, name: "0.text", fn: stringField("0.text")},
}

func stringField(path string) func(gjson.Result) string {
	return func(r gjson.Result) string {
		value := r.Get(path)
		if value.Type != gjson.String {
			return ""
		}
		return value.Str
	}
}

// classifyReply parses body and reports which recognized form it takes.
func classifyReply(body []byte) (replyShape, gjson.Result) {
	if !gjson.ValidBytes(body) {
		return shapeUnknown, gjson.Result{}
	}

	result := gjson.ParseBytes(body)
	switch {
	case result.Type == gjson.String:
		return shapeString, result
	case result.IsArray():
		if len(result.Array()) == 0 {
			return shapeUnknown, result
		}
		return shapeSequence, result
	case result.IsObject():
		return shapeObject, result
	default:
		return shapeUnknown, result
	}
}

// extractReply returns the reply text of a success body, the name of the
// extractor that produced it, or a categorized error.
func extractReply(body []byte) (string, string, error) {
	shape, result := classifyReply(body)
	if shape == shapeUnknown {
		return "", "", backendtypes.UnrecognizedReply(describeUnknown(body, result))
	}

	for _, extractor := range replyExtractors {
		if extractor.shape != shape {
			continue
		}
		if text := extractor.fn(result); strings.TrimSpace(text) != "" {
			return text, extractor.name, nil
		}
	}

	return "", "", backendtypes.EmptyReply()
}

func describeUnknown(body []byte, result gjson.Result) string {
	if !gjson.ValidBytes(body) {
		return "body is not valid JSON"
	}
	if result.IsArray() {
		return "empty sequence"
	}

	return "top-level " + strings.ToLower(result.Type.String())
}
