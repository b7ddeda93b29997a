package llm

import (
	"encoding/json"
	"net/http"
)

// ResultKind tags how a completion exchange ended.
type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultUpstreamFailure
	ResultSchemaMismatch
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultUpstreamFailure:
		return "upstream_failure"
	case ResultSchemaMismatch:
		return "schema_mismatch"
	default:
		return "unknown"
	}
}

// Result is the classified outcome of one completion exchange.
type Result struct {
	Kind       ResultKind
	Text       string
	StatusCode int
	Body       string
}

// Unwrap converts the result into the (text, error) pair returned by Caller.
func (r Result) Unwrap(provider string) (string, error) {
	switch r.Kind {
	case ResultOK:
		return r.Text, nil
	case ResultUpstreamFailure:
		return "", &UpstreamError{Provider: provider, StatusCode: r.StatusCode, Body: r.Body}
	default:
		return "", &MalformedResponseError{Provider: provider, Body: r.Body}
	}
}

// chatEnvelope is the OpenAI-compatible response shape. Pointers let a
// missing or null content be told apart from an empty reply.
type chatEnvelope struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// classifyChatResponse maps a raw HTTP exchange onto a Result.
func classifyChatResponse(statusCode int, body []byte) Result {
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return Result{Kind: ResultUpstreamFailure, StatusCode: statusCode, Body: string(body)}
	}

	var env chatEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Result{Kind: ResultSchemaMismatch, StatusCode: statusCode, Body: string(body)}
	}
	if len(env.Choices) == 0 || env.Choices[0].Message == nil || env.Choices[0].Message.Content == nil {
		return Result{Kind: ResultSchemaMismatch, StatusCode: statusCode, Body: string(body)}
	}

	return Result{Kind: ResultOK, Text: *env.Choices[0].Message.Content, StatusCode: statusCode}
}
