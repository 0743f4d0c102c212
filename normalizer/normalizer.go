// Package normalizer turns the loosely specified responses of the remote
// inference service into a label and a confidence score.
//
// The remote service has shipped several response shapes over time, so the
// body is run through an ordered list of extractors and the first one that
// finds a label wins.
package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/loiht2/ai-vision-portal/models"
)

const (
	// DefaultConfidence is reported when a label arrives without a score
	DefaultConfidence = 0.99

	// MaxTextLabel is the longest plain-text body accepted as a label
	MaxTextLabel = 50
)

// Result is the normalized outcome of one inference call
type Result struct {
	Label      string
	Confidence float64
	OK         bool
	Err        error // *models.RemoteStatusError or *models.NormalizationError when !OK
}

// ErrorMessage returns the error text, or "" on success
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type extraction struct {
	label         string
	confidence    float64
	hasConfidence bool
}

type extractor func(body any) (extraction, bool)

// extractors are tried in order; later ones only run when earlier ones found no label
var extractors = []extractor{
	fromPredictionList,
	fromKnownKeys,
	fromBareScalar,
}

// Normalize maps a raw HTTP status and body to a Result. It never panics on malformed input.
func Normalize(statusCode int, body []byte) Result {
	text := strings.TrimSpace(string(body))

	if statusCode < 200 || statusCode > 299 {
		return failure(&models.RemoteStatusError{
			StatusCode: statusCode,
			Body:       models.Excerpt(text, models.MaxExcerpt),
		})
	}

	decoded, decodeErr := decode(body)
	if decodeErr == nil && readable(decoded) {
		for _, extract := range extractors {
			ex, ok := extract(decoded)
			if !ok {
				continue
			}
			if !ex.hasConfidence {
				ex.confidence = confidenceOf(decoded, "confidence", "score")
			}
			return Result{Label: ex.label, Confidence: ex.confidence, OK: true}
		}
		if _, isObject := decoded.(map[string]any); isObject {
			echoed, _ := json.Marshal(decoded)
			return failure(&models.NormalizationError{
				Reason: "connected, but couldn't find a recognizable prediction field in the response",
				Body:   models.Excerpt(string(echoed), models.MaxExcerpt),
			})
		}
	}

	// plain text, or JSON that no extractor can read
	if text != "" && len([]rune(text)) <= MaxTextLabel {
		return Result{Label: strings.ToValidUTF8(text, "\uFFFD"), OK: true}
	}
	return failure(&models.NormalizationError{
		Reason: "received a non-JSON response from the API",
		Body:   models.Excerpt(text, models.MaxExcerpt),
		Err:    decodeErr,
	})
}

func failure(err error) Result {
	return Result{OK: false, Err: err}
}

func decode(body []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level JSON value")
	}
	return v, nil
}

// readable reports whether any extractor can look inside v
func readable(v any) bool {
	switch v.(type) {
	case map[string]any, string:
		return true
	}
	return false
}

func fromPredictionList(body any) (extraction, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return extraction{}, false
	}
	list, ok := obj["predictions"].([]any)
	if !ok || len(list) == 0 {
		return extraction{}, false
	}
	// the first element carries the label and confidence
	first, ok := list[0].(map[string]any)
	if !ok {
		return extraction{}, false
	}

	labels := make([]string, 0, len(list))
	for _, item := range list {
		elem, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if label, ok := firstPresent(elem, "class_name", "label", "prediction"); ok {
			labels = append(labels, label)
		}
	}

	label, ok := firstPresent(first, "class_name", "label", "prediction")
	if len(list) > 1 && len(labels) > 0 {
		label, ok = strings.Join(labels, ", "), true
	}
	if !ok {
		return extraction{}, false
	}
	return extraction{
		label:         label,
		confidence:    confidenceOf(first, "confidence"),
		hasConfidence: true,
	}, true
}

func fromKnownKeys(body any) (extraction, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return extraction{}, false
	}
	label, ok := firstPresent(obj, "prediction", "label", "result", "class")
	return extraction{label: label}, ok
}

func fromBareScalar(body any) (extraction, bool) {
	switch v := body.(type) {
	case string:
		if v == "" {
			return extraction{}, false
		}
		return extraction{label: v}, true
	case map[string]any:
		if len(v) != 1 {
			return extraction{}, false
		}
		for _, value := range v {
			if !present(value) {
				return extraction{}, false
			}
			return extraction{label: stringify(value)}, true
		}
	}
	return extraction{}, false
}

// firstPresent returns the first key holding a non-empty value, stringified
func firstPresent(obj map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && present(v) {
			return stringify(v), true
		}
	}
	return "", false
}

// confidenceOf returns the first usable number among keys, or DefaultConfidence
func confidenceOf(body any, keys ...string) float64 {
	obj, ok := body.(map[string]any)
	if !ok {
		return DefaultConfidence
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || !present(v) {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return DefaultConfidence
}

// present treats null, "", false, 0 and empty containers as missing
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
