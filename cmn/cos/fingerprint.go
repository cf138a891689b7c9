package cos

import (
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Fingerprint computes the deterministic SHA-256 fingerprint of a semantic
// content map per spec §4.1: canonical JSON, sorted keys, trimmed string
// fields, UTF-8, no timestamps or mutable ids. Callers build the map for
// their item kind (notebook aggregate, page text, page source blob, todo);
// the function itself is kind-agnostic — it just canonicalizes and hashes.
func Fingerprint(content map[string]any) string {
	canon := canonicalize(content)
	return SHA256Hex([]byte(canon))
}

// FingerprintBytes is the "page source blob" case from §4.1: the fingerprint
// is simply SHA-256 of the raw bytes, no JSON envelope.
func FingerprintBytes(b []byte) string {
	return SHA256Hex(b)
}

var canonAPI = jsoniter.Config{SortMapKeys: true}.Froze()

// canonicalize produces a stable string representation: trims every string
// value (including nested), sorts map keys (jsoniter's SortMapKeys covers
// top-level and nested maps), and renders ordered slices as JSON arrays so
// two implementations handed the same semantic content always produce byte
// identical output.
func canonicalize(v any) string {
	trimmed := trimStrings(v)
	b, err := canonAPI.Marshal(trimmed)
	if err != nil {
		// Marshaling a plain map[string]any built from trusted internal
		// fields cannot fail under jsoniter; treat it as unreachable.
		return ""
	}
	return string(b)
}

func trimStrings(v any) any {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = trimStrings(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = trimStrings(e)
		}
		return out
	default:
		return t
	}
}

// PageTextContent builds the §4.1 "Page text" fingerprint input.
func PageTextContent(notebookUUID string, pageNumber int, text string) map[string]any {
	return map[string]any{
		"notebook_uuid": notebookUUID,
		"page_number":   pageNumber,
		"trimmed_text":  strings.TrimSpace(text),
	}
}

// NotebookAggregateContent builds the §4.1 "Notebook (aggregate)" input.
// pages must already be ordered by page_number by the caller.
type PageSnapshot struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"ocr_text"`
	Confidence float64 `json:"confidence"`
}

func NotebookAggregateContent(title, documentType string, pages []PageSnapshot) map[string]any {
	normalized := make([]map[string]any, len(pages))
	for i, p := range pages {
		normalized[i] = map[string]any{
			"page_number": p.PageNumber,
			"ocr_text":    strings.TrimSpace(p.Text),
			"confidence":  p.Confidence,
		}
	}
	return map[string]any{
		"title":         title,
		"document_type": documentType,
		"page_count":    len(pages),
		"pages":         normalized,
	}
}

// TodoContent builds the §4.1 "Todo / highlight" input; completion status is
// deliberately excluded so toggling it doesn't perturb the hash.
func TodoContent(notebookUUID string, pageNumber int, normalizedText string) map[string]any {
	return map[string]any{
		"notebook_uuid":   notebookUUID,
		"page_number":     pageNumber,
		"normalized_text": strings.TrimSpace(normalizedText),
	}
}
