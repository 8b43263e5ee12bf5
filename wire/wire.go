// Package wire implements the two text encodings used throughout
// Mail/HTTPS: attribute lists ("k=v; k=v") carried inside header values,
// and field blocks ("Key: value" lines) used by profiles and envelope
// content headers.
package wire

import "strings"

// Pair is one key/value entry. Encoders keep the order pairs are given in.
type Pair struct {
	Key   string
	Value string
}

// P is shorthand for constructing a Pair.
func P(key, value string) Pair {
	return Pair{Key: key, Value: value}
}

// Attrs renders pairs as "k=v; k=v".
func Attrs(pairs ...Pair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.Key + "=" + p.Value
	}
	return strings.Join(parts, "; ")
}

// ParseAttrs parses an attribute list. Keys are lower-cased; keys and values
// are trimmed. Segments without '=' and empty segments are ignored. When a
// key repeats, the last value wins.
func ParseAttrs(text string) map[string]string {
	out := make(map[string]string)
	for _, segment := range strings.Split(text, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(segment), "=")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// Fields renders pairs as "Key: value" lines joined by '\n'.
func Fields(pairs ...Pair) string {
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = p.Key + ": " + p.Value
	}
	return strings.Join(lines, "\n")
}

// ParseFields parses a field block. Only lines containing ':' are
// considered, lines starting with '#' are comments. Keys are lower-cased and
// split at the first ':'; both sides are trimmed.
func ParseFields(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// SplitList splits a comma-separated list, trimming items and dropping
// empty ones.
func SplitList(text string) []string {
	var out []string
	for _, item := range strings.Split(text, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SplitLines splits text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// YesNo renders a boolean the way profile and contact documents do.
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
