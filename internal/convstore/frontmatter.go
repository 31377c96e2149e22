package convstore

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelim = "---"

// splitFrontMatter separates a leading "---\n...\n---\n" YAML block from the
// rest of the document, normalizing CRLF to LF first (spec §4.1: "normalized
// line endings are used").
func splitFrontMatter(raw []byte) (yamlBlock string, body string, err error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.TrimLeft(text, "\n")

	if !strings.HasPrefix(text, frontMatterDelim) {
		return "", "", fmt.Errorf("%w: missing front-matter delimiter", ErrMalformed)
	}

	rest := text[len(frontMatterDelim):]
	rest = strings.TrimPrefix(rest, "\n")

	idx := strings.Index(rest, "\n"+frontMatterDelim)
	if idx == -1 {
		return "", "", fmt.Errorf("%w: unterminated front-matter block", ErrMalformed)
	}

	yamlBlock = rest[:idx]
	after := rest[idx+len("\n"+frontMatterDelim):]
	after = strings.TrimPrefix(after, "\n")
	return yamlBlock, after, nil
}

func renderFrontMatter(v any, body string) ([]byte, error) {
	yamlBytes, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("convstore: marshal front-matter: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(frontMatterDelim)
	sb.WriteString("\n")
	sb.Write(yamlBytes)
	sb.WriteString(frontMatterDelim)
	sb.WriteString("\n")
	if body != "" {
		sb.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			sb.WriteString("\n")
		}
	}
	return []byte(sb.String()), nil
}
