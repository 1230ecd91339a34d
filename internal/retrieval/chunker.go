package retrieval

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"quiz-pipeline-service/internal/domain"
)

const (
	minWindowChunk  = 50
	minSectionChunk = 30
)

// Document is one raw text document handed over by a Source.
type Document struct {
	Name string
	Text string
}

// Chunker splits a document into indexable passages.
type Chunker interface {
	Chunk(doc Document) []domain.DocumentChunk
}

// FixedWindowChunker cuts text into windows of Size runes that overlap by
// Overlap runes. Windows shorter than 50 runes after trimming are dropped.
type FixedWindowChunker struct {
	Size    int
	Overlap int
}

func (c FixedWindowChunker) Chunk(doc Document) []domain.DocumentChunk {
	return label(doc.Name, c.split(doc.Text))
}

func (c FixedWindowChunker) split(text string) []string {
	size := c.Size
	if size <= 0 {
		size = 300
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		piece := strings.TrimSpace(string(runes[start:end]))
		if utf8.RuneCountInString(piece) >= minWindowChunk {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return out
}

// StructuralChunker splits curriculum style text at heading lines and
// whenever the section in progress grows past Size runes.
type StructuralChunker struct {
	Size int
}

func (c StructuralChunker) Chunk(doc Document) []domain.DocumentChunk {
	return label(doc.Name, c.split(doc.Text))
}

func (c StructuralChunker) split(text string) []string {
	size := c.Size
	if size <= 0 {
		size = 400
	}

	var (
		out   []string
		cur   strings.Builder
		runes int
	)
	flush := func() {
		if piece := strings.TrimSpace(cur.String()); utf8.RuneCountInString(piece) > minSectionChunk {
			out = append(out, piece)
		}
		cur.Reset()
		runes = 0
	}
	write := func(line string) {
		cur.WriteString(line)
		cur.WriteByte('\n')
		runes += utf8.RuneCountInString(line) + 1
	}

	for _, line := range strings.Split(text, "\n") {
		if isHeading(line) && cur.Len() > 0 {
			flush()
			write(line)
			continue
		}
		write(line)
		if runes > size {
			flush()
		}
	}
	flush()
	return out
}

func isHeading(line string) bool {
	return strings.Contains(line, "====") || strings.Contains(line, "----") || strings.HasPrefix(line, "#")
}

// label numbers chunks under the full source name, so budget.md and
// budget.txt never share ids.
func label(source string, texts []string) []domain.DocumentChunk {
	chunks := make([]domain.DocumentChunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.DocumentChunk{
			ID:      fmt.Sprintf("%s_%d", source, i),
			Content: text,
			Source:  source,
			Index:   i,
		})
	}
	return chunks
}
