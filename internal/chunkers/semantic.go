package chunkers

import (
	"strings"
	"unicode/utf8"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 200
)

// DefaultSeparators orders split points from coarsest to finest. The
// empty string means "cut anywhere" and must stay last.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// SemanticChunker recursively splits prose on the coarsest separator
// present, then greedily merges the pieces back into chunks of at most
// chunkSize characters, carrying a tail of overlap characters between
// neighbouring chunks.
type SemanticChunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSemanticChunker creates a splitter. Non-positive sizes fall back
// to the defaults; an overlap at or above the chunk size is reduced to
// a quarter of it so splitting always makes progress.
func NewSemanticChunker(chunkSize, overlap int) *SemanticChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &SemanticChunker{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
}

// Chunk splits every prose document whose content exceeds the chunk
// size. Table units pass through untouched; small prose units pass
// through with chunk metadata stamped on.
func (c *SemanticChunker) Chunk(docs []domain.Document) []domain.Document {
	var out []domain.Document
	for _, doc := range docs {
		if doc.MetaBool(domain.MetaHasTables) {
			out = append(out, doc)
			continue
		}
		pieces := c.SplitText(doc.Content)
		if len(pieces) == 0 {
			pieces = []string{doc.Content}
		}
		for i, piece := range pieces {
			md := doc.CloneMetadata()
			md[domain.MetaChunkIndex] = i
			md[domain.MetaTotalChunks] = len(pieces)
			md[domain.MetaChunkSize] = utf8.RuneCountInString(piece)
			out = append(out, domain.Document{Content: piece, Metadata: md})
		}
	}
	return out
}

// SplitText splits text into chunks of at most the configured size.
// Text already within the limit is returned as a single chunk.
func (c *SemanticChunker) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= c.chunkSize {
		return []string{text}
	}
	return c.split(text, c.separators)
}

func (c *SemanticChunker) split(text string, seps []string) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	sep := ""
	var finer []string
	for i, s := range seps {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			sep = s
			finer = seps[i+1:]
			break
		}
	}
	if sep == "" {
		return c.hardSplit(text)
	}

	var units []string
	for _, part := range strings.Split(text, sep) {
		if part == "" {
			continue
		}
		if len(part) > c.chunkSize {
			units = append(units, c.split(part, finer)...)
		} else {
			units = append(units, part)
		}
	}
	return c.merge(units, sep)
}

// merge joins consecutive units with the separator up to the chunk
// size. When a chunk closes, trailing units whose combined length fits
// the overlap are retained to start the next chunk.
func (c *SemanticChunker) merge(units []string, sep string) []string {
	var chunks []string
	var window []string
	size := 0
	sepLen := len(sep)

	for _, u := range units {
		add := len(u)
		if len(window) > 0 {
			add += sepLen
		}
		if size+add > c.chunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, sep))
			for len(window) > 0 && (size > c.overlap || size+add > c.chunkSize) {
				size -= len(window[0])
				if len(window) > 1 {
					size -= sepLen
				}
				window = window[1:]
			}
			add = len(u)
			if len(window) > 0 {
				add += sepLen
			}
		}
		window = append(window, u)
		size += add
	}

	if len(window) > 0 {
		if chunk := strings.Join(window, sep); strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// hardSplit cuts text with no usable separators into fixed windows,
// stepping back by the overlap, without cutting UTF-8 sequences.
func (c *SemanticChunker) hardSplit(text string) []string {
	var out []string
	start := 0
	for start < len(text) {
		end := start + c.chunkSize
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
		out = append(out, text[start:end])

		next := end - c.overlap
		if next <= start {
			next = end
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
	return out
}
