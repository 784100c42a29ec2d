package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SemanticChunkWithOverrides splits text the way SemanticChunk does, but
// lets the caller override the byte budget and overlap for this call
// only (e.g. from per-indexing-pass IndexingConfig). A zero or negative
// chunkSize override is clamped to 100 bytes so a misconfigured override
// can't produce unbounded chunks.
func SemanticChunkWithOverrides(text, ext string, chunkSize, chunkOverlap *int) []string {
	cfg := GetChunkConfig(ext)
	if chunkSize != nil {
		size := *chunkSize
		if size < 100 {
			size = 100
		}
		cfg.MaxBytes = size
	}
	if chunkOverlap != nil {
		cfg.OverlapBytes = *chunkOverlap
	}

	pattern := getSemanticPattern(ext)
	if pattern == nil {
		return ChunkWithOverlap(text, cfg.MaxBytes, cfg.OverlapBytes)
	}
	return chunkWithSemanticConfig(text, cfg, pattern)
}

// SemanticChunk splits text into chunks using the size class and split
// pattern appropriate for ext, falling back to a byte-window split for
// extensions with no known pattern.
func SemanticChunk(text, ext string) []string {
	return SemanticChunkWithOverrides(text, ext, nil, nil)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func chunkWithSemanticConfig(text string, cfg Config, pattern *regexp.Regexp) []string {
	splitPoints := []int{0}
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		pos := loc[0]
		if pos > 0 {
			newlinePos := pos
			if i := strings.IndexByte(text[pos:], '\n'); i >= 0 {
				newlinePos = pos + i + 1
			}
			if newlinePos > splitPoints[len(splitPoints)-1] {
				splitPoints = append(splitPoints, newlinePos)
			}
		}
	}
	splitPoints = append(splitPoints, len(text))
	splitPoints = dedupInts(splitPoints)

	var chunks []string
	var current strings.Builder
	prevLastLine := ""

	for i := 0; i+1 < len(splitPoints); i++ {
		segment := text[splitPoints[i]:splitPoints[i+1]]

		if current.Len() > 0 && current.Len()+len(segment) > cfg.MaxBytes {
			cur := current.String()
			if len(cur) > cfg.MaxBytes {
				sub := ChunkWithOverlap(cur, cfg.MaxBytes, cfg.OverlapBytes)
				if len(sub) > 0 {
					prevLastLine = lastLine(sub[len(sub)-1])
				}
				chunks = append(chunks, sub...)
			} else {
				prevLastLine = lastLine(cur)
				chunks = append(chunks, cur)
			}
			current.Reset()
			if prevLastLine != "" {
				current.WriteString(prevLastLine)
				current.WriteByte('\n')
			}
		}

		current.WriteString(segment)
	}

	if strings.TrimSpace(current.String()) != "" {
		cur := current.String()
		if len(cur) > cfg.MaxBytes {
			chunks = append(chunks, ChunkWithOverlap(cur, cfg.MaxBytes, cfg.OverlapBytes)...)
		} else {
			chunks = append(chunks, cur)
		}
	}

	if len(chunks) == 0 {
		chunks = append(chunks, text)
	}

	return chunks
}

func dedupInts(xs []int) []int {
	out := xs[:0:0]
	for i, x := range xs {
		if i == 0 || x != xs[i-1] {
			out = append(out, x)
		}
	}
	return out
}

// ChunkWithOverlap splits text into byte windows of at most maxBytes,
// rewinding overlapBytes between consecutive windows. Each window
// prefers to end on a newline, then ". ", then a plain space, and is
// always realigned to a UTF-8 rune boundary so no chunk splits a
// multi-byte character.
func ChunkWithOverlap(text string, maxBytes, overlapBytes int) []string {
	var chunks []string
	start := 0

	for start < len(text) {
		end := start + maxBytes
		if end > len(text) {
			end = len(text)
		}
		for end < len(text) && !utf8.RuneStart(text[end]) {
			end--
		}

		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}

		slice := text[start:end]
		splitAt := end
		if i := strings.LastIndexByte(slice, '\n'); i >= 0 {
			splitAt = start + i + 1
		} else if i := strings.LastIndex(slice, ". "); i >= 0 {
			splitAt = start + i + 2
		} else if i := strings.LastIndexByte(slice, ' '); i >= 0 {
			splitAt = start + i + 1
		}

		chunks = append(chunks, text[start:splitAt])

		rewind := overlapBytes
		if rewind > splitAt-start {
			rewind = splitAt - start
		}
		overlapStart := splitAt - rewind
		for overlapStart > start && !utf8.RuneStart(text[overlapStart]) {
			overlapStart++
		}
		if overlapStart <= start {
			overlapStart = splitAt
		}
		start = overlapStart
	}

	return chunks
}
