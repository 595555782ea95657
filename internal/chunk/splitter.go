package chunk

import "strings"

// Splitter cuts document text into fixed-size chunks. Sizes are measured in
// runes so multi-byte text never splits inside a character.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a splitter producing chunks of at most size runes with
// the given overlap between adjacent chunks. Overlap is clamped below size.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 300
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split returns the chunks of text in document order. Whitespace-only input
// yields no chunks. With zero overlap every chunk except possibly the last is
// exactly size runes and no two chunks share characters.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	step := s.size - s.overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
