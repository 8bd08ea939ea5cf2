package pipeline

import (
	"strings"
	"unicode"
)

// DefaultChunkSize is the character budget per extraction chunk.
const DefaultChunkSize = 3000

// ChunkText splits text into order-preserving chunks of at most maxSize
// characters. Paragraphs are packed greedily; a paragraph over the budget is
// split at sentence boundaries, and a single oversized sentence is sliced
// hard. Empty paragraphs are dropped.
func ChunkText(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	appendPiece := func(piece string) {
		if current.Len() > 0 && current.Len()+2+len(piece) > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(piece)
	}

	for _, para := range paragraphs {
		if len(para) <= maxSize {
			appendPiece(para)
			continue
		}

		for _, sentence := range splitSentences(para) {
			if len(sentence) <= maxSize {
				appendPiece(sentence)
				continue
			}

			// A single sentence over the budget gets sliced hard.
			flush()
			for len(sentence) > maxSize {
				chunks = append(chunks, sentence[:maxSize])
				sentence = sentence[maxSize:]
			}
			if sentence != "" {
				appendPiece(sentence)
			}
		}
	}
	flush()

	return chunks
}

// splitSentences splits on sentence terminators, keeping the terminator with
// its sentence. Latin terminators must be followed by whitespace or end of
// text, CJK terminators break unconditionally.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isSentenceTerminator(runes[i]) {
			continue
		}
		if isLatinTerminator(runes[i]) && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}

		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}

	if start < len(runes) {
		sentence := strings.TrimSpace(string(runes[start:]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}

	return sentences
}

func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isLatinTerminator(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return false
}
