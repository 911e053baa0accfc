package chunker

import "strings"

// WindowChunker splits text into fixed-size character windows with overlap.
type WindowChunker struct {
	chunkSize int
	overlap   int
}

func NewWindowChunker(chunkSize, overlap int) *WindowChunker {
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	if overlap < 0 {
		overlap = 0
	}
	return &WindowChunker{chunkSize: chunkSize, overlap: overlap}
}

// Split slides a window of chunkSize characters over text, stepping by
// chunkSize-overlap. Whitespace-only windows are dropped; window content is
// never trimmed. When overlap >= chunkSize the start jumps to the window end
// so the loop always makes progress.
func (c *WindowChunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	length := len(runes)
	var chunks []string
	start := 0
	for start < length {
		end := start + c.chunkSize
		if end > length {
			end = length
		}
		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, window)
		}
		if end == length {
			break
		}
		if next := end - c.overlap; next > start {
			start = next
		} else {
			start = end
		}
	}
	return chunks
}
