package textutil

// TruncateAtSentence shortens model output to end on a complete sentence.
// Sentences end at '.', '!', or '?' followed by whitespace or end of text.
//
// If the text fits within primaryLimit it is returned unchanged. Otherwise
// the last sentence end at or before secondaryLimit is preferred, then the
// last one at or before primaryLimit. When no sentence terminator exists at
// all the text is returned unchanged rather than cut mid-sentence.
func TruncateAtSentence(text string, primaryLimit, secondaryLimit int) string {
	if len(text) <= primaryLimit {
		return text
	}

	ends := sentenceEnds(text)
	if len(ends) == 0 {
		return text
	}

	if end := lastEndAtOrBefore(ends, secondaryLimit); end > 0 {
		return text[:end]
	}
	if end := lastEndAtOrBefore(ends, primaryLimit); end > 0 {
		return text[:end]
	}
	return text
}

// sentenceEnds returns the exclusive end offsets of every sentence.
func sentenceEnds(text string) []int {
	var ends []int
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || isASCIISpace(text[i+1]) {
				ends = append(ends, i+1)
			}
		}
	}
	return ends
}

func lastEndAtOrBefore(ends []int, limit int) int {
	best := 0
	for _, e := range ends {
		if e <= limit && e > best {
			best = e
		}
	}
	return best
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
