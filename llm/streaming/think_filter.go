package streaming

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ThinkFilter removes <think>...</think> spans that reasoning models inline
// in their content. Tags may be split across chunks.
type ThinkFilter struct {
	pending  string
	thinking bool
}

// Process returns the visible part of chunk. A trailing fragment that could
// still become a tag is held back until the next chunk.
func (f *ThinkFilter) Process(chunk string) string {
	s := f.pending + chunk
	f.pending = ""

	var out strings.Builder
	for s != "" {
		tag := thinkOpen
		if f.thinking {
			tag = thinkClose
		}

		if i := strings.Index(s, tag); i >= 0 {
			if !f.thinking {
				out.WriteString(s[:i])
			}
			s = s[i+len(tag):]
			f.thinking = !f.thinking
			continue
		}

		keep := partialTagSuffix(s, tag)
		if !f.thinking {
			out.WriteString(s[:len(s)-keep])
		}
		f.pending = s[len(s)-keep:]
		break
	}
	return out.String()
}

// Flush returns text held back at end of stream. An unclosed think span is dropped.
func (f *ThinkFilter) Flush() string {
	s := f.pending
	f.pending = ""
	if f.thinking {
		return ""
	}
	return s
}

// Thinking reports whether the stream is inside a think span
func (f *ThinkFilter) Thinking() bool {
	return f.thinking
}

// partialTagSuffix is the length of the longest suffix of s that is a proper prefix of tag
func partialTagSuffix(s, tag string) int {
	for n := min(len(s), len(tag)-1); n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
