package streaming

import "strings"

const (
	thinkOpen  = "<思考>"
	thinkClose = "</思考>"
)

// thinkSplitter separates inline reasoning markers from the visible text as
// chunks arrive. Markers may be split across chunk boundaries, so a partial
// marker suffix is carried over to the next feed.
type thinkSplitter struct {
	carry      string
	inThinking bool
}

// feed consumes the next chunk and returns the visible and reasoning text it
// completes. Text that could still turn into a marker stays carried.
func (s *thinkSplitter) feed(text string) (content, thinking string) {
	s.carry += text
	for {
		marker := thinkOpen
		if s.inThinking {
			marker = thinkClose
		}
		idx := strings.Index(s.carry, marker)
		if idx < 0 {
			emit := len(s.carry) - partialMarkerLen(s.carry, marker)
			if s.inThinking {
				thinking += s.carry[:emit]
			} else {
				content += s.carry[:emit]
			}
			s.carry = s.carry[emit:]
			return content, thinking
		}
		if s.inThinking {
			thinking += s.carry[:idx]
		} else {
			content += s.carry[:idx]
		}
		s.carry = s.carry[idx+len(marker):]
		s.inThinking = !s.inThinking
	}
}

// flush drains whatever is carried, including an unterminated partial marker.
func (s *thinkSplitter) flush() (content, thinking string) {
	out := s.carry
	s.carry = ""
	if s.inThinking {
		return "", out
	}
	return out, ""
}

// partialMarkerLen reports the length of the longest suffix of text that is a
// proper prefix of marker.
func partialMarkerLen(text, marker string) int {
	max := len(marker) - 1
	if max > len(text) {
		max = len(text)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(text, marker[:n]) {
			return n
		}
	}
	return 0
}
