package router

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var ridSeq atomic.Uint64

// newReqID returns a short id unique within the process: base36 time plus a sequence.
func newReqID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + strconv.FormatUint(ridSeq.Add(1), 36)
}

// tokenize splits arguments on whitespace, honouring single and double
// quotes and backslash escapes:
//
//	a "b c" 'd e' f\ g  ->  [a, b c, d e, f g]
func tokenize(s string) []string {
	var (
		out    []string
		cur    strings.Builder
		quote  rune
		esc    bool
		inWord bool
	)
	for _, ch := range s {
		switch {
		case esc:
			cur.WriteRune(ch)
			esc, inWord = false, true
		case ch == '\\':
			esc = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteRune(ch)
			}
		case ch == '"' || ch == '\'':
			quote, inWord = ch, true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			if inWord {
				out = append(out, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(ch)
			inWord = true
		}
	}
	if inWord {
		out = append(out, cur.String())
	}
	return out
}
