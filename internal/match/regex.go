package match

import (
	"bytes"
	"regexp"
)

// DefaultWindow caps how much of a file regex rules look at.
const DefaultWindow = 1 << 20

// SecretGroup is the capture group name that narrows a match to the
// sensitive part, e.g. the value after "password=".
const SecretGroup = "secret"

// Span is one regex match. Line and Column are 1-based. Secret is the
// SecretGroup capture when the pattern has one, else the whole match.
type Span struct {
	Start  int
	End    int
	Line   int
	Column int
	Text   []byte
	Secret []byte
}

func secretOf(re *regexp.Regexp, buf []byte, loc []int) []byte {
	if g := re.SubexpIndex(SecretGroup); g > 0 && 2*g+1 < len(loc) && loc[2*g] >= 0 {
		return buf[loc[2*g]:loc[2*g+1]]
	}
	return buf[loc[0]:loc[1]]
}

// Window returns the prefix of data that regex scanning may inspect.
func Window(data []byte, window int) []byte {
	if window <= 0 {
		window = DefaultWindow
	}
	if len(data) > window {
		return data[:window]
	}
	return data
}

// FindSpans returns up to max matches of re in the scan window of data, in
// source order. max <= 0 means no limit.
func FindSpans(data []byte, re *regexp.Regexp, window, max int) []Span {
	buf := Window(data, window)
	n := max
	if n <= 0 {
		n = -1
	}
	locs := re.FindAllSubmatchIndex(buf, n)
	if len(locs) == 0 {
		return nil
	}
	out := make([]Span, 0, len(locs))
	line, lineStart, pos := 1, 0, 0
	for _, loc := range locs {
		seg := buf[pos:loc[0]]
		if c := bytes.Count(seg, []byte{'\n'}); c > 0 {
			line += c
			lineStart = pos + bytes.LastIndexByte(seg, '\n') + 1
		}
		pos = loc[0]
		out = append(out, Span{
			Start:  loc[0],
			End:    loc[1],
			Line:   line,
			Column: loc[0] - lineStart + 1,
			Text:   buf[loc[0]:loc[1]],
			Secret: secretOf(re, buf, loc),
		})
	}
	return out
}

// FindLineSpans matches re against each line of the scan window separately.
// skipLine, when non-nil, suppresses whole lines.
func FindLineSpans(data []byte, re *regexp.Regexp, window, max int, skipLine func([]byte) bool) []Span {
	buf := Window(data, window)
	var out []Span
	offset := 0
	for lineNo := 1; offset <= len(buf); lineNo++ {
		end := bytes.IndexByte(buf[offset:], '\n')
		var line []byte
		if end < 0 {
			line = buf[offset:]
		} else {
			line = buf[offset : offset+end]
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) > 0 && (skipLine == nil || !skipLine(line)) {
			for _, loc := range re.FindAllSubmatchIndex(line, -1) {
				out = append(out, Span{
					Start:  offset + loc[0],
					End:    offset + loc[1],
					Line:   lineNo,
					Column: loc[0] + 1,
					Text:   line[loc[0]:loc[1]],
					Secret: secretOf(re, line, loc),
				})
				if max > 0 && len(out) >= max {
					return out
				}
			}
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return out
}
