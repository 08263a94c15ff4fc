package extract

import (
	"strconv"
	"strings"
)

// minRun is the shortest printable run kept from a binary .doc stream.
const minRun = 5

// extractLegacyDoc recovers readable text from a Word 97-2003 binary file. Text
// runs are stored either as 8-bit characters or as UTF-16LE; both are scanned and
// the richer result wins.
func extractLegacyDoc(data []byte) string {
	narrow := printableRuns(data, 1)
	wide := printableRuns(data, 2)
	if len(wide) > len(narrow) {
		return wide
	}
	return narrow
}

func printableRuns(data []byte, width int) string {
	var (
		out strings.Builder
		run strings.Builder
	)
	flush := func() {
		if run.Len() >= minRun {
			if out.Len() > 0 {
				out.WriteString("\n")
			}
			out.WriteString(strings.TrimSpace(run.String()))
		}
		run.Reset()
	}
	for i := 0; i+width <= len(data); i += width {
		b := data[i]
		if width == 2 && data[i+1] != 0 {
			flush()
			continue
		}
		switch {
		case b == '\r' || b == '\n':
			run.WriteByte('\n')
		case b == '\t' || (b >= 0x20 && b < 0x7f):
			run.WriteByte(b)
		default:
			flush()
		}
	}
	flush()
	return out.String()
}

// rtfSkipGroups are destinations whose content is not document text.
var rtfSkipGroups = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "header": true, "footer": true, "listtable": true, "listoverridetable": true,
}

// stripRTF removes control words and non-text groups, keeping paragraph breaks.
func stripRTF(src string) string {
	var out strings.Builder
	// skipDepth is the group depth at which skipping started; 0 means not skipping.
	depth, skipDepth := 0, 0

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '{':
			depth++
			if skipDepth == 0 && strings.HasPrefix(src[i+1:], `\*`) {
				skipDepth = depth
			}
		case '}':
			if skipDepth == depth {
				skipDepth = 0
			}
			depth--
		case '\\':
			if i+1 >= len(src) {
				continue
			}
			next := src[i+1]
			switch {
			case next == '\\' || next == '{' || next == '}':
				if skipDepth == 0 {
					out.WriteByte(next)
				}
				i++
			case next == '\'' && i+3 < len(src):
				if v, err := strconv.ParseUint(src[i+2:i+4], 16, 8); err == nil && skipDepth == 0 {
					out.WriteRune(rune(v))
				}
				i += 3
			case isLetter(next):
				j := i + 1
				for j < len(src) && isLetter(src[j]) {
					j++
				}
				word := src[i+1 : j]
				// optional numeric parameter
				for j < len(src) && (src[j] == '-' || (src[j] >= '0' && src[j] <= '9')) {
					j++
				}
				// a single space delimiter belongs to the control word
				if j < len(src) && src[j] == ' ' {
					j++
				}
				i = j - 1

				if rtfSkipGroups[word] && skipDepth == 0 {
					skipDepth = depth
				}
				if skipDepth != 0 {
					continue
				}
				switch word {
				case "par", "line":
					out.WriteByte('\n')
				case "tab":
					out.WriteByte('\t')
				}
			default:
				i++
			}
		case '\r', '\n':
		default:
			if skipDepth == 0 {
				out.WriteByte(c)
			}
		}
	}
	return strings.TrimSpace(out.String())
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
