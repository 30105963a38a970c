package rule

const (
	CR   byte = '\r'
	LF   byte = '\n'
	SP   byte = ' '
	HTAB byte = '\t'
	VT   byte = 0x0B
	FF   byte = 0x0C
	DEL  byte = 0x7F
)

var (
	OWS         = []byte{SP, HTAB}
	CRLF        = []byte{CR, LF}
	Whitespaces = []byte{SP, HTAB, VT, FF, CR}
)

func IsWhitespace(r rune) bool {
	for _, ws := range Whitespaces {
		if r == rune(ws) {
			return true
		}
	}
	return false
}

func IsAlpha(r rune) bool { return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') }
func IsDigit(r rune) bool { return '0' <= r && r <= '9' }

func IsHex(r rune) bool {
	return IsDigit(r) || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F')
}

// IsCTL reports whether c is a control character other than HTAB.
func IsCTL(c byte) bool {
	return (c < SP && c != HTAB) || c == DEL
}

// ContainsCTL reports whether s has any byte matching [IsCTL].
func ContainsCTL(s string) bool {
	for i := 0; i < len(s); i++ {
		if IsCTL(s[i]) {
			return true
		}
	}
	return false
}
