package helpers

import (
	"encoding/hex"
	"strings"
)

func MustHex(s string) []byte {
	b, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ParseHex accepts whitespace separated groups: "68 03 03 68" or "68030368".
func ParseHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.Join(strings.Fields(s), ""))
}

// FormatHex groups bytes by 4 for logs: "680f0f68 08017278".
func FormatHex(b []byte) string {
	h := hex.EncodeToString(b)
	hlen := len(h)
	ss := make([]string, 0, (hlen/8)+1)
	for i := 0; i < hlen; i += 8 {
		hi := i + 8
		if hi > hlen {
			hi = hlen
		}
		ss = append(ss, h[i:hi])
	}
	return strings.Join(ss, " ")
}
