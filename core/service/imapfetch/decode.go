package imapfetch

import (
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// decodeBody runs raw bytes through the fallback chain
// utf-8 → gbk → gb2312 → latin1 → utf-8 with replacement, stopping at the
// first decoding that yields valid UTF-8. Mail servers routinely mislabel
// or omit charset, so this is tried regardless of any declared charset.
func decodeBody(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	if s, err := simplifiedchinese.GBK.NewDecoder().String(string(raw)); err == nil && utf8.ValidString(s) {
		return s
	}
	if s, err := simplifiedchinese.HZGB2312.NewDecoder().String(string(raw)); err == nil && utf8.ValidString(s) {
		return s
	}
	if s, err := charmap.ISO8859_1.NewDecoder().String(string(raw)); err == nil && utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(string(raw), "�")
}

// decodeHeader decodes RFC 2047 encoded-words, falling back to the raw
// string when decoding fails (malformed or unsupported charset).
func decodeHeader(s string) string {
	decoded, err := (&mime.WordDecoder{}).DecodeHeader(s)
	if err != nil || decoded == "" {
		return s
	}
	return decoded
}
