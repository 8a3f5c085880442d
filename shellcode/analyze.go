package shellcode

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"

	"framekit/badchars"
)

// DefaultBadchars are NUL, LF and CR.
var DefaultBadchars = []byte{0x00, 0x0a, 0x0d}

// Report summarizes a blob.
type Report struct {
	Length   int               `json:"length"`
	MD5      string            `json:"md5"`
	SHA256   string            `json:"sha256"`
	Badchars badchars.ByteList `json:"badchars"`
}

// FindBadchars returns the bad bytes present in data, sorted.
func FindBadchars(data, bad []byte) []byte {
	return badchars.Validate(data, bad)
}

// Analyze hashes data and lists the bad bytes it contains.
func Analyze(data, bad []byte) Report {
	md := md5.Sum(data)
	sh := sha256.Sum256(data)

	return Report{
		Length:   len(data),
		MD5:      hex.EncodeToString(md[:]),
		SHA256:   hex.EncodeToString(sh[:]),
		Badchars: FindBadchars(data, bad),
	}
}
