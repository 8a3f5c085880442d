package badchars

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownProfile is returned by Registry.Get for unregistered names.
var ErrUnknownProfile = errors.New("unknown profile")

// Encoder renders bytes safely for a context.
type Encoder func(data []byte) (string, error)

// Profile describes how a transport context treats bytes.
type Profile struct {
	Name        string
	Description string

	// Forbidden bytes must never appear unencoded.
	Forbidden []byte

	// MustEncode bytes are delimiters or otherwise ambiguous in the context.
	MustEncode []byte

	Encoder Encoder
}

// Badchars is the sorted union of Forbidden and MustEncode.
func (p Profile) Badchars() []byte {
	set := make(map[byte]bool)
	for _, b := range p.Forbidden {
		set[b] = true
	}
	for _, b := range p.MustEncode {
		set[b] = true
	}
	out := make([]byte, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}

// Encode renders data with the profile encoder, or passes it through.
func (p Profile) Encode(data []byte) (string, error) {
	if p.Encoder == nil {
		return string(data), nil
	}
	return p.Encoder(data)
}

// Registry holds named profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewRegistry returns a registry preloaded with the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]Profile)}
	for _, p := range builtinProfiles() {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a profile.
func (r *Registry) Register(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Name] = p
}

// Get looks up a profile by name.
func (r *Registry) Get(name string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// Names returns the registered profile names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate returns the bad bytes present in payload, sorted and unique.
func Validate(payload, badchars []byte) []byte {
	var found []byte
	for _, b := range payload {
		if slices.Contains(badchars, b) && !slices.Contains(found, b) {
			found = append(found, b)
		}
	}
	slices.Sort(found)
	return found
}

// Remove drops every bad byte from payload.
func Remove(payload, badchars []byte) []byte {
	out := make([]byte, 0, len(payload))
	for _, b := range payload {
		if !slices.Contains(badchars, b) {
			out = append(out, b)
		}
	}
	return out
}

// Sanitize removes, or replaces with *replace, every byte the profile or
// extra marks unsafe. Prefer Profile.Encode when the context can carry an
// encoding.
func Sanitize(payload []byte, p Profile, replace *byte, extra []byte) []byte {
	unsafe := append(p.Badchars(), extra...)
	if replace == nil {
		return Remove(payload, unsafe)
	}
	out := make([]byte, len(payload))
	for i, b := range payload {
		if slices.Contains(unsafe, b) {
			b = *replace
		}
		out[i] = b
	}
	return out
}

func byteRange(lo, hi byte) []byte {
	out := make([]byte, 0, int(hi-lo)+1)
	for b := int(lo); b <= int(hi); b++ {
		out = append(out, byte(b))
	}
	return out
}

func builtinProfiles() []Profile {
	ctl := byteRange(0x00, 0x1f)
	ctlNoTab := slices.DeleteFunc(slices.Clone(ctl), func(b byte) bool { return b == '\t' })

	return []Profile{
		{
			Name:        "raw_tcp",
			Description: "Generic stack overflow over raw TCP",
			Forbidden:   []byte{0x00},
		},
		{
			Name:        "http_header",
			Description: "HTTP header value context",
			Forbidden:   []byte{0x00, '\n', '\r'},
			MustEncode:  append(ctlNoTab, 0x7f),
			Encoder:     encodeHeader,
		},
		{
			Name:        "http_form_urlencoded",
			Description: "application/x-www-form-urlencoded body",
			Forbidden:   append(slices.Clone(ctl), 0x7f),
			MustEncode:  []byte("%&+="),
			Encoder:     encodeForm,
		},
		{
			Name:        "url_query",
			Description: "URL query parameter context",
			Forbidden:   append(slices.Clone(ctl), 0x7f),
			MustEncode:  []byte(" #%&+=?[]"),
			Encoder:     encodeQuery,
		},
		{
			Name:        "json_string",
			Description: "JSON string value",
			Forbidden:   []byte{0x00},
			MustEncode:  []byte{'"', '\\', '\n', '\r', '\t'},
			Encoder:     encodeJSONString,
		},
		{
			Name:        "raw_body",
			Description: "Raw request body, bytes sent as-is",
		},
	}
}

func encodeHeader(data []byte) (string, error) {
	for _, b := range data {
		if b == 0x00 || b == '\n' || b == '\r' {
			return "", errors.New("CR/LF/NUL present; refusing to serialize into header value")
		}
	}
	printable := true
	for _, b := range data {
		if b < 0x20 || b > 0x7e {
			printable = false
			break
		}
	}
	if printable {
		return string(data), nil
	}
	return "b64:" + base64.StdEncoding.EncodeToString(data), nil
}

func isUnreserved(b byte) bool {
	return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z' || '0' <= b && b <= '9' ||
		b == '-' || b == '.' || b == '_' || b == '~'
}

// encodeQuery percent-encodes everything outside RFC 3986 unreserved.
func encodeQuery(data []byte) (string, error) {
	var sb strings.Builder
	for _, b := range data {
		if isUnreserved(b) {
			sb.WriteByte(b)
			continue
		}
		fmt.Fprintf(&sb, "%%%02X", b)
	}
	return sb.String(), nil
}

// encodeForm applies form encoding byte by byte: space becomes '+'.
func encodeForm(data []byte) (string, error) {
	return url.QueryEscape(string(data)), nil
}

// encodeJSONString quotes data as a JSON string, reading each byte as a
// latin-1 code point.
func encodeJSONString(data []byte) (string, error) {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, b := range data {
		switch b {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			if b < 0x20 || b > 0x7f {
				fmt.Fprintf(&sb, `\u%04x`, b)
			} else {
				sb.WriteByte(b)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String(), nil
}
