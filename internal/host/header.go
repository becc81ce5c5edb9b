package host

import (
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Header is the metadata block at the top of a plugin's main file.
type Header struct {
	Name    string
	Version string
}

var (
	headerName    = regexp.MustCompile(`(?mi)^[ \t/*#@]*Plugin Name:[ \t]*(.+)$`)
	headerVersion = regexp.MustCompile(`(?mi)^[ \t/*#@]*Version:[ \t]*(.+)$`)
)

// headerScanLimit bounds how much of a file is searched for header fields.
const headerScanLimit = 8 << 10

func ParseHeader(src []byte) Header {
	if len(src) > headerScanLimit {
		src = src[:headerScanLimit]
	}
	return Header{
		Name:    firstField(headerName, src),
		Version: firstField(headerVersion, src),
	}
}

func firstField(re *regexp.Regexp, src []byte) string {
	m := re.FindSubmatch(src)
	if m == nil {
		return ""
	}
	v := strings.TrimSpace(string(m[1]))
	return strings.TrimSpace(strings.TrimSuffix(v, "*/"))
}

// NormalizeSemver returns v in canonical "vX.Y.Z" form, or "" when v is
// not a semantic version.
func NormalizeSemver(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}
