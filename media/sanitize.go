package media

import "strings"

const (
	// DefaultTitle names outputs whose user-supplied title sanitizes
	// away to nothing.
	DefaultTitle = "final_video"

	maxTitleLen = 64
)

// SanitizeTitle converts a user-supplied video title into a safe output
// filename base. Letters, digits, hyphens and underscores are kept,
// spaces become underscores, everything else is dropped.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return DefaultTitle
	}
	if len(out) > maxTitleLen {
		out = out[:maxTitleLen]
	}
	return out
}

// SanitizeUploadName strips any path components and unsafe characters
// from a client-supplied filename while keeping its extension.
func SanitizeUploadName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
