package slug

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	formatRe   = regexp.MustCompile(`^[a-z0-9-]{3,50}$`)
	nonSlugRe  = regexp.MustCompile(`[^a-z0-9]`)
	repeatedRe = regexp.MustCompile(`-+`)
)

// ExistsFunc reports whether a slug is already taken.
type ExistsFunc func(slug string) (bool, error)

// Generate turns a display name into a public slug, e.g. "Felix Mueller" →
// "felix-mueller". A taken slug gets a short random suffix; an empty name
// falls back to a random slug.
func Generate(name string, exists ExistsFunc) (string, error) {
	base := nonSlugRe.ReplaceAllString(strings.ToLower(name), "-")
	base = repeatedRe.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		return Random(), nil
	}

	taken, err := exists(base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0][:4]
	return base + "-" + suffix, nil
}

// Random returns a fallback slug of the form "user-xxxxxx".
func Random() string {
	return "user-" + strings.SplitN(uuid.NewString(), "-", 2)[0][:6]
}

// ValidFormat reports whether a user-chosen slug is acceptable: lowercase
// letters, digits and hyphens, 3 to 50 characters.
func ValidFormat(slug string) bool {
	return formatRe.MatchString(slug)
}
