package store

import (
	"fmt"
	"strings"
)

// Split breaks a slash separated path into its segments. Leading, trailing
// and repeated slashes are ignored, so "/users//u1/" and "users/u1" are the
// same location.
func Split(path string) ([]string, error) {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s == "" {
			continue
		}
		if strings.ContainsAny(s, ".$#[]") {
			return nil, fmt.Errorf("%w: segment %q", ErrInvalidPath, s)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// Join builds a path from segments.
func Join(segs ...string) string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		s = strings.Trim(s, "/")
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "/")
}

func clean(path string) (string, []string, error) {
	segs, err := Split(path)
	if err != nil {
		return "", nil, err
	}
	return strings.Join(segs, "/"), segs, nil
}

// related reports whether a change at one path can alter the value observed
// at the other, i.e. one is an ancestor of (or equal to) the other.
func related(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	if len(a) < len(b) {
		return strings.HasPrefix(b, a+"/")
	}
	return strings.HasPrefix(a, b+"/")
}
