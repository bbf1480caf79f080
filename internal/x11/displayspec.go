package x11

import (
	"fmt"
	"strconv"
	"strings"
)

// DisplayName is a parsed X display specifier of the form
// [protocol/][host]:display[.screen].
type DisplayName struct {
	Protocol string
	Host     string
	Display  int
	Screen   int
}

// ParseDisplayName validates a display specifier before it reaches the
// protocol client, so malformed names fail with a clear message.
func ParseDisplayName(name string) (DisplayName, error) {
	var out DisplayName
	if name == "" {
		return out, fmt.Errorf("empty display name (is DISPLAY set?)")
	}

	rest := name
	if slash := strings.LastIndex(rest, "/"); slash >= 0 {
		// Unix socket paths such as /tmp/.X11-unix/X0 are accepted verbatim.
		if strings.HasPrefix(rest, "/") {
			base := rest[strings.LastIndex(rest, "/")+1:]
			if !strings.HasPrefix(base, "X") {
				return out, fmt.Errorf("invalid display socket %q", name)
			}
			n, err := strconv.Atoi(base[1:])
			if err != nil || n < 0 {
				return out, fmt.Errorf("invalid display socket %q", name)
			}
			out.Protocol = "unix"
			out.Display = n
			return out, nil
		}
		out.Protocol = rest[:slash]
		rest = rest[slash+1:]
	}

	colon := strings.LastIndex(rest, ":")
	if colon < 0 {
		return out, fmt.Errorf("invalid display name %q: missing ':'", name)
	}
	out.Host = rest[:colon]

	numbers := rest[colon+1:]
	if numbers == "" {
		return out, fmt.Errorf("invalid display name %q: missing display number", name)
	}
	displayPart, screenPart, hasScreen := strings.Cut(numbers, ".")

	d, err := strconv.Atoi(displayPart)
	if err != nil || d < 0 {
		return out, fmt.Errorf("invalid display name %q: bad display number %q", name, displayPart)
	}
	out.Display = d

	if hasScreen {
		s, err := strconv.Atoi(screenPart)
		if err != nil || s < 0 {
			return out, fmt.Errorf("invalid display name %q: bad screen number %q", name, screenPart)
		}
		out.Screen = s
	}
	return out, nil
}

// String renders the canonical form of the name.
func (d DisplayName) String() string {
	var sb strings.Builder
	if d.Protocol != "" && d.Protocol != "unix" {
		sb.WriteString(d.Protocol)
		sb.WriteString("/")
	}
	sb.WriteString(d.Host)
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(d.Display))
	if d.Screen != 0 {
		sb.WriteString(".")
		sb.WriteString(strconv.Itoa(d.Screen))
	}
	return sb.String()
}
