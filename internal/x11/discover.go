package x11

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// ErrNoDisplay is returned when no display name is given and none can be
// found in the environment or the login session.
var ErrNoDisplay = errors.New("x11: no display available")

// socketDir is where local X servers listen.
const socketDir = "/tmp/.X11-unix"

var (
	runCommandFn    = runCommand
	readFileFn      = os.ReadFile
	readDirFn       = os.ReadDir
	statFn          = os.Stat
	sessionEnvFn    = sessionX11Env
	socketDisplayFn = socketDisplay
)

// Target is a resolved display name and authority file, and where each came
// from.
type Target struct {
	Display          string
	XAuthority       string
	DisplaySource    string
	XAuthoritySource string
}

// Resolve picks the display and authority file to connect with. Explicit
// values win, then $DISPLAY and $XAUTHORITY, then the environment of the
// caller's graphical login session, then the highest local server socket and
// ~/.Xauthority.
func Resolve(display, xauthority string) (Target, error) {
	t := Target{
		Display:    strings.TrimSpace(display),
		XAuthority: strings.TrimSpace(xauthority),
	}
	if t.Display != "" {
		t.DisplaySource = "explicit"
	}
	if t.XAuthority != "" {
		t.XAuthoritySource = "explicit"
	}

	if t.Display == "" {
		if v := strings.TrimSpace(os.Getenv("DISPLAY")); v != "" {
			t.Display, t.DisplaySource = v, "env"
		}
	}
	if t.XAuthority == "" {
		if v := strings.TrimSpace(os.Getenv("XAUTHORITY")); v != "" {
			t.XAuthority, t.XAuthoritySource = v, "env"
		}
	}

	if t.Display == "" || t.XAuthority == "" {
		sd, sx := sessionEnvFn()
		if t.Display == "" && strings.TrimSpace(sd) != "" {
			t.Display, t.DisplaySource = strings.TrimSpace(sd), "session"
		}
		if t.XAuthority == "" && strings.TrimSpace(sx) != "" {
			t.XAuthority, t.XAuthoritySource = strings.TrimSpace(sx), "session"
		}
	}

	if t.Display == "" {
		if d := socketDisplayFn(socketDir); d != "" {
			t.Display, t.DisplaySource = d, "socket"
		}
	}
	if t.Display == "" {
		return t, fmt.Errorf("%w: set display in the config file or export DISPLAY", ErrNoDisplay)
	}

	if t.XAuthority == "" {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			candidate := filepath.Join(home, ".Xauthority")
			if _, err := statFn(candidate); err == nil {
				t.XAuthority, t.XAuthoritySource = candidate, "home"
			}
		}
	}
	return t, nil
}

func runCommand(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// sessionX11Env asks logind for the caller's sessions and returns the
// display of the first graphical one, preferring the session leader's own
// environment when it is readable.
func sessionX11Env() (display, xauthority string) {
	out, err := runCommandFn("loginctl", "list-sessions", "--no-legend")
	if err != nil {
		return "", ""
	}
	for _, id := range sessionsForUser(out, strconv.Itoa(os.Getuid())) {
		d := sessionProperty(id, "Display")
		if d == "" || strings.EqualFold(d, "n/a") {
			continue
		}
		leader := sessionProperty(id, "Leader")
		if leader == "" || leader == "0" {
			return d, ""
		}
		env, err := processEnv(leader)
		if err != nil {
			return d, ""
		}
		if v := strings.TrimSpace(env["DISPLAY"]); v != "" {
			d = v
		}
		return d, strings.TrimSpace(env["XAUTHORITY"])
	}
	return "", ""
}

// sessionsForUser filters `loginctl list-sessions` output by uid.
func sessionsForUser(output, uid string) []string {
	var ids []string
	for line := range strings.Lines(output) {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == uid {
			ids = append(ids, fields[0])
		}
	}
	return ids
}

func sessionProperty(id, prop string) string {
	out, err := runCommandFn("loginctl", "show-session", id, "-p", prop, "--value")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func processEnv(pid string) (map[string]string, error) {
	data, err := readFileFn(filepath.Join("/proc", pid, "environ"))
	if err != nil {
		return nil, err
	}
	env := make(map[string]string)
	for _, part := range strings.Split(string(data), "\x00") {
		k, v, ok := strings.Cut(part, "=")
		if ok && k != "" {
			env[k] = v
		}
	}
	return env, nil
}

// socketDisplay returns ":N" for the highest-numbered X<N> socket in dir.
func socketDisplay(dir string) string {
	entries, err := readDirFn(dir)
	if err != nil {
		return ""
	}
	var displays []int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "X") {
			continue
		}
		if n, err := strconv.Atoi(name[1:]); err == nil {
			displays = append(displays, n)
		}
	}
	if len(displays) == 0 {
		return ""
	}
	return fmt.Sprintf(":%d", slices.Max(displays))
}
