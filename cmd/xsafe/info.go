package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/1broseidon/xsafe"
	"golang.org/x/term"
)

type screenReport struct {
	Number   int             `json:"number"`
	Root     uint32          `json:"root"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	WidthMM  int             `json:"width_mm"`
	HeightMM int             `json:"height_mm"`
	Planes   int             `json:"planes"`
	Cells    int             `json:"cells"`
	Monitors []xsafe.Monitor `json:"monitors"`
	// MonitorError is set when RandR is unavailable.
	MonitorError string `json:"monitor_error,omitempty"`
}

type displayReport struct {
	Display          string         `json:"display"`
	Session          string         `json:"session"`
	Vendor           string         `json:"vendor"`
	VendorRelease    int            `json:"vendor_release"`
	ProtocolVersion  int            `json:"protocol_version"`
	ProtocolRevision int            `json:"protocol_revision"`
	MaxRequestLength int            `json:"max_request_length"`
	DefaultScreen    int            `json:"default_screen"`
	Screens          []screenReport `json:"screens"`
}

func runInfo(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var conn connectFlags
	conn.register(fs)
	asJSON := fs.Bool("json", false, "Output JSON (default when stdout is not a terminal)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: xsafe info [--path PATH] [--display NAME] [--screen N] [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Describe the display, its screens and monitors.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "info takes no arguments")
		fs.Usage()
		return 2
	}

	cfg, err := conn.load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	s, err := openSession(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer s.Close()

	rep, err := buildReport(s.display, cfg.Screen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !*asJSON {
		if f, ok := stdout.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
			*asJSON = true
		}
	}
	if err := writeReport(stdout, rep, *asJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// buildReport collects connection metadata. When only is non-negative the
// report covers just that screen.
func buildReport(d *xsafe.Display, only int) (*displayReport, error) {
	rep := &displayReport{Session: d.Session().String()}
	var err error
	if rep.Display, err = d.DisplayString(); err != nil {
		return nil, err
	}
	if rep.Vendor, err = d.Vendor(); err != nil {
		return nil, err
	}
	if rep.VendorRelease, err = d.VendorRelease(); err != nil {
		return nil, err
	}
	if rep.ProtocolVersion, err = d.ProtocolVersion(); err != nil {
		return nil, err
	}
	if rep.ProtocolRevision, err = d.ProtocolRevision(); err != nil {
		return nil, err
	}
	if rep.MaxRequestLength, err = d.MaxRequestLength(); err != nil {
		return nil, err
	}
	if rep.DefaultScreen, err = d.DefaultScreen(); err != nil {
		return nil, err
	}
	count, err := d.ScreenCount()
	if err != nil {
		return nil, err
	}
	if only >= count {
		return nil, fmt.Errorf("screen %d out of range (display has %d)", only, count)
	}

	for n := range count {
		if only >= 0 && n != only {
			continue
		}
		scr, err := d.Screen(n)
		if err != nil {
			return nil, err
		}
		sr, err := describeScreen(scr)
		if err != nil {
			return nil, err
		}
		rep.Screens = append(rep.Screens, sr)
	}
	return rep, nil
}

func describeScreen(scr *xsafe.Screen) (screenReport, error) {
	sr := screenReport{Number: scr.Number()}
	root, err := scr.Root()
	if err != nil {
		return sr, err
	}
	sr.Root = root.XID()
	for _, f := range []struct {
		dst *int
		get func() (int, error)
	}{
		{&sr.Width, scr.Width},
		{&sr.Height, scr.Height},
		{&sr.WidthMM, scr.WidthMM},
		{&sr.HeightMM, scr.HeightMM},
		{&sr.Planes, scr.Planes},
		{&sr.Cells, scr.Cells},
	} {
		if *f.dst, err = f.get(); err != nil {
			return sr, err
		}
	}
	if sr.Monitors, err = scr.Monitors(); err != nil {
		sr.MonitorError = err.Error()
	}
	return sr, nil
}

func writeReport(w io.Writer, rep *displayReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintf(w, "display:          %s\n", rep.Display)
	fmt.Fprintf(w, "session:          %s\n", rep.Session)
	fmt.Fprintf(w, "vendor:           %s (release %d)\n", rep.Vendor, rep.VendorRelease)
	fmt.Fprintf(w, "protocol:         %d.%d\n", rep.ProtocolVersion, rep.ProtocolRevision)
	fmt.Fprintf(w, "max_request:      %d\n", rep.MaxRequestLength)
	fmt.Fprintf(w, "default_screen:   %d\n", rep.DefaultScreen)
	for _, sr := range rep.Screens {
		fmt.Fprintln(w, "")
		fmt.Fprintf(w, "screen %d (root 0x%x)\n", sr.Number, sr.Root)
		fmt.Fprintf(w, "  size:     %dx%d pixels, %dx%d mm\n", sr.Width, sr.Height, sr.WidthMM, sr.HeightMM)
		fmt.Fprintf(w, "  depth:    %d planes, %d colormap cells\n", sr.Planes, sr.Cells)
		if sr.MonitorError != "" {
			fmt.Fprintf(w, "  monitors: unavailable (%s)\n", sr.MonitorError)
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  ID\tNAME\tGEOMETRY")
		for _, m := range sr.Monitors {
			fmt.Fprintf(tw, "  %d\t%s\t%dx%d+%d+%d\n", m.ID, m.Name, m.Width, m.Height, m.X, m.Y)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
