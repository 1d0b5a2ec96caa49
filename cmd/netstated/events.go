package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nerrad567/gray-logic-netstate/internal/netlog"
)

var errEventFileRequired = errors.New("event stream file path required")

// runEvents prints the entries of a CBOR event stream (the file configured
// as netstate.event_log.cbor_file).
func runEvents(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), `netstated events - print a network event stream

Usage:
  netstated events [flags] <events.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	level := fs.String("level", "", "minimum level (debug, event, user, error)")
	path := fs.String("path", "", "only entries for this network or device path")
	limit := fs.Int("limit", 0, "only the newest N entries")
	asJSON := fs.Bool("json", false, "print one JSON object per line")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errEventFileRequired
	}

	filter := netlog.Filter{Path: *path, Limit: *limit}
	if *level != "" {
		l, err := netlog.ParseLevel(*level)
		if err != nil {
			return err
		}
		filter.MinLevel = l
	}

	entries, err := netlog.ReadCBORFile(fs.Arg(0), filter)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Time.Local().Format(time.DateTime), e.Level, e.Event, e.Path, e.Detail)
	}
	return tw.Flush()
}
