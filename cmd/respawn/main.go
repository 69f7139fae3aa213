package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"

	"github.com/ZehenForever/eqrespawn/internal/timeparse"
	"github.com/ZehenForever/eqrespawn/internal/window"
)

const defaultServer = "http://127.0.0.1:8390"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	switch args[0] {
	case "snapshot":
		return runSnapshot(args[1:])
	case "tod":
		return runToD(args[1:])
	case "resolve":
		return runResolve(args[1:])
	case "-h", "--help", "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "respawn snapshot [--server url] [--all]")
	fmt.Fprintln(os.Stderr, "respawn tod [--server url] <command text>")
	fmt.Fprintln(os.Stderr, "respawn resolve <time expression>")
}

func runSnapshot(args []string) int {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	server := fs.String("server", defaultServer, "respawnd base URL")
	all := fs.Bool("all", false, "include mobs with no recorded kill")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var snap window.Snapshot
	if err := getJSON(*server+"/api/v1/snapshot", &snap); err != nil {
		fmt.Fprintf(os.Stderr, "failed to fetch snapshot: %v\n", err)
		return 1
	}

	printSnapshot(snap, *all)
	return 0
}

func printSnapshot(snap window.Snapshot, all bool) {
	mobs := snap.Mobs
	sort.SliceStable(mobs, func(i, j int) bool {
		a, b := mobs[i], mobs[j]
		if a.InWindow != b.InWindow {
			return a.InWindow
		}
		return a.SecondsUntilOpen < b.SecondsUntilOpen
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MOB\tZONE\tLAST KILL\tOPENS\tCLOSES\tSTATUS")
	for _, m := range mobs {
		if m.LastKillAt == nil && !all {
			continue
		}
		status := "closed"
		switch {
		case m.LastKillAt == nil:
			status = "no ToD"
		case m.InWindow:
			status = fmt.Sprintf("IN WINDOW (%s left)", compactDuration(m.SecondsUntilClose))
		case m.SecondsUntilOpen > 0:
			status = fmt.Sprintf("opens in %s", compactDuration(m.SecondsUntilOpen))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Name, m.Zone, localStamp(m.LastKillAt), localStamp(m.WindowOpensAt), localStamp(m.WindowClosesAt), status)
	}
	w.Flush()
}

func localStamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("Jan 02 15:04")
}

func compactDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

func runToD(args []string) int {
	fs := flag.NewFlagSet("tod", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	server := fs.String("server", defaultServer, "respawnd base URL")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, "command text is required, e.g.: respawn tod lord nagafen 2 hours ago")
		return 2
	}
	if !strings.Contains(strings.ToLower(text), "tod") {
		text = "!tod " + text
	}

	body, _ := json.Marshal(map[string]string{"text": text})
	resp, err := http.Post(*server+"/api/v1/tod", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "server rejected command: %s\n", strings.TrimSpace(string(out)))
		return 1
	}
	fmt.Println(strings.TrimSpace(string(out)))
	return 0
}

func runResolve(args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, "time expression is required, e.g.: respawn resolve \"2 hours ago\"")
		return 2
	}

	now := time.Now()
	ts, ok := timeparse.Resolve(text, now, now)
	if !ok {
		fmt.Fprintf(os.Stderr, "could not parse %q\n", text)
		return 1
	}
	fmt.Printf("%s -> %s (%s local)\n", text, ts.UTC().Format(time.RFC3339), ts.Local().Format("Mon Jan 02 15:04:05 2006"))
	return 0
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
