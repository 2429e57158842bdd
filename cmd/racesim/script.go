package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// scriptLine is one driver command scheduled for a tick.
type scriptLine struct {
	tick    int
	command string
}

// script holds commands grouped by tick.
type script struct {
	lines []scriptLine
	next  int
}

// defaultScript starts a race immediately.
func defaultScript() *script {
	return &script{lines: []scriptLine{{tick: 0, command: ":RACE:START:"}}}
}

// parseScript reads "[tick] :COMMAND: args" lines. Lines without a leading
// tick run at tick 0. Blank lines and lines starting with # are ignored.
func parseScript(r io.Reader) (*script, error) {
	var s script
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tick := 0
		first, rest, _ := strings.Cut(line, " ")
		if !strings.HasPrefix(first, ":") {
			t, err := cast.ToIntE(first)
			if err != nil || t < 0 {
				return nil, fmt.Errorf("script line %d: bad tick %q", n, first)
			}
			tick = t
			line = strings.TrimSpace(rest)
		}
		if !strings.HasPrefix(line, ":") {
			return nil, fmt.Errorf("script line %d: expected a command", n)
		}
		s.lines = append(s.lines, scriptLine{tick: tick, command: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	sort.SliceStable(s.lines, func(i, j int) bool { return s.lines[i].tick < s.lines[j].tick })
	return &s, nil
}

// due returns the commands scheduled at or before tick that have not run yet.
func (s *script) due(tick int) []string {
	var out []string
	for s.next < len(s.lines) && s.lines[s.next].tick <= tick {
		out = append(out, s.lines[s.next].command)
		s.next++
	}
	return out
}
