package inventory

import (
	"bufio"
	"bytes"
	"context"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/Tweska/TildeverseGallery/pkg/errors"
	"github.com/Tweska/TildeverseGallery/pkg/logger"
	"github.com/Tweska/TildeverseGallery/pkg/storage"
)

// Entry is one user observed on the remote system
type Entry struct {
	Username          string
	ActivityTimestamp int64
}

// Source produces the full census of users. A failure is fatal to the cycle.
type Source interface {
	Fetch(ctx context.Context) ([]Entry, error)
}

// Runner executes a shell command and returns its standard output
type Runner interface {
	Run(ctx context.Context, command string) ([]byte, error)
}

// CommandSource lists users by running a command through a Runner
type CommandSource struct {
	runner  Runner
	command string
	logger  logger.Logger
}

// NewCommandSource creates a source running command through runner
func NewCommandSource(runner Runner, command string, log logger.Logger) *CommandSource {
	if log == nil {
		log = logger.GetLogger()
	}
	return &CommandSource{
		runner:  runner,
		command: command,
		logger:  log.WithField("component", "inventory"),
	}
}

// Fetch runs the listing command and parses its output
func (s *CommandSource) Fetch(ctx context.Context) ([]Entry, error) {
	out, err := s.runner.Run(ctx, s.command)
	if err != nil {
		return nil, errors.Inventory("run listing command", err)
	}

	entries, skipped := Parse(out)
	for _, line := range skipped {
		s.logger.WarnWithFields("Skipping malformed inventory line", map[string]interface{}{
			"line": line,
		})
	}

	s.logger.InfoWithFields("Inventory fetched", map[string]interface{}{
		"users":   len(entries),
		"skipped": len(skipped),
	})

	return entries, nil
}

// Parse reads lines of the form "<epoch seconds> <path or username>".
// The username is the directory holding public_html when a path is given.
// Entries come back newest first; a repeated username keeps its newest
// timestamp. Lines that cannot be parsed are returned in skipped.
func Parse(output []byte) (entries []Entry, skipped []string) {
	latest := make(map[string]int64)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		e, ok := parseLine(line)
		if !ok {
			skipped = append(skipped, line)
			continue
		}

		if ts, seen := latest[e.Username]; !seen || e.ActivityTimestamp > ts {
			latest[e.Username] = e.ActivityTimestamp
		}
	}

	entries = make([]Entry, 0, len(latest))
	for u, ts := range latest {
		entries = append(entries, Entry{Username: u, ActivityTimestamp: ts})
	}
	Sort(entries)

	return entries, skipped
}

func parseLine(line string) (Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Entry{}, false
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || ts < 0 {
		return Entry{}, false
	}

	name := fields[1]
	if strings.Contains(name, "/") {
		p := path.Clean(name)
		if path.Base(p) == "public_html" {
			p = path.Dir(p)
		}
		name = path.Base(p)
	}

	if !ValidUsername(name) {
		return Entry{}, false
	}
	return Entry{Username: name, ActivityTimestamp: ts}, true
}

// ValidUsername reports whether name is safe to use as a file name
func ValidUsername(name string) bool {
	if name == "" || name == "." || name == ".." || name == "*" {
		return false
	}
	if storage.ReservedName(name) {
		return false
	}
	return !strings.ContainsAny(name, "/\\ \t\x00")
}

// Sort orders entries newest first, ties by username
func Sort(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ActivityTimestamp != entries[j].ActivityTimestamp {
			return entries[i].ActivityTimestamp > entries[j].ActivityTimestamp
		}
		return entries[i].Username < entries[j].Username
	})
}

// Static is a Source returning a fixed list
type Static struct {
	Entries []Entry
	Err     error
}

// Fetch implements Source
func (s *Static) Fetch(ctx context.Context) ([]Entry, error) {
	if s.Err != nil {
		return nil, errors.Inventory("static", s.Err)
	}
	out := make([]Entry, len(s.Entries))
	copy(out, s.Entries)
	return out, nil
}
