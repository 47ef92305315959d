// Package catalog enumerates snapshot directories beneath a target and
// resolves timespec strings (spec §4.6) against the sorted result.
package catalog

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ltp-backup/ltp/internal/ltperrors"
)

// IncompleteSuffix is appended to a snapshot's name while it is under
// construction.
const IncompleteSuffix = "_incomplete"

// NameLayout is the time.Parse/time.Format layout for a snapshot's base name.
const NameLayout = "2006-01-02_150405"

var namePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{6}$`)

// Catalog is the set of snapshot directory names found under a target,
// partitioned into complete and incomplete.
type Catalog struct {
	Complete   []string // sorted ascending, lexicographic == chronological
	Incomplete []string
}

// List scans targetDir for entries matching the snapshot name pattern.
func List(targetDir string) (Catalog, error) {
	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return Catalog{}, &ltperrors.IOFailure{Path: targetDir, Err: err}
	}

	var cat Catalog
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, IncompleteSuffix) {
			base := strings.TrimSuffix(name, IncompleteSuffix)
			if namePattern.MatchString(base) {
				cat.Incomplete = append(cat.Incomplete, base)
			}
			continue
		}
		if namePattern.MatchString(name) {
			cat.Complete = append(cat.Complete, name)
		}
	}
	sort.Strings(cat.Complete)
	sort.Strings(cat.Incomplete)
	return cat, nil
}

// Path returns the on-disk directory for a complete snapshot name.
func Path(targetDir, name string) string {
	return filepath.Join(targetDir, name)
}

// IncompletePath returns the on-disk directory for a snapshot name while
// still under construction.
func IncompletePath(targetDir, name string) string {
	return filepath.Join(targetDir, name+IncompleteSuffix)
}

// NewName formats a fresh snapshot base name from a timestamp.
func NewName(t time.Time) string {
	return t.Format(NameLayout)
}

// Resolve picks one name out of a sorted (ascending) list of complete
// snapshot names per spec §4.6. now anchors relative descriptors such as
// "1 week ago".
func Resolve(names []string, timespec string, now time.Time) (string, error) {
	if len(names) == 0 {
		return "", &ltperrors.NotFoundError{Subject: "snapshot", Msg: "no snapshots available"}
	}

	switch {
	case timespec == "" || timespec == "last":
		return names[len(names)-1], nil
	case timespec == "previous":
		if len(names) < 2 {
			return "", &ltperrors.NotFoundError{Subject: "previous", Msg: "no previous snapshot"}
		}
		return names[len(names)-2], nil
	case timespec == "first":
		return names[0], nil
	}

	if n, ok := parseNegativeIndex(timespec); ok {
		idx := len(names) + n
		if idx < 0 || idx >= len(names) {
			return "", &ltperrors.NotFoundError{Subject: timespec, Msg: "index out of range"}
		}
		return names[idx], nil
	}

	if name, ok := latestWithPrefix(names, timespec); ok {
		return name, nil
	}

	if limit, ok := parseRelative(timespec, now); ok {
		if name, ok := latestOlderThan(names, limit); ok {
			return name, nil
		}
		return "", &ltperrors.NotFoundError{Subject: timespec, Msg: "no snapshot older than this"}
	}

	return "", &ltperrors.NotFoundError{Subject: timespec, Msg: "unrecognized timespec"}
}

func parseNegativeIndex(s string) (int, bool) {
	if len(s) < 2 || s[0] != '-' {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n >= 0 {
		return 0, false
	}
	return n, true
}

func latestWithPrefix(names []string, prefix string) (string, bool) {
	for i := len(names) - 1; i >= 0; i-- {
		if strings.HasPrefix(names[i], prefix) {
			return names[i], true
		}
	}
	return "", false
}

func latestOlderThan(names []string, limit time.Time) (string, bool) {
	limitName := limit.Format(NameLayout)
	for i := len(names) - 1; i >= 0; i-- {
		if names[i] < limitName {
			return names[i], true
		}
	}
	return "", false
}

// parseRelative understands "<N> <unit> ago" (unit in hour(s)/day(s)/
// week(s)/month(s)/year(s)) and the literal "yesterday". Hour math runs in
// real seconds from now; day/week/month/year math is anchored at midnight
// today minus a whole-day delta, approximating month as 31 days and year as
// 365, matching the source tool this spec was distilled from.
func parseRelative(s string, now time.Time) (time.Time, bool) {
	if s == "yesterday" {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return midnight.AddDate(0, 0, -1), true
	}

	fields := strings.Fields(s)
	if len(fields) != 3 || fields[2] != "ago" {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return time.Time{}, false
	}

	switch strings.TrimSuffix(fields[1], "s") {
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "day":
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return midnight.AddDate(0, 0, -n), true
	case "week":
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return midnight.AddDate(0, 0, -7*n), true
	case "month":
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return midnight.AddDate(0, 0, -31*n), true
	case "year":
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return midnight.AddDate(0, 0, -365*n), true
	default:
		return time.Time{}, false
	}
}
