package m3u

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"summary-processor/types"
)

// HistoryHeader is the header of the sheet ParseHistory produces. Title and
// Artist line up with the consolidation engine's canonical fields; Date is
// informational and dropped during consolidation.
var HistoryHeader = []string{"Date", "Title", "Artist"}

var (
	timeTagPattern   = regexp.MustCompile(`(?i)<time>(.*?)</time>`)
	titleTagPattern  = regexp.MustCompile(`(?i)<title>(.*?)</title>`)
	artistTagPattern = regexp.MustCompile(`(?i)<artist>(.*?)</artist>`)
	clockPattern     = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)
)

// ParseHistory reads EXTVDJ playlist lines into a live-history sheet.
// startDate is the calendar day the set began; when an entry's clock time is
// earlier than the previous entry's, the set crossed midnight and the date
// advances. Entries whose key is already in seen are skipped, and every
// emitted key is added to seen.
func ParseHistory(name string, lines []string, startDate time.Time, seen map[string]struct{}) types.SourceSheet {
	sheet := types.SourceSheet{Name: name, Header: HistoryHeader}

	date := startDate
	prevMinutes := -1
	for _, line := range lines {
		if !strings.Contains(line, "#EXTVDJ:") {
			continue
		}

		clock := tagValue(timeTagPattern, line)
		title := tagValue(titleTagPattern, line)
		artist := tagValue(artistTagPattern, line)
		if title == "" && artist == "" {
			continue
		}

		minutes, ok := clockMinutes(clock)
		if ok {
			if prevMinutes >= 0 && minutes < prevMinutes {
				date = date.AddDate(0, 0, 1)
			}
			prevMinutes = minutes
		}

		played := date.Format("2006-01-02")
		if clock != "" {
			played = fmt.Sprintf("%s %s", played, clock)
		}

		key := EntryKey(played, title, artist)
		if _, dup := seen[key]; dup {
			continue
		}
		if seen != nil {
			seen[key] = struct{}{}
		}

		sheet.Rows = append(sheet.Rows, []string{played, title, artist})
	}
	return sheet
}

// EntryKey identifies one history entry for cross-file deduplication.
func EntryKey(played, title, artist string) string {
	return strings.ToLower(strings.Join([]string{played, title, artist}, "||"))
}

func tagValue(pattern *regexp.Regexp, line string) string {
	if m := pattern.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func clockMinutes(clock string) (int, bool) {
	m := clockPattern.FindStringSubmatch(clock)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min, true
}
