// Package report summarizes who attended on a given day.
package report

import (
	"sort"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// Present is one attendee with the time of their first sighting.
type Present struct {
	Identity string `json:"identity"`
	Time     string `json:"time"`
}

// Summary lists present and absent identities for one date.
type Summary struct {
	Date    string    `json:"date"`
	Present []Present `json:"present"`
	Absent  []string  `json:"absent"`
}

// Summarize compares the roster with the ledger records of date. Records for
// labels no longer in the roster still count as present. Present is ordered by
// time, Absent by roster order.
func Summarize(store *roster.Store, l *ledger.Ledger, date string) Summary {
	s := Summary{Date: date, Present: []Present{}, Absent: []string{}}

	seen := make(map[string]bool)
	for _, r := range l.RecordsOn(date) {
		s.Present = append(s.Present, Present{Identity: r.Name, Time: r.Time})
		seen[roster.NormalizeIdentity(r.Name)] = true
	}
	sort.SliceStable(s.Present, func(i, j int) bool {
		return s.Present[i].Time < s.Present[j].Time
	})

	for _, e := range store.Entries() {
		if !seen[roster.NormalizeIdentity(e.Identity)] {
			s.Absent = append(s.Absent, e.Identity)
		}
	}
	return s
}
