// Package engagement reduces practice records into dashboard and teacher
// statistics. Every function is a pure function of its arguments; callers
// fetch complete record sets first and pass in the current time.
package engagement

import (
	"math"
	"sort"
	"time"

	"hanashite/internal/models"
)

// UncategorizedLabel groups records whose topic has no category
const UncategorizedLabel = "未分類"

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
)

// Clock fixes the instant statistics are computed at and the location whose
// midnight separates calendar days.
type Clock struct {
	Now time.Time
	Loc *time.Location
}

// NewClock returns a Clock for now in loc (UTC when loc is nil)
func NewClock(now time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: now, Loc: loc}
}

// Today is the calendar day containing Now
func (c Clock) Today() models.Date {
	return models.DateOf(c.Now, c.location())
}

// DateOf is the calendar day containing t
func (c Clock) DateOf(t time.Time) models.Date {
	return models.DateOf(t, c.location())
}

func (c Clock) location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// window is a half-open interval [from, to)
type window struct {
	from, to time.Time
}

func (w window) contains(t time.Time) bool {
	return !t.Before(w.from) && t.Before(w.to)
}

// trailing returns [now-(n+1)*length, now-n*length): n=0 is the current period, n=1 the one before
func (c Clock) trailing(length time.Duration, n int) window {
	to := c.Now.Add(-time.Duration(n) * length)
	return window{from: to.Add(-length), to: to}
}

func countIn(records []models.PracticeRecord, w window) int {
	n := 0
	for _, r := range records {
		if w.contains(r.CreatedAt) {
			n++
		}
	}
	return n
}

// scoreAcc accumulates present scores. Unscored records are skipped; a real 0 counts.
type scoreAcc struct {
	sum   int
	n     int
	best  int
	count int
}

func (a *scoreAcc) add(r models.PracticeRecord) {
	a.count++
	score, ok := r.Score()
	if !ok {
		return
	}
	if a.n == 0 || score > a.best {
		a.best = score
	}
	a.sum += score
	a.n++
}

// mean is 0 for an empty set, never NaN
func (a scoreAcc) mean() float64 {
	if a.n == 0 {
		return 0
	}
	return float64(a.sum) / float64(a.n)
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

// round1 rounds to one decimal place
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func category(r models.PracticeRecord) string {
	if r.TopicCategory == "" {
		return UncategorizedLabel
	}
	return r.TopicCategory
}

// groupByCategory returns per-category accumulators in order of count desc, then name
func groupByCategory(records []models.PracticeRecord) ([]string, map[string]*scoreAcc) {
	groups := map[string]*scoreAcc{}
	for _, r := range records {
		name := category(r)
		acc, ok := groups[name]
		if !ok {
			acc = &scoreAcc{}
			groups[name] = acc
		}
		acc.add(r)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if groups[names[i]].count != groups[names[j]].count {
			return groups[names[i]].count > groups[names[j]].count
		}
		return names[i] < names[j]
	})
	return names, groups
}
