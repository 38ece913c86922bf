package core

// WeekSummaryEntry is what the archive summary shows for one child before the
// week is committed.
type WeekSummaryEntry struct {
	ChildID     string `json:"childId"`
	ChildName   string `json:"childName"`
	TotalChores int    `json:"totalChores"`
	Earnings    Amount `json:"earnings"`
	NewTotal    Amount `json:"newTotal"`
	// ArchiveSeq is the position the week takes in the child's archive,
	// counted from the oldest entry.
	ArchiveSeq int `json:"archiveSeq"`
}

// WeekSummary is the read-only preview of an archive.
type WeekSummary struct {
	WeekOf   string             `json:"weekOf"`
	Children []WeekSummaryEntry `json:"children"`
	Total    Amount             `json:"total"`
}

// SummarizeWeek computes the archive preview without changing anything.
func SummarizeWeek(children []Child, weekOf string) WeekSummary {
	s := WeekSummary{WeekOf: weekOf, Children: make([]WeekSummaryEntry, 0, len(children))}
	for _, c := range children {
		earnings := CalculateWeeklyEarnings(c.Chores)
		s.Children = append(s.Children, WeekSummaryEntry{
			ChildID:     c.ID,
			ChildName:   c.Name,
			TotalChores: c.Chores.Total(),
			Earnings:    earnings,
			NewTotal:    c.TotalEarnings.Add(earnings),
			ArchiveSeq:  len(c.Archive),
		})
		s.Total = s.Total.Add(earnings)
	}
	return s
}

// Active returns the entries of children who did at least one chore.
func (s WeekSummary) Active() []WeekSummaryEntry {
	var out []WeekSummaryEntry
	for _, e := range s.Children {
		if e.TotalChores > 0 {
			out = append(out, e)
		}
	}
	return out
}

// ChildProgress is the current standing of one child during the week.
type ChildProgress struct {
	ChildID     string   `json:"childId"`
	ChildName   string   `json:"childName"`
	TotalChores int      `json:"totalChores"`
	Categories  int      `json:"categories"`
	Earnings    Amount   `json:"earnings"`
	NextTier    *TierGap `json:"nextTier,omitempty"`
}

// Progress reports every child's reward standing and the gap to the next tier.
func Progress(children []Child) []ChildProgress {
	out := make([]ChildProgress, 0, len(children))
	for _, c := range children {
		p := ChildProgress{
			ChildID:     c.ID,
			ChildName:   c.Name,
			TotalChores: c.Chores.Total(),
			Categories:  c.Chores.Distinct(),
			Earnings:    CalculateWeeklyEarnings(c.Chores),
		}
		if gap, ok := DefaultTiers.NextTier(c.Chores); ok {
			p.NextTier = &gap
		}
		out = append(out, p)
	}
	return out
}

// Idle returns the children with no chore marked this week.
func Idle(children []Child) []Child {
	var out []Child
	for _, c := range children {
		if c.Chores.Total() == 0 {
			out = append(out, c)
		}
	}
	return out
}
