package core

// Tier maps a (chore count, distinct category) threshold to a fixed cash reward.
type Tier struct {
	Chores     int
	Categories int
	Cash       Amount
}

// Tiers is ordered from the highest reward to the lowest.
type Tiers []Tier

var (
	Tier1 = Tier{Chores: 5, Categories: 2, Cash: NewAmount(2)}
	Tier2 = Tier{Chores: 10, Categories: 3, Cash: NewAmount(5)}

	DefaultTiers = Tiers{Tier2, Tier1}
)

func (t Tier) reachedBy(total, distinct int) bool {
	return total >= t.Chores && distinct >= t.Categories
}

// Reward returns the cash of the first tier the chores satisfy. Tiers are not
// cumulative: only the highest reached tier pays.
func (ts Tiers) Reward(chores Chores) Amount {
	total, distinct := chores.Total(), chores.Distinct()
	for _, t := range ts {
		if t.reachedBy(total, distinct) {
			return t.Cash
		}
	}
	return Amount{}
}

// CalculateWeeklyEarnings applies the default tiers to one child's chores.
func CalculateWeeklyEarnings(chores Chores) Amount {
	return DefaultTiers.Reward(chores)
}

// TierGap describes what is still missing to reach a tier.
type TierGap struct {
	Tier             Tier   `json:"-"`
	Cash             Amount `json:"cash"`
	ChoresNeeded     int    `json:"choresNeeded"`
	CategoriesNeeded int    `json:"categoriesNeeded"`
}

// NextTier returns the lowest-paying tier not reached yet. ok is false once
// the top tier is reached.
func (ts Tiers) NextTier(chores Chores) (gap TierGap, ok bool) {
	total, distinct := chores.Total(), chores.Distinct()
	for i := len(ts) - 1; i >= 0; i-- {
		t := ts[i]
		if t.reachedBy(total, distinct) {
			continue
		}
		return TierGap{
			Tier:             t,
			Cash:             t.Cash,
			ChoresNeeded:     max(0, t.Chores-total),
			CategoriesNeeded: max(0, t.Categories-distinct),
		}, true
	}
	return TierGap{}, false
}

// RewardEarned is raised once when a mark moves a child into a higher tier.
type RewardEarned struct {
	ChildID   string `json:"childId"`
	ChildName string `json:"childName"`
	Amount    Amount `json:"amount"`
}
