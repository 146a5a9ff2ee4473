package usage

// ModelCost accumulates usage for one model (value type).
type ModelCost struct {
	UsageCount        int64
	InputTokens       int64
	CachedInputTokens int64
	OutputTokens      int64
	LiveSearchCalls   int64
	TotalCost         float64
}

// UserCost accumulates usage for one user (value type).
type UserCost struct {
	UsageCount int64
	TotalCost  float64
}

// CostByModel tallies events per model. The returned slice holds model names
// in first-appearance order so callers can render deterministically.
// Token counts on the events are trusted as-is; zero values accumulate as 0.
// This is a PURE function.
func CostByModel(events []Event) (map[string]ModelCost, []string) {
	byModel := make(map[string]ModelCost)
	var order []string

	for _, e := range events {
		mc, seen := byModel[e.Model]
		if !seen {
			order = append(order, e.Model)
		}
		mc.UsageCount++
		mc.InputTokens += e.InputTokens
		mc.CachedInputTokens += e.CachedInputTokens
		mc.OutputTokens += e.OutputTokens
		mc.LiveSearchCalls += e.LiveSearchCalls
		mc.TotalCost += e.TotalCost
		byModel[e.Model] = mc
	}

	return byModel, order
}

// CostByUser tallies events per user in first-appearance order.
// This is a PURE function.
func CostByUser(events []Event) (map[string]UserCost, []string) {
	byUser := make(map[string]UserCost)
	var order []string

	for _, e := range events {
		uc, seen := byUser[e.UserID]
		if !seen {
			order = append(order, e.UserID)
		}
		uc.UsageCount++
		uc.TotalCost += e.TotalCost
		byUser[e.UserID] = uc
	}

	return byUser, order
}

// TotalCost sums the cost of all events.
// This is a PURE function.
func TotalCost(events []Event) float64 {
	var total float64
	for _, e := range events {
		total += e.TotalCost
	}
	return total
}

// CountCoerced returns how many events carry a coerced cost.
// This is a PURE function.
func CountCoerced(events []Event) int {
	n := 0
	for _, e := range events {
		if e.CostCoerced {
			n++
		}
	}
	return n
}
