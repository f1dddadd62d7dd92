// internal/recommend/recommend.go
package recommend

import (
	"sort"
	"strings"

	"kids-meal-log/internal/models"
)

type Options struct {
	MinPercent float64
	TopN       int
}

func DefaultOptions() Options {
	return Options{MinPercent: 70, TopN: 3}
}

// Recommend returns the foods a child eats best at a given meal: the mean
// amount consumed per food, kept when at least opts.MinPercent, highest first,
// at most opts.TopN entries. Equal averages keep the order in which the foods
// first appear in events. The result is never nil.
func Recommend(events []*models.MealEvent, child, mealType string, opts Options) []models.FoodScore {
	result := []models.FoodScore{}
	if opts.TopN <= 0 {
		return result
	}

	type group struct {
		sum   float64
		count int
	}
	groups := map[string]*group{}
	var order []string

	for _, e := range events {
		if e == nil || e.ChildName != child || e.MealType != mealType {
			continue
		}
		g, ok := groups[e.Food]
		if !ok {
			g = &group{}
			groups[e.Food] = g
			order = append(order, e.Food)
		}
		g.sum += e.AmountConsumed
		g.count++
	}

	for _, food := range order {
		g := groups[food]
		avg := g.sum / float64(g.count)
		if avg >= opts.MinPercent {
			result = append(result, models.FoodScore{Food: food, AvgPercent: avg})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AvgPercent > result[j].AvgPercent
	})

	if len(result) > opts.TopN {
		result = result[:opts.TopN]
	}
	return result
}

func FoodNames(scores []models.FoodScore) []string {
	names := make([]string, 0, len(scores))
	for _, s := range scores {
		names = append(names, s.Food)
	}
	return names
}

// JoinFoods renders a list for prose: "a", "a and b", "a, b and c".
func JoinFoods(foods []string) string {
	switch len(foods) {
	case 0:
		return ""
	case 1:
		return foods[0]
	}
	return strings.Join(foods[:len(foods)-1], ", ") + " and " + foods[len(foods)-1]
}
