package domain

import "time"

// Category classifies entries of a single direction.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultCategories are created for users that have none.
var DefaultCategories = []struct {
	Name      string
	Direction Direction
}{
	{"Salary", DirectionIncome},
	{"Freelance", DirectionIncome},
	{"Investments", DirectionIncome},
	{"Other", DirectionIncome},
	{"Food", DirectionExpense},
	{"Transport", DirectionExpense},
	{"Housing", DirectionExpense},
	{"Health", DirectionExpense},
	{"Education", DirectionExpense},
	{"Leisure", DirectionExpense},
	{"Clothing", DirectionExpense},
	{"Other", DirectionExpense},
}
