package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CategoryAmount is an amount aggregated by category name.
type CategoryAmount struct {
	Category string
	Amount   decimal.Decimal
}

// Summary holds income and expense totals over some set of transactions.
type Summary struct {
	IncomeTotal  decimal.Decimal
	ExpenseTotal decimal.Decimal
	Balance      decimal.Decimal
	IncomeCount  int
	ExpenseCount int
}

// category palette, hex RGB
var categoryColors = map[string]string{
	"Food":          "#4CAF50",
	"Transport":     "#FF9800",
	"Shopping":      "#9C27B0",
	"Bills":         "#2196F3",
	"Health":        "#009688",
	"Education":     "#FFEB3B",
	"Entertainment": "#F44336",
	CategoryOthers:  "#9E9E9E",
	"Groceries":     "#8BC34A",
	"Utilities":     "#03A9F4",
	"Rent":          "#795548",
	"Insurance":     "#3F51B5",
	"Gifts":         "#E91E63",
	"Travel":        "#FFC107",
	"Fitness":       "#CDDC39",
	CategoryIncome:  "#388E3C",
}

// CategoryColor returns the chart color for a category. Unknown categories
// get the "Others" gray.
func CategoryColor(category string) string {
	c := NormalizeCategory(category)
	if color, ok := categoryColors[c]; ok {
		return color
	}
	for name, color := range categoryColors {
		if strings.EqualFold(name, c) {
			return color
		}
	}
	return categoryColors[CategoryOthers]
}
