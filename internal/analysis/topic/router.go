// Package topic routes a user query to one of a few fixed answer categories
// by keyword matching. It backs the local answers used when the remote model
// cannot be reached.
package topic

import "strings"

// Category labels a fallback answer.
type Category string

const (
	Recipe    Category = "recipe"
	Nutrition Category = "nutrition"
	Culture   Category = "culture"
	General   Category = "general"
)

type rule struct {
	category Category
	keywords []string
}

// rules are evaluated in order and the first match wins.
var rules = []rule{
	{category: Recipe, keywords: []string{"recipe", "how to cook", "how to make"}},
	{category: Nutrition, keywords: []string{"nutrition", "calories", "protein"}},
	{category: Culture, keywords: []string{"culture", "tradition", "origin"}},
}

var answers = map[Category]string{
	Recipe: "I'm currently having trouble connecting to my knowledge base. " +
		"For recipes and cooking instructions, you can try using the search feature above to find specific foods, " +
		"or check our nutrition section for healthy meal ideas.",
	Nutrition: "I'm currently having trouble connecting to my knowledge base. " +
		"For nutrition information, try searching for a specific food in our search bar above, " +
		"or explore the nutrition tab for detailed nutritional data.",
	Culture: "I'm currently having trouble connecting to my knowledge base. " +
		"To learn about food cultures and traditions, try our Cultural Explorer tab " +
		"where you can discover foods from different regions and their cultural significance.",
	General: "I'm sorry, I'm having trouble connecting to my knowledge base right now. " +
		"While I'm getting back online, feel free to use the search features above to explore foods, " +
		"or try again in a few moments.",
}

// Classify returns the category of the query. Matching is case-insensitive.
func Classify(query string) Category {
	normalized := strings.ToLower(query)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(normalized, kw) {
				return r.category
			}
		}
	}
	return General
}

// Answer returns the fixed text for a category. Unknown categories get the
// general answer.
func Answer(c Category) string {
	if text, ok := answers[c]; ok {
		return text
	}
	return answers[General]
}

// Fallback classifies the query and returns its category with the answer.
func Fallback(query string) (Category, string) {
	c := Classify(query)
	return c, Answer(c)
}
