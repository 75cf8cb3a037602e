package persona

// DefaultID is the persona used when a session does not ask for one.
const DefaultID = "nutribot"

// Persona describes the assistant identity exposed to the widget.
type Persona struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	OpeningLine string   `json:"openingLine"`
	Placeholder string   `json:"placeholder,omitempty"`
	Instruction string   `json:"-"`
	Expertise   []string `json:"expertise,omitempty"`
}

// Seed provides the built-in assistant.
func Seed() []Persona {
	return []Persona{
		{
			ID:          DefaultID,
			Name:        "NutriBot",
			Title:       "NutriBot Assistant",
			OpeningLine: "Hello! I'm NutriBot, your food intelligence assistant. Ask me anything about nutrition, ingredients, cooking methods, or cultural food contexts!",
			Placeholder: "Ask about food, nutrition, or recipes...",
			Instruction: "You are NutriBot, an AI assistant for the NutriGraph food intelligence platform.\n" +
				"Your purpose is to help users with questions about food, nutrition, ingredients, cooking methods,\n" +
				"and cultural food contexts. Be friendly, informative, and concise.",
			Expertise: []string{"nutrition", "ingredients", "cooking methods", "food culture"},
		},
	}
}
