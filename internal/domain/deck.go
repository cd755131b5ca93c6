package domain

// DeckEntry is one question parsed from a markdown deck, before it is
// assigned an ID and attached to a learning objective.
type DeckEntry struct {
	Text        string
	Options     []string
	Answer      string
	Explanation string
	Context     string
	Hash        string
}
