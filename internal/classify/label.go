// Package classify assigns structural labels to blocks of page text. A pure
// heuristic path is always available and never abstains; an optional model
// path calls an OpenAI-compatible backend under a strict JSON contract and
// falls back to the heuristics on any failure.
package classify

// Label is the structural class of a block. The set is closed; anything a
// backend emits outside it is treated as a contract violation.
type Label string

const (
	Title    Label = "title"
	Section  Label = "section"
	ListItem Label = "list_item"
	Caption  Label = "caption"
	Footnote Label = "footnote"
	Body     Label = "body"
	// Abstain marks a model prediction whose confidence fell below the
	// configured threshold. The heuristic path never produces it.
	Abstain Label = "abstain"
)

// Prediction sources.
const (
	SourceHeuristic = "heuristic"
	SourceModel     = "model"
)

// Labels returns every label in stable order, Abstain last.
func Labels() []Label {
	return []Label{Title, Section, ListItem, Caption, Footnote, Body, Abstain}
}

// ParseLabel maps s onto the closed label set.
func ParseLabel(s string) (Label, bool) {
	switch Label(s) {
	case Title, Section, ListItem, Caption, Footnote, Body, Abstain:
		return Label(s), true
	}
	return "", false
}

func (l Label) String() string { return string(l) }
