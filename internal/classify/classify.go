// Package classify decides whether a whole-frame classification reports a
// game board.
//
// Classification itself is done elsewhere; this package only evaluates the
// labels the classifier produced.
package classify

import (
	"fmt"
	"sort"
	"strings"
)

// Classification is one label produced by an image classifier.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Decision is the outcome of evaluating a classification result.
type Decision struct {
	Accepted bool             `json:"accepted"`
	Top      Classification   `json:"top"`
	Kept     []Classification `json:"kept"`
	Message  string           `json:"message"`
}

// Acceptor holds the acceptance rules.
//
// Labels are ordered by confidence and the first TopN are considered. Of
// those, labels with confidence strictly above Threshold are kept. The result
// is accepted when the first kept label contains any of Keywords
// (case-insensitive).
type Acceptor struct {
	Keywords  []string
	Threshold float64
	TopN      int
}

// DefaultAcceptor returns the crossword board rules: only labels naming a
// crossword are accepted.
func DefaultAcceptor() Acceptor {
	return Acceptor{
		Keywords:  []string{"crossword"},
		Threshold: 0.2,
		TopN:      5,
	}
}

// Evaluate applies the rules to labels. labels is not modified.
func (a Acceptor) Evaluate(labels []Classification) Decision {
	ordered := make([]Classification, len(labels))
	copy(ordered, labels)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})
	if a.TopN > 0 && len(ordered) > a.TopN {
		ordered = ordered[:a.TopN]
	}

	kept := make([]Classification, 0, len(ordered))
	for _, c := range ordered {
		if c.Confidence > a.Threshold {
			kept = append(kept, c)
		}
	}

	d := Decision{Kept: kept, Message: Message(kept)}
	if len(kept) == 0 {
		return d
	}
	d.Top = kept[0]
	d.Accepted = a.matches(kept[0].Label)
	return d
}

func (a Acceptor) matches(label string) bool {
	label = strings.ToLower(label)
	for _, kw := range a.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(label, kw) {
			return true
		}
	}
	return false
}

// Message formats labels one per line as "label confidence".
func Message(labels []Classification) string {
	if len(labels) == 0 {
		return "Nothing recognized."
	}
	lines := make([]string, len(labels))
	for i, c := range labels {
		lines[i] = fmt.Sprintf("%s %.2f", c.Label, c.Confidence)
	}
	return strings.Join(lines, "\n")
}
