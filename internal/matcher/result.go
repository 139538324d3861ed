package matcher

import (
	"github.com/MrWong99/voxcmd/internal/command"
	"github.com/MrWong99/voxcmd/internal/nlu"
	"github.com/MrWong99/voxcmd/internal/transcript"
)

// ErrEmptyUtterance is the error text of a result for blank input.
const ErrEmptyUtterance = "Empty utterance"

// Result is the outcome of one [Matcher.Match] call. It is built fresh for
// every call and owned by the caller afterwards.
//
// Three shapes are possible:
//   - Matched with no MissingEntities: ready to execute.
//   - Matched with MissingEntities and Error set: the intent is known but the
//     caller must re-prompt for the listed entities.
//   - Not matched: Suggestions lists near misses; Error is set only for
//     invalid input.
type Result struct {
	Matched         bool                    `json:"matched"`
	Confidence      float64                 `json:"confidence"`
	Utterance       string                  `json:"utterance"`
	Intent          string                  `json:"intent,omitempty"`
	Command         *command.Command        `json:"command,omitempty"`
	Entities        nlu.Entities            `json:"entities,omitempty"`
	Pattern         string                  `json:"pattern,omitempty"`
	Alternatives    []Alternative           `json:"alternatives,omitempty"`
	Suggestions     []Suggestion            `json:"suggestions,omitempty"`
	MissingEntities []string                `json:"missingEntities,omitempty"`
	Corrections     []transcript.Correction `json:"corrections,omitempty"`
	Error           string                  `json:"error,omitempty"`
}

// Executable reports whether the result can be handed to an executor.
func (r *Result) Executable() bool {
	return r.Matched && len(r.MissingEntities) == 0
}

// Alternative is a runner-up match kept for disambiguation.
type Alternative struct {
	Intent     string       `json:"intent"`
	Confidence float64      `json:"confidence"`
	Pattern    string       `json:"pattern"`
	Entities   nlu.Entities `json:"entities,omitempty"`
}

// Suggestion is a near-miss command offered when nothing matched.
type Suggestion struct {
	Intent      string  `json:"intent"`
	Description string  `json:"description,omitempty"`
	Example     string  `json:"example"`
	Similarity  float64 `json:"similarity"`
}
