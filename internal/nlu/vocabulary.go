package nlu

import (
	"sort"
	"strings"
)

// Canonical maps a canonical identifier to the phrases that refer to it.
type Canonical struct {
	ID       string
	Synonyms []string
}

// AppNames is the ordered application vocabulary. The first entry with a
// synonym contained in the utterance wins.
var AppNames = []Canonical{
	{ID: "vscode", Synonyms: []string{"visual studio code", "vs code", "vscode", "code editor", "editor"}},
	{ID: "terminal", Synonyms: []string{"terminal", "command line", "console", "shell"}},
	{ID: "browser", Synonyms: []string{"web browser", "browser", "chrome", "firefox", "safari"}},
	{ID: "spotify", Synonyms: []string{"spotify", "music player", "music"}},
	{ID: "files", Synonyms: []string{"file manager", "file explorer", "finder", "files"}},
	{ID: "settings", Synonyms: []string{"settings", "preferences", "control panel"}},
	{ID: "calculator", Synonyms: []string{"calculator"}},
	{ID: "notes", Synonyms: []string{"notepad", "notes"}},
	{ID: "slack", Synonyms: []string{"slack"}},
	{ID: "discord", Synonyms: []string{"discord"}},
}

// Themes is the ordered theme vocabulary, resolved the same way as AppNames.
var Themes = []Canonical{
	{ID: "dark", Synonyms: []string{"dark mode", "dark theme", "night mode", "dark", "night"}},
	{ID: "light", Synonyms: []string{"light mode", "light theme", "day mode", "light"}},
	{ID: "high-contrast", Synonyms: []string{"high contrast", "high-contrast"}},
	{ID: "solarized", Synonyms: []string{"solarized"}},
	{ID: "dracula", Synonyms: []string{"dracula"}},
}

// Resolve returns the ID of the first entry in table with a synonym that is a
// substring of text.
func Resolve(table []Canonical, text string) (string, bool) {
	text = Normalize(text)
	if text == "" {
		return "", false
	}
	for _, c := range table {
		for _, syn := range c.Synonyms {
			if strings.Contains(text, syn) {
				return c.ID, true
			}
		}
	}
	return "", false
}

// Vocabulary returns every single-word term known to the app and theme tables
// plus the synonym groups. Used by phonetic correction to snap misheard words.
func Vocabulary() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(phrase string) {
		for _, w := range strings.Fields(phrase) {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	for _, table := range [][]Canonical{AppNames, Themes} {
		for _, c := range table {
			add(c.ID)
			for _, s := range c.Synonyms {
				add(s)
			}
		}
	}
	for _, g := range SynonymGroups {
		add(g.Canonical)
		for _, s := range g.Variants {
			add(s)
		}
	}
	return out
}

func sortLongestFirst(words []string) {
	sort.SliceStable(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
}
