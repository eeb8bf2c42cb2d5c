package indexer

import (
	"sort"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// Score tiers. A match always scores within its tier's range, so a higher
// tier outranks every lower one.
const (
	scoreExact     = 1000
	scoreNamePre   = 800
	scoreNameSub   = 600
	scoreKeywordEq = 500
	scoreKeywordIn = 400
	scoreIDSub     = 200
)

// Match is one search hit.
type Match struct {
	Entry *Entry
	Score float64
}

// Search ranks visible entries against query and returns at most limit
// matches, best first. Scores carry a small penalty for long names so that
// equally good matches prefer the shorter name; remaining ties are broken
// by name.
func (s *Snapshot) Search(query string, limit int) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	var matches []Match
	for _, e := range s.entries {
		if e.NoDisplay {
			continue
		}
		if score := scoreEntry(e, q, s.fuzzy); score > 0 {
			matches = append(matches, Match{Entry: e, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Entry.Name != b.Entry.Name {
			return a.Entry.Name < b.Entry.Name
		}
		return a.Entry.ID < b.Entry.ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func scoreEntry(e *Entry, q string, fuzzy bool) float64 {
	name, id := e.lowerName, e.lowerID
	qlen := float64(len(q))

	var score float64
	switch {
	case name == q || id == q:
		score = scoreExact
	case strings.HasPrefix(name, q):
		score = scoreNamePre + 100*qlen/float64(len(name))
	case strings.Contains(name, q):
		pos := strings.Index(name, q)
		n := float64(len(name))
		score = scoreNameSub + 100*(1-float64(pos)/n) + 100*qlen/n
		// pos >= 1 here, keep strictly below the prefix tier
		score = min(score, scoreNamePre-1)
	default:
		if kw := keywordScore(e.lowerKeywords, q); kw > 0 {
			score = kw
		} else if strings.Contains(id, q) {
			score = scoreIDSub + 50*qlen/float64(len(id))
		} else if fuzzy {
			score = fuzzyScore(name, q)
		}
	}
	if score <= 0 {
		return 0
	}
	return score - lengthPenalty(name)
}

func keywordScore(keywords []string, q string) float64 {
	var best float64
	for _, kw := range keywords {
		switch {
		case kw == q:
			return scoreKeywordEq
		case strings.Contains(kw, q):
			best = max(best, scoreKeywordIn+50*float64(len(q))/float64(len(kw)))
		}
	}
	return best
}

// lengthPenalty is below 0.5, smaller than any gap between distinct scores
// that matter for tier ordering.
func lengthPenalty(name string) float64 {
	return float64(min(len(name), 499)) / 1000
}

var fuzzyInit sync.Once

// fuzzyScore maps an fzf subsequence match on text into (1, 99).
func fuzzyScore(text, pattern string) float64 {
	fuzzyInit.Do(func() { algo.Init("default") })

	chars := util.ToChars([]byte(text))
	res, _ := algo.FuzzyMatchV2(false, true, true, &chars, []rune(pattern), false, nil)
	if res.Start < 0 || res.Score <= 0 {
		return 0
	}
	s := float64(res.Score)
	return 1 + 98*s/(s+50)
}
