package domain

import (
	"math"
	"strings"
	"unicode"
)

// KeywordGroup is a set of interchangeable flood-topic terms sharing a weight.
type KeywordGroup struct {
	Weight int
	Terms  []string
}

// DefaultKeywordGroups returns the flood-topic keyword table used in
// production. Injected into scorers so tests can supply fixtures instead.
func DefaultKeywordGroups() []KeywordGroup {
	return []KeywordGroup{
		{Weight: 5, Terms: []string{"淹水", "積水", "水災", "洪水", "flood", "flooding", "inundation"}},
		{Weight: 4, Terms: []string{"豪雨", "暴雨", "大雨", "溢堤", "heavy rain", "torrential rain", "downpour"}},
		{Weight: 3, Terms: []string{"颱風", "台風", "災情", "警戒", "typhoon", "storm surge"}},
		{Weight: 2, Terms: []string{"排水", "下水道", "抽水站", "水位", "drainage", "river level", "pumping station"}},
		{Weight: 2, Terms: []string{"封路", "道路封閉", "交通中斷", "road closed", "road closure"}},
		{Weight: 1, Terms: []string{"下雨", "淹到", "水好深", "又淹", "rain", "soaked"}},
	}
}

// Source-type multipliers applied to the combined score.
var sourceTypeWeights = map[string]float64{
	ContentTypeGovernment: 2.0,
	ContentTypeSensor:     2.0,
	ContentTypeWeather:    1.5,
	ContentTypeNational:   1.2,
}

const (
	maxLocationScore = 10
	maxTopicScore    = 15
)

// Scorer computes geographic and topical relevance for discovered content.
type Scorer struct {
	groups []KeywordGroup
}

// NewScorer builds a Scorer from a keyword table. A nil table falls back to
// the default groups.
func NewScorer(groups []KeywordGroup) *Scorer {
	if groups == nil {
		groups = DefaultKeywordGroups()
	}
	return &Scorer{groups: groups}
}

// LocationScore measures how strongly (title, body) reference the target
// location. Capped at 10.
func (s *Scorer) LocationScore(title, body, target string) int {
	target = strings.TrimSpace(target)
	if target == "" {
		return 0
	}

	score := 0
	for _, frag := range SplitAdministrative(target) {
		long := len([]rune(frag)) >= 3
		if strings.Contains(title, frag) {
			if long {
				score += 4
			} else {
				score += 3
			}
		}
		if strings.Contains(body, frag) {
			if long {
				score += 2
			} else {
				score++
			}
		}
	}

	if strings.Contains(title, target) || strings.Contains(body, target) {
		score += 3
	}

	if score > maxLocationScore {
		return maxLocationScore
	}
	return score
}

// TopicScore measures flood relevance of (title, body) against the keyword
// table. A keyword found in the title counts twice. Capped at 15.
func (s *Scorer) TopicScore(title, body string) int {
	lowerTitle := strings.ToLower(title)
	lowerAll := lowerTitle + " " + strings.ToLower(body)

	score := 0
	for _, g := range s.groups {
		for _, term := range g.Terms {
			t := strings.ToLower(term)
			if !strings.Contains(lowerAll, t) {
				continue
			}
			score += g.Weight
			if strings.Contains(lowerTitle, t) {
				score += g.Weight
			}
		}
	}

	if score > maxTopicScore {
		return maxTopicScore
	}
	return score
}

// Combined folds location and topic scores into a ranking score: the sum is
// multiplied by the source-type weight, gets a small priority bonus, and is
// rounded to one decimal and clamped to the adapter's ceiling.
func (s *Scorer) Combined(locScore, topicScore int, sourceType string, priority int, ceiling float64) float64 {
	w, ok := sourceTypeWeights[sourceType]
	if !ok {
		w = 1.0
	}
	v := float64(locScore+topicScore)*w + float64(priority)*0.1
	v = math.Round(v*10) / 10
	if v < 0 {
		return 0
	}
	if ceiling > 0 && v > ceiling {
		return ceiling
	}
	return v
}

// SplitAdministrative breaks a Taiwanese address into searchable fragments
// on administrative division markers (市縣區鄉鎮村里), whitespace, and list
// separators. Single-character fragments are dropped — they match almost
// anything.
func SplitAdministrative(target string) []string {
	var frags []string
	var cur []rune
	flush := func() {
		if len(cur) > 1 {
			frags = append(frags, string(cur))
		}
		cur = cur[:0]
	}
	for _, r := range target {
		if isAdminDelim(r) || unicode.IsSpace(r) || r == ',' || r == '、' || r == '，' {
			flush()
			continue
		}
		cur = append(cur, r)
	}
	flush()
	return frags
}

func isAdminDelim(r rune) bool {
	switch r {
	case '市', '縣', '區', '鄉', '鎮', '村', '里':
		return true
	}
	return false
}
