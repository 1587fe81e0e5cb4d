// Package heuristic packs the match signals of an LCCN candidate into a single
// totally ordered integer score.
//
// Each signal owns a decimal band so a score can be compared directly and
// decoded back into its signals by thresholding from the highest band down.
package heuristic

// Band weights, highest to lowest.
const (
	VerifiedWeight = 1_000_000
	TitleWeight    = 100_000
	AuthorWeight   = 10_000
	DateWeight     = 1_000

	// MaxIndex is the largest tie-break index that stays below DateWeight.
	MaxIndex = DateWeight - 1
)

// Score orders candidates; higher is better.
type Score int

// Signals are the independent facts known about a candidate.
type Signals struct {
	Verified bool
	Title    bool
	Author   bool
	Date     bool
	// Index breaks ties between candidates with identical flags. It must be
	// kept at or below MaxIndex.
	Index int
}

// Patch overwrites selected fields of decoded signals. Nil fields are left
// untouched.
type Patch struct {
	Verified *bool
	Title    *bool
	Author   *bool
	Date     *bool
	Index    *int
}

// Encode sums the weights of the active flags plus the tie-break index.
func Encode(s Signals) Score {
	score := 0
	if s.Verified {
		score += VerifiedWeight
	}
	if s.Title {
		score += TitleWeight
	}
	if s.Author {
		score += AuthorWeight
	}
	if s.Date {
		score += DateWeight
	}
	if s.Index > 0 {
		score += s.Index
	}
	return Score(score)
}

// Decode recovers the signals of a score. Every band that is present is
// subtracted before the next one is tested, so Index is always the remainder
// below DateWeight.
func Decode(score Score) Signals {
	var s Signals
	rest := int(score)
	if rest >= VerifiedWeight {
		s.Verified = true
		rest -= VerifiedWeight
	}
	if rest >= TitleWeight {
		s.Title = true
		rest -= TitleWeight
	}
	if rest >= AuthorWeight {
		s.Author = true
		rest -= AuthorWeight
	}
	if rest >= DateWeight {
		s.Date = true
		rest -= DateWeight
	}
	if rest > 0 {
		s.Index = rest
	}
	return s
}

// Update decodes existing, applies patch and re-encodes the result.
func Update(existing Score, patch Patch) Score {
	s := Decode(existing)
	if patch.Verified != nil {
		s.Verified = *patch.Verified
	}
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.Author != nil {
		s.Author = *patch.Author
	}
	if patch.Date != nil {
		s.Date = *patch.Date
	}
	if patch.Index != nil {
		s.Index = *patch.Index
	}
	return Encode(s)
}

// Verified reports whether the score carries the verified band.
func (s Score) Verified() bool {
	return int(s) >= VerifiedWeight
}

// ClampIndex bounds a page position derived index to [0, MaxIndex].
func ClampIndex(index int) int {
	if index < 0 {
		return 0
	}
	if index > MaxIndex {
		return MaxIndex
	}
	return index
}

// Bool returns a pointer to b, for building a Patch.
func Bool(b bool) *bool {
	return &b
}

// Int returns a pointer to i, for building a Patch.
func Int(i int) *int {
	return &i
}
