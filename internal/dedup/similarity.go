package dedup

const (
	// DefaultSimilarityThreshold is the inclusive ratio at which titles collide.
	DefaultSimilarityThreshold = 0.85
	// DefaultTitleWindow bounds how many recent stored titles are compared.
	DefaultTitleWindow = 50
)

// Matcher flags candidate titles that are near-identical to stored ones.
type Matcher struct {
	threshold float64
}

// NewMatcher builds a matcher; thresholds outside (0, 1] fall back to the default.
func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return Matcher{threshold: threshold}
}

// Threshold returns the configured duplicate ratio.
func (m Matcher) Threshold() float64 {
	return m.threshold
}

// IsMatch reports whether a ratio counts as a duplicate.
func (m Matcher) IsMatch(ratio float64) bool {
	return ratio >= m.threshold
}

// FindDuplicate compares the candidate against stored titles and returns the
// first one whose ratio reaches the threshold. Both sides are normalized.
func (m Matcher) FindDuplicate(candidate string, stored []string) (string, float64, bool) {
	normalized := NormalizeText(candidate)
	for _, title := range stored {
		ratio := Ratio(normalized, NormalizeText(title))
		if m.IsMatch(ratio) {
			return title, ratio, true
		}
	}
	return "", 0, false
}

// Ratio returns 2*M/T where M is the number of characters in matching blocks
// (longest common substring, then recursively on the unmatched remainders to
// its left and right) and T the total length of both strings.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingChars(ra, rb)) / float64(total)
}

func matchingChars(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, k := longestMatch(a, b)
	if k == 0 {
		return 0
	}
	return k + matchingChars(a[:i], b[:j]) + matchingChars(a[i+k:], b[j+k:])
}

// longestMatch finds the longest common block, preferring the earliest start
// in a and then in b among blocks of equal length.
func longestMatch(a, b []rune) (int, int, int) {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	bestI, bestJ, bestK := 0, 0, 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > bestK {
					bestK = curr[j]
					bestI = i - bestK
					bestJ = j - bestK
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}

	return bestI, bestJ, bestK
}
