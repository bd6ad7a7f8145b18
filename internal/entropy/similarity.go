package entropy

// Ratcliff/Obershelp similarity: find the longest common substring,
// recurse into the unmatched pieces on each side, and score
// 2*matched / (len(a)+len(b)). Operates on runes so multibyte text
// compares correctly.

// Similarity returns the Ratcliff/Obershelp ratio of two strings,
// in [0, 1] where 1.0 means identical
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchedRunes(ra, rb)) / float64(total)
}

// DiffRatio returns the fraction of characters that changed between two
// texts, in [0, 1] where 0.0 means identical
func DiffRatio(a, b string) float64 {
	return 1.0 - Similarity(a, b)
}

func matchedRunes(a, b []rune) int {
	ai, bi, size := longestCommon(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchedRunes(a[:ai], b[:bi]) +
		matchedRunes(a[ai+size:], b[bi+size:])
}

// longestCommon finds the longest common substring of a and b, preferring
// the earliest occurrence in a, then in b
func longestCommon(a, b []rune) (bestA, bestB, bestSize int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// lengths[j] holds the run length ending at the previous a index and
	// b index j-1
	lengths := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		// Walk b backwards so lengths[j-1] still holds the prior row
		for j := len(b); j >= 1; j-- {
			if a[i] == b[j-1] {
				lengths[j] = lengths[j-1] + 1
				if lengths[j] > bestSize {
					bestSize = lengths[j]
					bestA = i - bestSize + 1
					bestB = j - bestSize
				}
			} else {
				lengths[j] = 0
			}
		}
	}
	return bestA, bestB, bestSize
}
