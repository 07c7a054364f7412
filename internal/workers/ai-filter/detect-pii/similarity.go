package detectpii

// similarText returns the similarity of a and b as a percentage, computed
// the way PHP's similar_text does: the longest common substring is counted
// and the remainders to its left and right are compared recursively.
func similarText(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	common := similarChars(a, b)
	return float64(common*2) * 100 / float64(len(a)+len(b))
}

func similarChars(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	posA, posB, longest := 0, 0, 0
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			k := 0
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > longest {
				posA, posB, longest = i, j, k
			}
		}
	}
	if longest == 0 {
		return 0
	}
	return longest +
		similarChars(a[:posA], b[:posB]) +
		similarChars(a[posA+longest:], b[posB+longest:])
}

// levenshtein returns the edit distance between a and b over runes.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	runesA := []rune(a)
	runesB := []rune(b)
	if len(runesA) == 0 {
		return len(runesB)
	}
	if len(runesB) == 0 {
		return len(runesA)
	}

	prev := make([]int, len(runesB)+1)
	curr := make([]int, len(runesB)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(runesA); i++ {
		curr[0] = i
		for j := 1; j <= len(runesB); j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(runesB)]
}
