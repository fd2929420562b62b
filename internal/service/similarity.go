package service

import "strings"

// similarityRatio returns the Ratcliff/Obershelp ratio 2*M/T of two strings,
// compared case-insensitively rune by rune. M is the number of runes in the
// matching blocks found by repeatedly taking the longest common substring.
func similarityRatio(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

type runeSpan struct {
	alo, ahi, blo, bhi int
}

func matchingRunes(a, b []rune) int {
	positions := make(map[rune][]int, len(b))
	for j, r := range b {
		positions[r] = append(positions[r], j)
	}

	matched := 0
	queue := []runeSpan{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		span := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestCommonBlock(a, positions, span)
		if k == 0 {
			continue
		}
		matched += k
		if span.alo < i && span.blo < j {
			queue = append(queue, runeSpan{span.alo, i, span.blo, j})
		}
		if i+k < span.ahi && j+k < span.bhi {
			queue = append(queue, runeSpan{i + k, span.ahi, j + k, span.bhi})
		}
	}
	return matched
}

// longestCommonBlock finds the longest block a[i:i+k] == b[j:j+k] inside the span,
// preferring the earliest i and then the earliest j on ties.
func longestCommonBlock(a []rune, positions map[rune][]int, span runeSpan) (int, int, int) {
	bestI, bestJ, bestK := span.alo, span.blo, 0
	lengths := map[int]int{}
	for i := span.alo; i < span.ahi; i++ {
		next := map[int]int{}
		for _, j := range positions[a[i]] {
			if j < span.blo {
				continue
			}
			if j >= span.bhi {
				break
			}
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestK {
				bestI, bestJ, bestK = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return bestI, bestJ, bestK
}
