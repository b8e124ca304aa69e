package domain

import "unicode/utf8"

const (
	gsmSingleSegmentLimit  = 160
	gsmMultiSegmentLimit   = 153
	ucs2SingleSegmentLimit = 70
	ucs2MultiSegmentLimit  = 67
)

// SegmentCount estimates how many SMS parts a body is billed as. A body with
// any character outside 7-bit ASCII is treated as UCS-2. An empty body still
// counts as one segment.
func SegmentCount(body string) int {
	if body == "" {
		return 1
	}

	single, multi := gsmSingleSegmentLimit, gsmMultiSegmentLimit
	for _, r := range body {
		if r > 127 {
			single, multi = ucs2SingleSegmentLimit, ucs2MultiSegmentLimit
			break
		}
	}

	length := utf8.RuneCountInString(body)
	if length <= single {
		return 1
	}
	return (length + multi - 1) / multi
}
