package paper

import (
	"hash/fnv"
	"strconv"
)

// SyntheticToken gives a symbol without a configured token a stable numeric token for offline runs.
func SyntheticToken(symbol string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return strconv.FormatUint(uint64(100_000+h.Sum32()%900_000), 10)
}
