//go:build gofuzz

package altium

func Fuzz(data []byte) int {
	score := 0
	if _, err := NewBytes(data, KindPcbLib, &Options{}); err == nil {
		score = 1
	}
	if _, err := NewBytes(data, KindSchLib, &Options{}); err == nil {
		score = 1
	}
	return score
}
