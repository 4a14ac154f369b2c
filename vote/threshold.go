package vote

// Threshold returns the GRANDPA supermajority threshold for total voter
// weight w: the smallest integer t with t > 2w/3, i.e. floor(2w/3) + 1.
func Threshold(w uint64) uint64 {
	return 2*w/3 + 1
}
