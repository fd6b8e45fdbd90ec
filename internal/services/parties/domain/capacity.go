package domain

import "strconv"

// Capacity is the derived approved-count view of one party.
type Capacity struct {
	Limit    *int
	Approved int
}

// Unlimited reports whether the party has no participant limit.
func (c Capacity) Unlimited() bool {
	return c.Limit == nil
}

// Remaining returns open seats, or -1 when unlimited.
func (c Capacity) Remaining() int {
	if c.Limit == nil {
		return -1
	}
	return max(*c.Limit-c.Approved, 0)
}

// HasRoom reports whether one more approval fits.
func (c Capacity) HasRoom() bool {
	return c.Limit == nil || c.Approved < *c.Limit
}

// Label renders "approved/limit", using ∞ for unlimited parties.
func (c Capacity) Label() string {
	if c.Limit == nil {
		return strconv.Itoa(c.Approved) + "/∞"
	}
	return strconv.Itoa(c.Approved) + "/" + strconv.Itoa(*c.Limit)
}
