package permission

// Mask64 is a 64-bit token membership mask indexed by [Registry] bits.
type Mask64 uint64

func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return (m & (1 << bit)) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= (1 << bit)
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= (1 << bit)
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}

// Bits returns the set bit indexes in ascending order.
func (m Mask64) Bits() []int {
	var out []int
	for bit := 0; bit < 64; bit++ {
		if m.Has(bit) {
			out = append(out, bit)
		}
	}
	return out
}
