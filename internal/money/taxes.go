package money

// Line is the tax owed for a single tax rate.
type Line struct {
	RateID int64 `json:"rateId"`
	Amount Money `json:"amount"`
}

// Taxes is an ordered rate id to amount map. Order follows first insertion so
// results stay deterministic across recalculations.
type Taxes []Line

// Get returns the amount for a rate id.
func (t Taxes) Get(rateID int64) Money {
	for _, l := range t {
		if l.RateID == rateID {
			return l.Amount
		}
	}
	return Zero
}

// Add accumulates amount into the line for rateID, appending when missing.
func (t Taxes) Add(rateID int64, amount Money) Taxes {
	for i := range t {
		if t[i].RateID == rateID {
			t[i].Amount = t[i].Amount.Add(amount)
			return t
		}
	}
	return append(t, Line{RateID: rateID, Amount: amount})
}

// Merge adds every line of other into t.
func (t Taxes) Merge(other Taxes) Taxes {
	for _, l := range other {
		t = t.Add(l.RateID, l.Amount)
	}
	return t
}

// Map applies fn to every amount and returns a new set.
func (t Taxes) Map(fn func(Money) Money) Taxes {
	out := make(Taxes, len(t))
	for i, l := range t {
		out[i] = Line{RateID: l.RateID, Amount: fn(l.Amount)}
	}
	return out
}

// Sum totals every line.
func (t Taxes) Sum() Money {
	total := Zero
	for _, l := range t {
		total = total.Add(l.Amount)
	}
	return total
}

// Clone copies the set.
func (t Taxes) Clone() Taxes {
	if t == nil {
		return nil
	}
	out := make(Taxes, len(t))
	copy(out, t)
	return out
}
