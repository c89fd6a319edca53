package backtest

// initialCapital normalizes every equity curve.
const initialCapital = 1.0

// Compound builds an equity curve from per-step returns. curve[0] is the
// initial capital and returns[0] is ignored; curve[i] = curve[i-1]*(1+returns[i]).
func Compound(returns []float64) []float64 {
	if len(returns) == 0 {
		return []float64{initialCapital}
	}
	curve := make([]float64, len(returns))
	curve[0] = initialCapital
	for i := 1; i < len(returns); i++ {
		curve[i] = curve[i-1] * (1 + returns[i])
	}
	return curve
}

// position is a long-only book with a stop. It tracks realized capital,
// the shares held while open and the number of entries and exits.
type position struct {
	capital    float64
	holding    bool
	entryPrice float64
	stopPrice  float64
	shares     float64
	trades     int
}

func newPosition() *position {
	return &position{capital: initialCapital}
}

// enter opens the position. sizeBy divides capital into shares.
func (p *position) enter(price, stop, sizeBy float64) {
	p.holding = true
	p.entryPrice = price
	p.stopPrice = stop
	p.shares = p.capital / sizeBy
	p.trades++
}

// exit realizes the position at price.
func (p *position) exit(price float64) {
	p.capital = p.shares * price
	p.holding = false
	p.shares = 0
	p.trades++
}

// stopped reports whether price has hit the stop.
func (p *position) stopped(price float64) bool {
	return p.holding && price <= p.stopPrice
}

// equity marks the book to market at price.
func (p *position) equity(price float64) float64 {
	if p.holding {
		return p.shares * price
	}
	return p.capital
}
