package feed

import (
	"errors"
	"testing"

	"github.com/newthinker/fastquant/internal/core"
)

func f(v float64) *float64 { return &v }

func TestForwardFill(t *testing.T) {
	tests := []struct {
		name string
		in   []*float64
		def  float64
		want []float64
	}{
		{"no gaps", []*float64{f(1), f(2)}, 0, []float64{1, 2}},
		{"leading gap takes default", []*float64{nil, nil, f(3)}, 7, []float64{7, 7, 3}},
		{"inner gap carries", []*float64{f(1), nil, nil, f(4), nil}, 0, []float64{1, 1, 1, 4, 4}},
		{"all missing", []*float64{nil, nil}, 2.5, []float64{2.5, 2.5}},
		{"empty", nil, 1, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForwardFill(tt.in, tt.def)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBars(t *testing.T) {
	raw := []core.RawBar{
		{Open: f(10), High: f(11), Low: f(9), Close: nil},
		{Open: nil, High: f(12), Low: f(10), Close: f(11)},
	}
	bars := Bars(raw, f(0))

	if !bars.Aligned() || bars.Len() != 2 {
		t.Fatalf("unexpected shape: %+v", bars)
	}
	if bars.Close[0] != 0 {
		t.Errorf("leading close gap should take the default, got %f", bars.Close[0])
	}
	if bars.Open[1] != 10 {
		t.Errorf("open gap should carry 10, got %f", bars.Open[1])
	}
}

func TestBars_BackfillsFromFirstPresent(t *testing.T) {
	raw := []core.RawBar{
		{Open: f(10), High: f(11), Low: f(9), Close: nil},
		{Open: f(10), High: f(12), Low: f(10), Close: f(11)},
		{Open: f(11), High: f(12), Low: f(10), Close: nil},
	}
	bars := Bars(raw, nil)

	want := []float64{11, 11, 11}
	for i, v := range want {
		if bars.Close[i] != v {
			t.Errorf("Close[%d] = %f, want %f", i, bars.Close[i], v)
		}
	}
	if FirstPresent([]*float64{nil, nil}) != 0 {
		t.Error("FirstPresent of all-missing should be 0")
	}
}

func TestAveragePrice(t *testing.T) {
	bars := core.BarSeries{
		Open:  []float64{10, 20},
		High:  []float64{14, 24},
		Low:   []float64{8, 16},
		Close: []float64{12, 20},
	}
	avg, err := AveragePrice(bars)
	if err != nil {
		t.Fatalf("AveragePrice() error = %v", err)
	}
	if avg[0] != 11 || avg[1] != 20 {
		t.Errorf("AveragePrice = %v, want [11 20]", avg)
	}

	bars.Low = bars.Low[:1]
	if _, err := AveragePrice(bars); !errors.Is(err, core.ErrSeriesMismatch) {
		t.Errorf("expected ErrSeriesMismatch, got %v", err)
	}
}

func TestAlign(t *testing.T) {
	a, b := Align([]float64{1, 2, 3}, []float64{4, 5})
	if len(a) != 2 || len(b) != 2 || a[1] != 2 {
		t.Errorf("Align = %v %v", a, b)
	}
}
