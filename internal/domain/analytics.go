package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TickerInfo is the metadata the backend returns per ticker.
// Columns other than the known ones are kept in Extra and written back
// unchanged when the record is saved.
type TickerInfo struct {
	Company string         `json:"company,omitempty"`
	Sector  string         `json:"sector,omitempty"`
	Price   float64        `json:"price,omitempty"`
	Extra   map[string]any `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler
func (t *TickerInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TickerInfo{}
	for k, v := range raw {
		switch k {
		case "company":
			t.Company, _ = v.(string)
		case "sector":
			t.Sector, _ = v.(string)
		case "price":
			t.Price, _ = v.(float64)
		default:
			if t.Extra == nil {
				t.Extra = make(map[string]any)
			}
			t.Extra[k] = v
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (t TickerInfo) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Extra)+3)
	for k, v := range t.Extra {
		out[k] = v
	}
	if t.Company != "" {
		out["company"] = t.Company
	}
	if t.Sector != "" {
		out["sector"] = t.Sector
	}
	if t.Price != 0 {
		out["price"] = t.Price
	}
	return json.Marshal(out)
}

// Tickers maps a ticker symbol to its metadata
type Tickers map[string]TickerInfo

// Clone returns a copy; Extra maps are shared
func (t Tickers) Clone() Tickers {
	if t == nil {
		return nil
	}
	out := make(Tickers, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Subset returns the metadata of the given tickers only
func (t Tickers) Subset(tickers []string) Tickers {
	out := make(Tickers, len(tickers))
	for _, tk := range tickers {
		if info, ok := t[tk]; ok {
			out[tk] = info
		}
	}
	return out
}

// StatValue is a statistic as sent by the backend: either a number or a
// preformatted string such as "12.5%". Text is empty for numbers.
type StatValue struct {
	Num  float64
	Text string
}

// NumberStat wraps a numeric statistic
func NumberStat(v float64) StatValue { return StatValue{Num: v} }

// TextStat wraps a preformatted statistic
func TextStat(s string) StatValue { return StatValue{Text: s} }

// Float returns the numeric value, parsing text forms like "12.5%" or
// "1,234.5". The boolean is false when the value is not numeric.
func (v StatValue) Float() (float64, bool) {
	if v.Text == "" {
		return v.Num, true
	}
	s := strings.TrimSpace(v.Text)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if percent {
		f /= 100
	}
	return f, true
}

func (v StatValue) String() string {
	if v.Text != "" {
		return v.Text
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler
func (v StatValue) MarshalJSON() ([]byte, error) {
	if v.Text != "" {
		return json.Marshal(v.Text)
	}
	if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Num)
}

// UnmarshalJSON implements json.Unmarshaler
func (v *StatValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = StatValue{Num: math.NaN()}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StatValue{Text: s}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("statistic must be a number or string: %w", err)
	}
	*v = StatValue{Num: f}
	return nil
}

// Statistics maps a statistic label to its value
type Statistics map[string]StatValue

// Clone returns a copy
func (s Statistics) Clone() Statistics {
	if s == nil {
		return nil
	}
	out := make(Statistics, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Series is a dated value series in the backend's column layout
type Series struct {
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// Point is one (date, value) pair of a Series
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Points zips dates and values, truncating to the shorter column
func (s Series) Points() []Point {
	n := min(len(s.Dates), len(s.Values))
	out := make([]Point, n)
	for i := 0; i < n; i++ {
		out[i] = Point{Date: s.Dates[i], Value: s.Values[i]}
	}
	return out
}

// Clone returns a deep copy
func (s Series) Clone() Series {
	return Series{
		Dates:  append([]string(nil), s.Dates...),
		Values: append([]float64(nil), s.Values...),
	}
}
