package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0", "0", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestAmountsEncodeAsJSONNumbers(t *testing.T) {
	item := SpendingItem{UID: "u", Date: "2024-05-01", ItemName: "wipes", Amount: decimal.RequireFromString("12.5")}
	b, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"uid":"u","date":"2024-05-01","itemName":"wipes","amount":12.5}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}

	var back SpendingItem
	if err := json.Unmarshal([]byte(`{"amount":"7.25"}`), &back); err != nil {
		t.Fatalf("unmarshal quoted amount: %v", err)
	}
	if !back.Amount.Equal(decimal.RequireFromString("7.25")) {
		t.Fatalf("got %s", back.Amount)
	}
}

func TestValidateAmountBounds(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"0", true},
		{"0e4000000", true},
		{"12.34", true},
		{"1.500", true},
		{"999999999999.99", true},
		{"1000000000000", false},
		{"1e12", false},
		{"1e4000000", false},
		{"0.001", false},
		{"12.345", false},
		{"1e-4000000", false},
		{"1234567890123456789012345678901234567", false},
	}
	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		err = ValidateAmount(d)
		if tc.ok && err != nil {
			t.Errorf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}
