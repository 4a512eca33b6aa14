//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseBuyerID tests that parsing never panics on arbitrary input and
// always returns either a valid id or an error.
func FuzzParseBuyerID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE buyer_accounts;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseBuyerID(input)

		// Either valid id or error, never both.
		if err == nil {
			roundTrip, err2 := ParseBuyerID(id.String())
			if err2 != nil {
				t.Errorf("valid id failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed id value")
			}
		}

		// Non-UTF8 input must be rejected.
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseAllIDs ensures every parsed id type validates identically.
func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errBuyer := ParseBuyerID(input)
		_, errDealer := ParseDealerID(input)
		_, errAttempt := ParseAttemptID(input)

		if errBuyer == nil && (errDealer != nil || errAttempt != nil) {
			t.Error("inconsistent parsing across id types")
		}
		if errBuyer != nil && (errDealer == nil || errAttempt == nil) {
			t.Error("inconsistent rejection across id types")
		}
	})
}
