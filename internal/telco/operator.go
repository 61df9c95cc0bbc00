package telco

import (
	"fmt"
	"sort"
	"strings"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

type Operator string

const (
	OperatorOrange   Operator = "ORANGE"
	OperatorSFR      Operator = "SFR"
	OperatorBouygues Operator = "BOUYGUES"
	OperatorFree     Operator = "FREE"
)

const countryFR = "FR"

// Prefixes are national significant numbers with the leading 0, matched
// longest first.
var frPrefixes = map[string]Operator{
	"06":   OperatorOrange,
	"061":  OperatorSFR,
	"062":  OperatorSFR,
	"0651": OperatorFree,
	"0652": OperatorFree,
	"066":  OperatorBouygues,
	"0695": OperatorFree,
	"0698": OperatorBouygues,
	"0699": OperatorBouygues,
	"07":   OperatorSFR,
	"0751": OperatorFree,
	"0752": OperatorFree,
	"0766": OperatorBouygues,
	"0767": OperatorBouygues,
}

var frPrefixOrder = func() []string {
	keys := make([]string, 0, len(frPrefixes))
	for k := range frPrefixes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// NormalizeFR returns the 10-digit national form (0XXXXXXXXX) of a French
// number written as +33…, 0033… or 0….
func NormalizeFR(phone string) (string, error) {
	s := strings.NewReplacer(" ", "", ".", "", "-", "", "(", "", ")", "").Replace(phone)
	switch {
	case strings.HasPrefix(s, "+33"):
		s = "0" + s[3:]
	case strings.HasPrefix(s, "0033"):
		s = "0" + s[4:]
	}
	if len(s) != 10 || s[0] != '0' || s[1] == '0' {
		return "", fmt.Errorf("NormalizeFR: %q: %w", phone, domain.ErrInvalidPhoneNumber)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("NormalizeFR: %q: %w", phone, domain.ErrInvalidPhoneNumber)
		}
	}
	return s, nil
}

// DetectOperator maps a phone number to its mobile operator. It is a pure
// function: the same number always yields the same operator.
func DetectOperator(phone, countryCode string) (Operator, error) {
	cc := strings.ToUpper(strings.TrimSpace(countryCode))
	if cc == "" {
		cc = countryFR
	}
	if cc != countryFR {
		return "", fmt.Errorf("DetectOperator: country %q: %w", countryCode, domain.ErrUnknownOperator)
	}

	national, err := NormalizeFR(phone)
	if err != nil {
		return "", fmt.Errorf("DetectOperator: %w", err)
	}

	for _, prefix := range frPrefixOrder {
		if strings.HasPrefix(national, prefix) {
			return frPrefixes[prefix], nil
		}
	}
	return "", fmt.Errorf("DetectOperator: %q: %w", phone, domain.ErrUnknownOperator)
}
