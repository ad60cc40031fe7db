// Package domain contains the game entities and the pure guess evaluator.
// No transport or lifecycle logic here.
package domain

import "errors"

// CodeLen is the fixed length of a secret code and of every guess.
const CodeLen = 4

var (
	ErrInvalidCode  = errors.New("code must be exactly 4 digits")
	ErrInvalidGuess = errors.New("guess must be exactly 4 digits")
)

// Code is a secret or guessed digit sequence, always exactly CodeLen
// characters in '0'..'9'. Construct via ParseCode.
type Code string

// Verdict is the per-digit feedback for one guessed position.
type Verdict string

const (
	VerdictExact   Verdict = "exact"   // right digit, right position
	VerdictPresent Verdict = "present" // right digit, wrong position
	VerdictAbsent  Verdict = "absent"  // digit does not occur (with remaining multiplicity)
)

// ParseCode validates a raw string as a playable code.
func ParseCode(raw string) (Code, error) {
	if len(raw) != CodeLen {
		return "", ErrInvalidCode
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return "", ErrInvalidCode
		}
	}
	return Code(raw), nil
}

// Evaluate scores guess against secret with the classic two-pass rule.
// Pass one marks exact hits and consumes both digits; pass two matches the
// remaining guess digits against unconsumed secret digits, each secret
// occurrence satisfying at most one present verdict. The result is a pure
// function of its inputs.
//
// Both arguments must already be valid codes; the session rejects malformed
// input before it gets here.
func Evaluate(secret, guess Code) []Verdict {
	verdicts := make([]Verdict, CodeLen)
	var consumed [CodeLen]bool

	for i := 0; i < CodeLen; i++ {
		if guess[i] == secret[i] {
			verdicts[i] = VerdictExact
			consumed[i] = true
		}
	}

	for i := 0; i < CodeLen; i++ {
		if verdicts[i] == VerdictExact {
			continue
		}
		verdicts[i] = VerdictAbsent
		for j := 0; j < CodeLen; j++ {
			if consumed[j] || guess[i] != secret[j] {
				continue
			}
			verdicts[i] = VerdictPresent
			consumed[j] = true
			break
		}
	}
	return verdicts
}

// AllExact reports whether a verdict sequence is a winning one.
func AllExact(verdicts []Verdict) bool {
	if len(verdicts) != CodeLen {
		return false
	}
	for _, v := range verdicts {
		if v != VerdictExact {
			return false
		}
	}
	return true
}
