package auth

import (
	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// ZxcvbnScorer scores passwords with the zxcvbn estimator.
//
// zxcvbn estimates how many guesses an attacker needs, taking dictionary
// words, keyboard patterns, dates and the supplied user inputs into account,
// and maps that to a 0–4 score.
type ZxcvbnScorer struct{}

// Score implements StrengthScorer.
func (ZxcvbnScorer) Score(password string, userInputs []string) int {
	return zxcvbn.PasswordStrength(password, userInputs).Score
}
