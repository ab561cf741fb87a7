package policy

import (
	"strings"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

// MnemonicWords numbers the words from 1 in their original order. Duplicates
// are kept.
func MnemonicWords(mnemonic string) []models.MnemonicWord {
	words := strings.Fields(mnemonic)
	out := make([]models.MnemonicWord, 0, len(words))
	for i, w := range words {
		out = append(out, models.MnemonicWord{Index: i + 1, Word: w})
	}
	return out
}
