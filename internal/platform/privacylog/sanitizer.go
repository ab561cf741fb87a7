// Package privacylog keeps signing material out of log output. Secrets are
// dropped by attribute name and by value shape; identity keys, addresses and
// provider account ids are replaced with per-process fingerprints.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
)

const redactedValue = "[REDACTED]"

type treatment int

const (
	keepAttr treatment = iota
	redactAttr
	fingerprintAttr
)

var (
	processSalt = newSalt()

	fingerprintedKeys = map[string]struct{}{
		"bap_id":              {},
		"identity_key":        {},
		"address":             {},
		"signer_address":      {},
		"provider_account_id": {},
		"oauth_id":            {},
		"email":               {},
	}
	secretKeyParts = []string{
		"password", "passphrase", "secret", "token", "authorization",
		"mnemonic", "xprv", "wif", "private_key", "seed", "encrypted_backup",
	}
	mnemonicLengths = []int{24, 21, 18, 15, 12}
)

// SanitizingHandler rewrites every record before the wrapped handler sees it.
type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, scrubValue(rec.Message), rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(sanitize(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		clean[i] = sanitize(attr)
	}
	return &SanitizingHandler{next: h.next.WithAttrs(clean)}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// FingerprintID is stable within one process and unlinkable across restarts.
func FingerprintID(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(processSalt + "|" + trimmed))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func sanitize(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	value := attr.Value.Resolve()
	switch classify(strings.ToLower(key)) {
	case redactAttr:
		return slog.String(key, redactedValue)
	case fingerprintAttr:
		if !strings.HasSuffix(key, "_fp") {
			key += "_fp"
		}
		return slog.String(key, FingerprintID(value.String()))
	}

	switch value.Kind() {
	case slog.KindGroup:
		group := value.Group()
		clean := make([]slog.Attr, len(group))
		for i, member := range group {
			clean[i] = sanitize(member)
		}
		return slog.Attr{Key: key, Value: slog.GroupValue(clean...)}
	case slog.KindString:
		return slog.String(key, scrubValue(value.String()))
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return slog.String(key, scrubValue(err.Error()))
		}
	}
	return slog.Attr{Key: key, Value: value}
}

func classify(key string) treatment {
	if _, ok := fingerprintedKeys[key]; ok {
		return fingerprintAttr
	}
	if strings.HasSuffix(key, "_bap_id") || strings.HasSuffix(key, "_identity_key") {
		return fingerprintAttr
	}
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return redactAttr
		}
	}
	return keepAttr
}

// scrubValue removes key material that ended up inside free text, such as an
// error message quoting a WIF or an auth header.
func scrubValue(s string) string {
	if s == "" {
		return s
	}
	if containsMnemonic(s) {
		return redactedValue
	}
	out := s
	for _, field := range strings.FieldsFunc(s, isSeparator) {
		if isSecretToken(field) {
			out = strings.ReplaceAll(out, field, redactedValue)
		}
	}
	return out
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', ',', ';', '=', '"', '\'', '(', ')', '[', ']', '{', '}':
		return true
	}
	return false
}

func isSecretToken(field string) bool {
	// X-Auth-Token: <pubkey>|bsm|<timestamp>|<path>|<signature>
	if strings.Contains(field, "|bsm|") {
		return true
	}
	field = strings.TrimRight(field, ".:")
	switch {
	case strings.HasPrefix(field, "xprv"), strings.HasPrefix(field, "tprv"):
		return decodedLen(field) == 82
	case len(field) == 51 || len(field) == 52:
		raw, err := base58.Decode(field)
		if err != nil || (len(raw) != 37 && len(raw) != 38) {
			return false
		}
		return raw[0] == 0x80 || raw[0] == 0xef
	}
	return false
}

func decodedLen(field string) int {
	raw, err := base58.Decode(field)
	if err != nil {
		return 0
	}
	return len(raw)
}

func containsMnemonic(s string) bool {
	words := strings.Fields(strings.ToLower(s))
	for _, n := range mnemonicLengths {
		for i := 0; i+n <= len(words); i++ {
			if bip39.IsMnemonicValid(strings.Join(words[i:i+n], " ")) {
				return true
			}
		}
	}
	return false
}

func newSalt() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "static-salt"
	}
	return hex.EncodeToString(buf)
}
