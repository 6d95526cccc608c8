package divergence

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// NormalizeConfig controls what counts as "content" when hashing a landing
// page. Pages that differ only in stripped material hash identically and are
// treated as non-divergent.
type NormalizeConfig struct {
	StripWhitespace bool `yaml:"strip_whitespace"`
	StripScripts    bool `yaml:"strip_scripts"`
	CaseFold        bool `yaml:"case_fold"`
}

// DefaultNormalize is the policy used when the config omits one: superficial
// whitespace, script bodies, and letter case are not content.
var DefaultNormalize = NormalizeConfig{
	StripWhitespace: true,
	StripScripts:    true,
	CaseFold:        true,
}

var (
	scriptRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// Normalize applies the configured content policy to raw page text.
func Normalize(raw string, cfg NormalizeConfig) string {
	s := raw
	if cfg.StripScripts {
		s = scriptRe.ReplaceAllString(s, "")
		s = styleRe.ReplaceAllString(s, "")
	}
	if cfg.CaseFold {
		s = strings.ToLower(s)
	}
	if cfg.StripWhitespace {
		s = spaceRe.ReplaceAllString(s, " ")
		s = strings.TrimSpace(s)
	}
	return s
}

// HashContent returns the hex SHA-256 of the normalized page text. This is
// the content hash stored on snapshots and compared by the engine.
func HashContent(raw string, cfg NormalizeConfig) string {
	sum := sha256.Sum256([]byte(Normalize(raw, cfg)))
	return hex.EncodeToString(sum[:])
}
