// Package amharic implements deterministic cleanup and normalization of
// Amharic channel text: punctuation and symbol stripping, Ethiopic script
// filtering, homophone folding, Ge'ez numeral conversion, and optional
// stopword removal.
package amharic

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultRemovalClass is the canonical removal set: common ASCII punctuation
// and symbols plus the Ethiopic punctuation marks (፡ ። ፤ ፥ ፧ ፨), expressed
// as a regular-expression character class.
const DefaultRemovalClass = "[!@#$%^«»&*()…\\[\\]{}“‟”›‘’\"';:,.‹/<>?_—–\\\\`´~|=+\\-፡።፤፥፧፨]"

// homophoneMap folds letter variants that are pronounced identically in
// modern Amharic onto one representative letter. Applied per character in a
// single pass, so the mapping is order independent.
var homophoneMap = map[rune]rune{
	'ሀ': 'ሀ', 'ሃ': 'ሀ', 'ሐ': 'ሀ', 'ሓ': 'ሀ', 'ኀ': 'ሀ', 'ኃ': 'ሀ', 'ኻ': 'ሀ',
	'ሰ': 'ሰ', 'ሠ': 'ሰ',
	'ጸ': 'ጸ', 'ፀ': 'ጸ',
	'ው': 'ው', 'ዉ': 'ው',
	'አ': 'አ', 'ኣ': 'አ', 'ዐ': 'አ', 'ዓ': 'አ',
}

// geezNumerals maps Ge'ez numerals to Arabic digit strings.
var geezNumerals = map[rune]string{
	'፩': "1", '፪': "2", '፫': "3", '፬': "4", '፭': "5",
	'፮': "6", '፯': "7", '፰': "8", '፱': "9", '፲': "10",
	'፳': "20", '፴': "30", '፵': "40", '፶': "50", '፷': "60",
	'፸': "70", '፹': "80", '፺': "90", '፻': "100", '፼': "10000",
}

// symbolRanges lists the Unicode blocks dropped outright: emoticons,
// pictographs, transport symbols, flags, dingbats, variation selectors.
var symbolRanges = [][2]rune{
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F300, 0x1F5FF}, // symbols & pictographs
	{0x1F680, 0x1F6FF}, // transport & map symbols
	{0x1F1E0, 0x1F1FF}, // regional indicator flags
	{0x2702, 0x27B0},   // dingbats
	{0x24C2, 0x1F251},
	{0x1F900, 0x1F9FF}, // supplemental symbols & pictographs
	{0x2600, 0x26FF},   // miscellaneous symbols
	{0xFE00, 0xFE0F},   // variation selectors
	{0x1FAD0, 0x1FADF},
}

// ethiopicRanges are the Unicode blocks of the target script that survive
// the script filter, alongside basic Latin letters and digits.
var ethiopicRanges = [][2]rune{
	{0x1200, 0x137F}, // Ethiopic
	{0x2D80, 0x2DDF}, // Ethiopic Extended
	{0xAB00, 0xAB2F}, // Ethiopic Extended-A
}

var (
	urlRegex     = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)
	mentionRegex = regexp.MustCompile(`[@#]\w+`)
)

// DefaultStopwords is the canonical Amharic stopword set: conjunctions,
// prepositions, copulas, pronouns, demonstratives, question words, and
// common number words.
var DefaultStopwords = []string{
	"እና", "ነበር", "ነው", "ግን", "ከ", "በ", "ላይ", "ወደ", "ሲል", "ለ", "የ", "አዎ", "አይደለም", "ያለ",
	"አሉት", "አላቸው", "አሉ", "ሲሆን", "የሆነ", "ሆኖ", "በፊት", "ከዛ", "በኋላ", "ዛሬ", "ትናንት",
	"ነገ", "አንዳንድ", "ብዙ", "ሁሉንም", "ሁሉም", "ማን", "ምን", "የት", "እንዴት", "ለምን", "መቼ",
	"የትኛዉ", "እሱ", "እሷ", "እነሱ", "እኛ", "አንተ", "አንቺ", "እናንተ", "እኔ", "እርሱ", "እርሷ", "እርሳቸው",
	"ያ", "ይህ", "እነዚህ", "እነዚያ", "እንዲሁም", "ወይም", "ምናልባት", "ብቻ", "ግዴታ", "አንዴ", "ሁለት",
	"ሶስት", "አራት", "አምስት", "ስድስት", "ሰባት", "ስምንት", "ዘጠኝ", "አስር",
}

// Rules configures a Normalizer. Zero values fall back to the package
// defaults.
type Rules struct {
	// RemovalClass is a regular-expression character class of punctuation
	// and symbols stripped in the first pipeline step.
	RemovalClass string

	// Stopwords are removed as whole whitespace-delimited tokens when
	// RemoveStopwords is set.
	Stopwords       []string
	RemoveStopwords bool
}

// Normalizer applies the normalization pipeline. Safe for concurrent use.
type Normalizer struct {
	removal    *regexp.Regexp
	stopwords  map[string]struct{}
	removeStop bool
}

// New compiles a Normalizer from the given rules.
func New(rules Rules) (*Normalizer, error) {
	class := rules.RemovalClass
	if class == "" {
		class = DefaultRemovalClass
	}
	removal, err := regexp.Compile(class)
	if err != nil {
		return nil, fmt.Errorf("invalid removal character class: %w", err)
	}

	words := rules.Stopwords
	if words == nil {
		words = DefaultStopwords
	}
	stopwords := make(map[string]struct{}, len(words))
	for _, w := range words {
		stopwords[w] = struct{}{}
	}

	return &Normalizer{
		removal:    removal,
		stopwords:  stopwords,
		removeStop: rules.RemoveStopwords,
	}, nil
}

// Normalize runs the full pipeline over raw text. It is total over any input
// and idempotent: empty or whitespace-only input yields the empty string, and
// normalizing an already-normalized string is a no-op.
func (n *Normalizer) Normalize(raw string) string {
	s := urlRegex.ReplaceAllString(raw, "")
	s = mentionRegex.ReplaceAllString(s, "")
	s = n.removal.ReplaceAllString(s, "")
	s = filterScript(s)
	s = foldCharacters(s)

	tokens := strings.Fields(s)
	if n.removeStop {
		kept := tokens[:0]
		for _, tok := range tokens {
			if _, stop := n.stopwords[tok]; !stop {
				kept = append(kept, tok)
			}
		}
		tokens = kept
	}
	return strings.ToLower(strings.Join(tokens, " "))
}

// filterScript drops decorative symbol blocks and any character outside the
// Ethiopic blocks, basic Latin letters, digits, and whitespace.
func filterScript(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if inRanges(r, symbolRanges) {
			continue
		}
		if keepRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// foldCharacters applies the homophone table and Ge'ez numeral conversion in
// one pass.
func foldCharacters(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if digits, ok := geezNumerals[r]; ok {
			b.WriteString(digits)
			continue
		}
		if folded, ok := homophoneMap[r]; ok {
			b.WriteRune(folded)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func keepRune(r rune) bool {
	switch {
	case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		return true
	}
	return inRanges(r, ethiopicRanges)
}

func inRanges(r rune, ranges [][2]rune) bool {
	for _, rg := range ranges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}
