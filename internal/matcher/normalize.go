// Package matcher はカタログのリリースとパーソナルライブラリの候補を照合する。
// 副作用なしの純粋な計算のみを行い、外部状態を一切持たない。
package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// parentheticalRe は「(Deluxe)」「[Remastered]」のような括弧付きの修飾子にマッチする。
var parentheticalRe = regexp.MustCompile(`[(\[].*?[)\]]`)

// diacriticFolder はアクセント記号を除去する（é → e など）。
// NFD分解後に結合文字を取り除き、NFCで再合成する。
var diacriticFolder = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize は照合用に名称を正規化する。
// 小文字化、括弧付き修飾子の除去、アクセント記号の除去、
// 記号の除去、空白の圧縮を行う。
func Normalize(name string) string {
	s := strings.ToLower(name)
	s = parentheticalRe.ReplaceAllString(s, " ")

	if folded, _, err := transform.String(diacriticFolder, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			// 記号は区切りとして扱う
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
