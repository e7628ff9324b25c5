package fable

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultTitle 无法识别标题时的标题
	DefaultTitle = "Untitled Fable"
	// DefaultMoral 无法识别寓意时的寓意
	DefaultMoral = "Moral: Every choice teaches a lesson."
	// MoralPrefix 寓意统一前缀
	MoralPrefix = "Moral: "

	// MaxLines 输出诗行上限
	MaxLines = 20
	// maxTitleRunes 标题候选行长度上限（不含）
	maxTitleRunes = 120
	// fallbackTitleWords 兜底标题取首行的前几个词
	fallbackTitleWords = 6
)

// moralPattern 寓意行前缀：可选引号/书名号，可选 The，Moral/Morale，可选 of the story，分隔符
var moralPattern = regexp.MustCompile(`(?i)^[\x{201C}\x{201D}\x{00AB}\x{00BB}]?[\s\p{Zs}]*(?:the[\s\p{Zs}]+)?morale?[\s\p{Zs}]*(?:of[\s\p{Zs}]+the[\s\p{Zs}]+story[\s\p{Zs}]*)?[:\-\x{2014}][\s\p{Zs}]*`)

var lineBreak = regexp.MustCompile(`\r\n|\r|\n`)

// Result 解析后的寓言
type Result struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
	Moral string   `json:"moral"`
}

// Report 解析过程中的兜底情况
type Report struct {
	TitleDerived bool
	TitleDefault bool
	MoralDefault bool
	// DroppedMorals 被丢弃的重复寓意行
	DroppedMorals int
	// ClampedLines 超出上限被截掉的诗行
	ClampedLines int
}

// Interpret 从模型输出中提取标题、诗行和寓意，任何输入都返回完整结果
func Interpret(raw string) Result {
	res, _ := Analyze(raw)
	return res
}

type lineState int

const (
	seekingTitle lineState = iota
	collecting
)

// Analyze 同 Interpret，额外返回兜底情况
//
// 逐行分类：尚未确定标题时先看标题规则，再看寓意规则，其余为诗行。
// 第一条寓意生效，之后的寓意行直接丢弃。
func Analyze(raw string) (Result, Report) {
	var (
		res    Result
		report Report
		verses []string
		state  = seekingTitle
	)

	for _, line := range splitLines(raw) {
		if state == seekingTitle && isTitleCandidate(line) {
			res.Title = line
			state = collecting
			continue
		}

		if loc := moralPattern.FindStringIndex(line); loc != nil {
			if res.Moral == "" {
				res.Moral = MoralPrefix + strings.TrimSpace(line[loc[1]:])
			} else {
				report.DroppedMorals++
			}
			continue
		}

		verses = append(verses, line)
	}

	if res.Title == "" && len(verses) > 0 {
		res.Title = deriveTitle(verses[0])
		report.TitleDerived = res.Title != ""
	}

	res.Lines = make([]string, 0, min(len(verses), MaxLines))
	for _, v := range verses {
		if moralPattern.MatchString(v) {
			continue
		}
		if len(res.Lines) == MaxLines {
			report.ClampedLines++
			continue
		}
		res.Lines = append(res.Lines, v)
	}

	if res.Title == "" {
		res.Title = DefaultTitle
		report.TitleDefault = true
	}
	if res.Moral == "" {
		res.Moral = DefaultMoral
		report.MoralDefault = true
	}
	return res, report
}

func splitLines(raw string) []string {
	parts := lineBreak.Split(raw, -1)
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

func isTitleCandidate(line string) bool {
	n := utf8.RuneCountInString(line)
	if n == 0 || n >= maxTitleRunes {
		return false
	}
	r, _ := utf8.DecodeRuneInString(line)
	return isTitleInitial(r)
}

// isTitleInitial 英文大写字母与法语常用大写重音字母
func isTitleInitial(r rune) bool {
	if r >= 'A' && r <= 'Z' {
		return true
	}
	return strings.ContainsRune("ÀÂÄÇÉÈÊËÎÏÔÖÙÛÜŸ", r)
}

func deriveTitle(firstVerse string) string {
	words := strings.Fields(firstVerse)
	if len(words) > fallbackTitleWords {
		words = words[:fallbackTitleWords]
	}
	return strings.TrimRight(strings.Join(words, " "), ".,;:!?")
}
