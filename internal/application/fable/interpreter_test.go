package fable

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\r\n\t\n"} {
		res := Interpret(raw)
		assert.Equal(t, Result{Title: DefaultTitle, Lines: []string{}, Moral: DefaultMoral}, res)
	}
}

func TestInterpret_FoxAndGrapes(t *testing.T) {
	raw := "The Fox and the Grapes\nA fox once spied grapes on a vine,\nHe leapt and reached but could not dine.\nMoral: What we can't have, we call not fine."

	res := Interpret(raw)

	assert.Equal(t, "The Fox and the Grapes", res.Title)
	assert.Equal(t, []string{
		"A fox once spied grapes on a vine,",
		"He leapt and reached but could not dine.",
	}, res.Lines)
	assert.Equal(t, "Moral: What we can't have, we call not fine.", res.Moral)
}

func TestInterpret_SingleMoralLine(t *testing.T) {
	raw := "The Cat\na cat sat upon the mat\nit dreamed of cream\nMoral: patience is sweet\nthen it woke"

	res := Interpret(raw)

	assert.Equal(t, "The Cat", res.Title)
	assert.Equal(t, []string{"a cat sat upon the mat", "it dreamed of cream", "then it woke"}, res.Lines)
	assert.Equal(t, "Moral: patience is sweet", res.Moral)

	res = Interpret("a cat sat upon the mat\nit dreamed of cream\nmoral: patience is sweet")
	assert.Equal(t, "a cat sat upon the mat", res.Title)
	assert.Equal(t, []string{"a cat sat upon the mat", "it dreamed of cream"}, res.Lines)
	assert.Equal(t, "Moral: patience is sweet", res.Moral)
}

func TestInterpret_MoralVariants(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{line: "Moral: Be kind.", want: "Moral: Be kind."},
		{line: "MORAL - be kind", want: "Moral: be kind"},
		{line: "moral— be kind", want: "Moral: be kind"},
		{line: "The moral: slow and steady", want: "Moral: slow and steady"},
		{line: "The Moral of the story: look before you leap", want: "Moral: look before you leap"},
		{line: "Moral of the story - share", want: "Moral: share"},
		{line: "“Moral: trust is earned”", want: "Moral: trust is earned”"},
		{line: "« Morale : la raison du plus fort", want: "Moral: la raison du plus fort"},
		{line: "Morale : rien ne sert de courir", want: "Moral: rien ne sert de courir"},
		{line: "Moral:", want: "Moral: "},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			res := Interpret("A Title\nsome verse\n" + tt.line)
			assert.Equal(t, tt.want, res.Moral)
			assert.Equal(t, []string{"some verse"}, res.Lines)
		})
	}
}

func TestInterpret_NotMoral(t *testing.T) {
	for _, line := range []string{
		"moralement parlant: rien",
		"the morals of the wolf",
		"a moral tale",
		"Amoral: nothing",
	} {
		t.Run(line, func(t *testing.T) {
			res := Interpret("A Title\n" + line)
			assert.Equal(t, []string{line}, res.Lines)
			assert.Equal(t, DefaultMoral, res.Moral)
		})
	}
}

func TestInterpret_OnlyFirstMoralKept(t *testing.T) {
	raw := "A Title\nMoral: first\nverse one\nMorale : deuxième\nverse two\nthe moral - third"

	res, report := Analyze(raw)

	assert.Equal(t, "Moral: first", res.Moral)
	assert.Equal(t, []string{"verse one", "verse two"}, res.Lines)
	assert.Equal(t, 2, report.DroppedMorals)
}

func TestInterpret_MoralShapedFirstLineBecomesTitle(t *testing.T) {
	res := Interpret("Moral: be kind\nthe end came")

	assert.Equal(t, "Moral: be kind", res.Title)
	assert.Equal(t, []string{"the end came"}, res.Lines)
	assert.Equal(t, DefaultMoral, res.Moral)
}

func TestInterpret_LowercaseMoralBeforeTitle(t *testing.T) {
	res := Interpret("moral: be kind\nThe Hare\nran")

	assert.Equal(t, "Moral: be kind", res.Moral)
	assert.Equal(t, "The Hare", res.Title)
	assert.Equal(t, []string{"ran"}, res.Lines)
}

func TestInterpret_LaterTitleShapedLinesAreVerse(t *testing.T) {
	raw := "The Crow\nMoral: beware flattery\nA Second Heading\nOnce upon a branch"

	res := Interpret(raw)

	assert.Equal(t, "The Crow", res.Title)
	assert.Equal(t, []string{"A Second Heading", "Once upon a branch"}, res.Lines)
	assert.Equal(t, "Moral: beware flattery", res.Moral)
}

func TestInterpret_TitleRules(t *testing.T) {
	long := "A" + strings.Repeat("a", 119)
	require.Len(t, []rune(long), 120)

	tests := []struct {
		name  string
		first string
		title bool
	}{
		{name: "ascii uppercase", first: "Zebra Tales", title: true},
		{name: "accented uppercase", first: "Élan et le Renard", title: true},
		{name: "cedilla", first: "Ça commence ici", title: true},
		{name: "y diaeresis", first: "Ÿ est rare", title: true},
		{name: "lowercase", first: "zebra tales", title: false},
		{name: "lowercase accented", first: "élan et le renard", title: false},
		{name: "digit", first: "3 Little Pigs", title: false},
		{name: "quote", first: "\"Quoted\"", title: false},
		{name: "exactly 120 runes", first: long, title: false},
		{name: "119 runes", first: long[:119], title: true},
		{name: "119 runes multibyte", first: "É" + strings.Repeat("é", 118), title: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Interpret(tt.first + "\nlast line")
			if tt.title {
				assert.Equal(t, tt.first, res.Title)
				assert.Equal(t, []string{"last line"}, res.Lines)
			} else {
				assert.Equal(t, []string{tt.first, "last line"}, res.Lines)
			}
		})
	}
}

func TestInterpret_FallbackTitle(t *testing.T) {
	tests := []struct {
		first string
		want  string
	}{
		{first: "the hare ran fast, then slept.", want: "the hare ran fast, then slept"},
		{first: "once   upon\ta time there lived a mouse", want: "once upon a time there lived"},
		{first: "wait... what?!", want: "wait... what"},
		{first: "one", want: "one"},
	}
	for _, tt := range tests {
		t.Run(tt.first, func(t *testing.T) {
			res, report := Analyze(tt.first + "\nmoral: ok")
			assert.Equal(t, tt.want, res.Title)
			assert.True(t, report.TitleDerived)
			assert.Equal(t, []string{tt.first}, res.Lines)
		})
	}
}

func TestInterpret_PunctuationOnlyVerseFallsBackToDefaultTitle(t *testing.T) {
	res, report := Analyze("...!\nmoral: hush")

	assert.Equal(t, DefaultTitle, res.Title)
	assert.True(t, report.TitleDefault)
	assert.False(t, report.TitleDerived)
	assert.Equal(t, []string{"...!"}, res.Lines)
}

func TestInterpret_NewlineConventions(t *testing.T) {
	raw := "The Ant\r\n  first line  \r\rsecond line\n\n\tthird line\r\nMoral: work"

	res := Interpret(raw)

	assert.Equal(t, "The Ant", res.Title)
	assert.Equal(t, []string{"first line", "second line", "third line"}, res.Lines)
	assert.Equal(t, "Moral: work", res.Moral)
}

func TestInterpret_ClampsToTwentyLines(t *testing.T) {
	var b strings.Builder
	b.WriteString("The Long One\n")
	for i := 0; i < 35; i++ {
		fmt.Fprintf(&b, "verse %d\n", i)
	}
	b.WriteString("Moral: brevity")

	res, report := Analyze(b.String())

	require.Len(t, res.Lines, MaxLines)
	assert.Equal(t, "verse 0", res.Lines[0])
	assert.Equal(t, "verse 19", res.Lines[19])
	assert.Equal(t, 15, report.ClampedLines)
	assert.Equal(t, "Moral: brevity", res.Moral)
}

func TestInterpret_NeverExceedsLineLimit(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	fragments := []string{
		"", "\n", "\r\n", "Title Case", "lower words", "Moral: x", "«Morale : y", "  ", "É", "the moral - z",
		strings.Repeat("w ", 80),
	}

	for i := 0; i < 500; i++ {
		var b strings.Builder
		n := rng.Intn(80)
		for j := 0; j < n; j++ {
			b.WriteString(fragments[rng.Intn(len(fragments))])
			b.WriteString("\n")
		}
		res := Interpret(b.String())

		assert.LessOrEqual(t, len(res.Lines), MaxLines)
		assert.NotEmpty(t, res.Title)
		assert.True(t, strings.HasPrefix(res.Moral, MoralPrefix))
		for _, line := range res.Lines {
			assert.False(t, moralPattern.MatchString(line), "verse %q looks like a moral", line)
		}
	}
}

func TestInterpret_IdempotentOnOwnOutput(t *testing.T) {
	raw := "in a field of clover, a rabbit dozed\nthe sun rolled over\nmoral: rest is not idleness\na fox passed by"

	first := Interpret(raw)
	assert.Equal(t, "in a field of clover, a", first.Title)
	assert.Equal(t, "Moral: rest is not idleness", first.Moral)

	// 只回灌诗行：标题按同一规则推导，结果不变
	second := Interpret(strings.Join(first.Lines, "\n"))
	third := Interpret(strings.Join(second.Lines, "\n"))
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Lines, second.Lines)
	assert.Equal(t, second, third)

	// 回灌诗行加寓意：寓意行以大写开头，在尚无标题时按标题规则先被捕获
	withMoral := Interpret(strings.Join(first.Lines, "\n") + "\n" + first.Moral)
	assert.Equal(t, first.Moral, withMoral.Title)
	assert.Equal(t, first.Lines, withMoral.Lines)
	assert.Equal(t, withMoral, Interpret(strings.Join(withMoral.Lines, "\n")+"\n"+first.Moral))
}

func TestInterpret_Deterministic(t *testing.T) {
	raw := "Le Corbeau et le Renard\nMaître corbeau, sur un arbre perché,\nTenait en son bec un fromage.\nMorale : tout flatteur vit aux dépens de celui qui l'écoute."

	first := Interpret(raw)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Interpret(raw))
	}
	assert.Equal(t, "Le Corbeau et le Renard", first.Title)
	assert.Equal(t, "Moral: tout flatteur vit aux dépens de celui qui l'écoute.", first.Moral)
	assert.Len(t, first.Lines, 2)
}
