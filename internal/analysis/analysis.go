// Package analysis derives the placeholder session analysis from an overall
// score. The derivation is pure and deterministic.
package analysis

import "math"

// Block score biases applied to the overall score.
const (
	block1Bias = -3
	block2Bias = +2
	block3Bias = -2
)

// Level is a block score on the 1..5 scale.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 5
)

// Block is one criterion of the analysis.
type Block struct {
	Score       int    `json:"score"`
	Description string `json:"description"`
}

// Result is the structured analysis attached to a completed session.
// Block1 is knowledge-base adherence, Block2 tone of voice, Block3 spelling
// and punctuation.
type Result struct {
	Summary string `json:"summary"`
	Block1  Block  `json:"block1"`
	Block2  Block  `json:"block2"`
	Block3  Block  `json:"block3"`
}

// Func derives a Result from an overall 0-100 score.
type Func func(overall int) Result

// BlockNames are the display titles of the three blocks.
var BlockNames = [3]string{
	"База знаний",
	"Общий тон ответов и соответствие Tone of Voice",
	"Соблюдение орфографических норм",
}

// Description tables are indexed by level-1.
var (
	knowledgeDescriptions = [5]string{
		"Ответы не опираются на базу знаний, ключевые шаги процесса пропущены.",
		"Ответы частично опираются на базу знаний, много неточностей.",
		"Основные шаги процесса названы, но есть пропуски и неточности.",
		"Ответы в целом соответствуют базе знаний, есть незначительные неточности.",
		"Ответы полностью соответствуют базе знаний.",
	}
	toneDescriptions = [5]string{
		"Тон ответов не соответствует Tone of Voice, общение некорректное.",
		"Тон ответов часто отклоняется от Tone of Voice.",
		"Тон ответов в целом нейтральный, но не хватает вежливости и эмпатии.",
		"Тон ответов вежливый и дружелюбный, встречаются небольшие отклонения.",
		"Тон ответов полностью соответствует Tone of Voice.",
	}
	spellingDescriptions = [5]string{
		"Много орфографических и пунктуационных ошибок, текст трудно читать.",
		"Заметные орфографические и пунктуационные ошибки.",
		"Встречаются отдельные орфографические и пунктуационные ошибки.",
		"Единичные незначительные ошибки.",
		"Орфографические и пунктуационные нормы соблюдены.",
	}
)

// Summaries chosen by the rounded average level.
const (
	SummaryPositive         = "Отличная работа! Вы уверенно провели диалог и соблюли стандарты обслуживания."
	SummaryMixed            = "Хороший результат, но есть что улучшить. Обратите внимание на рекомендации по блокам."
	SummaryNeedsImprovement = "Диалог требует доработки. Изучите базу знаний и стандарты общения и попробуйте ещё раз."
)

// BlockScores are the raw 0-100 scores of the three blocks.
type BlockScores struct {
	Block1 int `json:"block1"`
	Block2 int `json:"block2"`
	Block3 int `json:"block3"`
}

// DeriveBlockScores biases overall per block and clamps each to [0, 100].
func DeriveBlockScores(overall int) BlockScores {
	return BlockScores{
		Block1: clamp(overall + block1Bias),
		Block2: clamp(overall + block2Bias),
		Block3: clamp(overall + block3Bias),
	}
}

// LevelOf maps a 0-100 score to the 1..5 scale.
func LevelOf(score int) Level {
	switch {
	case score < 20:
		return 1
	case score < 40:
		return 2
	case score < 60:
		return 3
	case score < 80:
		return 4
	default:
		return 5
	}
}

// Derive builds the full Result for an overall score. It satisfies Func.
func Derive(overall int) Result {
	raw := DeriveBlockScores(overall)
	l1, l2, l3 := LevelOf(raw.Block1), LevelOf(raw.Block2), LevelOf(raw.Block3)
	return Result{
		Summary: summaryFor(l1, l2, l3),
		Block1:  Block{Score: int(l1), Description: knowledgeDescriptions[l1-1]},
		Block2:  Block{Score: int(l2), Description: toneDescriptions[l2-1]},
		Block3:  Block{Score: int(l3), Description: spellingDescriptions[l3-1]},
	}
}

// Average is the rounded mean of the three block levels, half rounding up.
func (r Result) Average() int {
	sum := r.Block1.Score + r.Block2.Score + r.Block3.Score
	return int(math.Floor(float64(sum)/3 + 0.5))
}

func summaryFor(levels ...Level) string {
	var sum int
	for _, l := range levels {
		sum += int(l)
	}
	avg := math.Floor(float64(sum)/float64(len(levels)) + 0.5)
	switch {
	case avg >= 4:
		return SummaryPositive
	case avg >= 3:
		return SummaryMixed
	default:
		return SummaryNeedsImprovement
	}
}

func clamp(v int) int {
	return max(0, min(100, v))
}
