package marks

import "math"

// Marks carry at most 2 decimals; sums are done in hundredths so they stay exact.
func toHundredths(m float64) int64 {
	return int64(math.Round(m * 100))
}

func fromHundredths(h int64) float64 {
	return float64(h) / 100
}

// QuestionScores sums a student's marks per question number.
// Marks of unknown sub-questions or of sub-questions without a question number are left out.
func QuestionScores(subQuestions []SubQuestion, marks []StudentMark) map[int]float64 {
	questionOf := make(map[string]int, len(subQuestions))
	for _, sq := range subQuestions {
		if !sq.QuestionNo.Valid {
			continue
		}
		questionOf[sq.ID] = sq.QuestionNo.Int
	}

	sums := make(map[int]int64, MaxQuestionNo)
	for _, m := range marks {
		qno, ok := questionOf[m.SubQuestionID]
		if !ok {
			continue
		}
		sums[qno] += toHundredths(m.Mark)
	}

	scores := make(map[int]float64, len(sums))
	for qno, h := range sums {
		scores[qno] = fromHundredths(h)
	}
	return scores
}

// BestOfParts returns the best question score of Part A and of Part B.
// Missing questions score 0; question numbers outside both parts are ignored.
func BestOfParts(scores map[int]float64) (bestPartA, bestPartB float64) {
	return bestOf(scores, PartAQuestions), bestOf(scores, PartBQuestions)
}

func bestOf(scores map[int]float64, questions [2]int) float64 {
	return math.Max(scores[questions[0]], scores[questions[1]])
}

// RoundTotal rounds the sum of both parts to the nearest integer, halves away from zero.
func RoundTotal(bestPartA, bestPartB float64) int {
	h := toHundredths(bestPartA) + toHundredths(bestPartB)
	if h < 0 {
		return -int((-h + 50) / 100)
	}
	return int((h + 50) / 100)
}

// Compute derives the InternalTotal of one student from their sub-question marks.
func Compute(key TotalKey, subQuestions []SubQuestion, marks []StudentMark) InternalTotal {
	a, b := BestOfParts(QuestionScores(subQuestions, marks))
	return InternalTotal{
		Key:       key,
		BestPartA: a,
		BestPartB: b,
		Total:     RoundTotal(a, b),
	}
}

// SumComponents adds up every attempt of each component, plus the CIE totals, into a ComponentTotal.
// Marks of unknown components are left out.
func SumComponents(key ComponentKey, marks []ComponentMark, cieTotals []InternalTotal) ComponentTotal {
	var assignments, quizzes, seminars, cie int64
	for _, m := range marks {
		switch m.Component {
		case ComponentAssignment:
			assignments += toHundredths(m.Mark)
		case ComponentQuiz:
			quizzes += toHundredths(m.Mark)
		case ComponentSeminar:
			seminars += toHundredths(m.Mark)
		}
	}
	for _, it := range cieTotals {
		cie += int64(it.Total) * 100
	}
	return ComponentTotal{
		Key:         key,
		Assignments: fromHundredths(assignments),
		Quizzes:     fromHundredths(quizzes),
		Seminars:    fromHundredths(seminars),
		CIE:         fromHundredths(cie),
		Overall:     fromHundredths(assignments + quizzes + seminars + cie),
	}
}
