package extract

import (
	"context"
	"fmt"
	"log"
	"strings"

	"coursemind/internal/contentcache"
	"coursemind/internal/coursestore"
	"coursemind/internal/models"
	"coursemind/internal/textutil"
)

// QuizExtractor renders quizzes as questions with their answer options,
// marking correct answers.
type QuizExtractor struct {
	store Store
	cache *contentcache.Manager
}

func NewQuizExtractor(store Store, cache *contentcache.Manager) *QuizExtractor {
	return &QuizExtractor{store: store, cache: cache}
}

func (e *QuizExtractor) Kind() models.SourceKind { return models.KindQuiz }

func (e *QuizExtractor) Extract(ctx context.Context, req Request) (Section, error) {
	mods, err := e.store.Modules(ctx, req.CourseID, models.KindQuiz)
	if err != nil {
		return Section{}, fmt.Errorf("failed to list quizzes: %w", err)
	}

	var b strings.Builder
	for _, m := range mods {
		if !wantModule(req.Config, m) {
			continue
		}
		if text := e.activityText(ctx, m); text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}
	return Section{Title: "Quizzes", Body: strings.TrimSpace(b.String())}, nil
}

func (e *QuizExtractor) activityText(ctx context.Context, m coursestore.Module) string {
	quiz, err := e.store.QuizByID(ctx, m.InstanceID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] quiz %d unreadable, skipping: %v", m.InstanceID, err)
		return ""
	}

	key := activityKey(quiz.ID)
	if entry, ok := e.cache.GetValid(models.KindQuiz, key, quiz.TimeModified); ok {
		return entry.Payload
	}

	questions, err := e.store.QuizQuestions(ctx, quiz.ID)
	if err != nil {
		log.Printf("⚠️  [EXTRACT] quiz %d questions unreadable, skipping: %v", quiz.ID, err)
		return ""
	}
	if len(questions) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## " + quiz.Name + "\n")
	if intro := strings.TrimSpace(textutil.StripHTML(quiz.Intro)); intro != "" {
		b.WriteString(textutil.Clamp(intro, fieldClamp) + "\n")
	}

	wroteQuestion := false
	for i, question := range questions {
		questionText := strings.TrimSpace(textutil.StripHTML(question.QuestionText))
		if questionText == "" {
			continue
		}
		fmt.Fprintf(&b, "Q%d: %s\n", i+1, textutil.Clamp(questionText, fieldClamp))
		wroteQuestion = true

		answers, err := e.store.QuizAnswers(ctx, question.ID)
		if err != nil {
			log.Printf("⚠️  [EXTRACT] question %d answers unreadable: %v", question.ID, err)
			continue
		}
		for _, answer := range answers {
			option := strings.TrimSpace(textutil.StripHTML(answer.Answer))
			if option == "" {
				continue
			}
			line := "- " + textutil.Clamp(option, fieldClamp)
			if answer.Fraction > 0 {
				line += " (correct)"
			}
			b.WriteString(line + "\n")
			if feedback := strings.TrimSpace(textutil.StripHTML(answer.Feedback)); feedback != "" {
				b.WriteString("  Feedback: " + textutil.Clamp(feedback, fieldClamp) + "\n")
			}
		}
	}
	if !wroteQuestion {
		return ""
	}

	text := strings.TrimSpace(b.String())
	e.cache.Set(contentcache.Entry{
		Kind:         models.KindQuiz,
		Key:          key,
		Payload:      text,
		TimeModified: quiz.TimeModified,
	})
	return text
}
