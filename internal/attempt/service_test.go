package attempt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/winbro-training/quizcert/internal/cert"
	"github.com/winbro-training/quizcert/internal/grading"
	"github.com/winbro-training/quizcert/internal/quiz"
)

func newTestService(t *testing.T) (*Service, Store) {
	t.Helper()
	store := NewInMemoryStore()
	certs := cert.NewService(cert.NewInMemoryStore(), "http://localhost:8080", nil)
	svc := NewService(store, grading.NewEngine(), certs, nil, nil, time.Now)
	return svc, store
}

func publishedQuiz(t *testing.T, svc *Service, maxAttempts int) quiz.Quiz {
	t.Helper()
	key1 := quiz.SelectedOption("q1", 1)
	key2 := quiz.BoolAnswer("q2", true)
	q, err := svc.CreateQuiz(context.Background(), quiz.Quiz{
		Title:            "Lathe Safety",
		CourseID:         "course-1",
		PassingThreshold: 70,
		MaxAttempts:      maxAttempts,
		Questions: []quiz.Question{
			{ID: "q1", Text: "pick", Type: quiz.TypeMultipleChoice, Options: []string{"a", "b"}, CorrectAnswer: &key1, Points: 1},
			{ID: "q2", Text: "t/f", Type: quiz.TypeTrueFalse, CorrectAnswer: &key2, Points: 1},
		},
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if _, err := svc.PublishQuiz(context.Background(), q.ID); err != nil {
		t.Fatalf("publish quiz: %v", err)
	}
	return q
}

func TestCreateQuizValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	key := quiz.SelectedOption("q1", 0)

	_, err := svc.CreateQuiz(ctx, quiz.Quiz{Title: "bad", PassingThreshold: 120})
	if err == nil {
		t.Fatal("threshold over 100 must be rejected")
	}

	_, err = svc.CreateQuiz(ctx, quiz.Quiz{
		Title:            "bad",
		PassingThreshold: 70,
		Questions:        []quiz.Question{{ID: "q1", Type: quiz.TypeMultipleChoice, CorrectAnswer: &key, Points: 0}},
	})
	if err == nil {
		t.Fatal("zero-point question must be rejected")
	}

	_, err = svc.CreateQuiz(ctx, quiz.Quiz{
		Title:            "bad",
		PassingThreshold: 70,
		Questions:        []quiz.Question{{ID: "q1", Type: quiz.TypeMultipleChoice, Points: 1}},
	})
	if err == nil {
		t.Fatal("question without an expected answer must be rejected")
	}

	q, err := svc.CreateQuiz(ctx, quiz.Quiz{
		Title:            "ok",
		PassingThreshold: 70,
		Questions:        []quiz.Question{{ID: "q1", Type: quiz.TypeMultipleChoice, CorrectAnswer: &key, Points: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if q.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("max attempts must default to %d, got %d", DefaultMaxAttempts, q.MaxAttempts)
	}
	if q.Status != quiz.StatusDraft {
		t.Fatalf("new quiz must start as draft, got %s", q.Status)
	}
}

func TestCreateQuizRejectsPublishedOverwrite(t *testing.T) {
	svc, _ := newTestService(t)
	q := publishedQuiz(t, svc, 3)

	q.Title = "edited"
	if _, err := svc.CreateQuiz(context.Background(), q); !errors.Is(err, quiz.ErrQuizPublished) {
		t.Fatalf("want ErrQuizPublished, got %v", err)
	}
}

func TestPublishRejectsZeroPointQuiz(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Bypass create-time validation; a broken row in the store must still be
	// refused at publish.
	if err := store.PutQuiz(ctx, quiz.Quiz{ID: "broken", Title: "empty", PassingThreshold: 70, MaxAttempts: 3}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err := svc.PublishQuiz(ctx, "broken")
	var degenerate *quiz.DegenerateQuizError
	if !errors.As(err, &degenerate) {
		t.Fatalf("want DegenerateQuizError, got %v", err)
	}
}

func TestStartRequiresPublished(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	key := quiz.SelectedOption("q1", 0)
	q, err := svc.CreateQuiz(ctx, quiz.Quiz{
		Title:            "draft",
		PassingThreshold: 70,
		Questions:        []quiz.Question{{ID: "q1", Type: quiz.TypeMultipleChoice, CorrectAnswer: &key, Points: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Start(ctx, "u1", q.ID, ""); !errors.Is(err, quiz.ErrNotPublished) {
		t.Fatalf("want ErrNotPublished, got %v", err)
	}
}

func TestAttemptNumberingSequential(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 5)

	for want := 1; want <= 3; want++ {
		a, err := svc.Start(ctx, "u1", q.ID, "")
		if err != nil {
			t.Fatalf("start %d: %v", want, err)
		}
		if a.AttemptNumber != want {
			t.Fatalf("attempt number = %d, want %d", a.AttemptNumber, want)
		}
		if a.PassingThreshold != 70 {
			t.Fatalf("threshold must be captured on the attempt, got %v", a.PassingThreshold)
		}
		if _, err := svc.Abandon(ctx, a.ID); err != nil {
			t.Fatalf("abandon: %v", err)
		}
	}
}

func TestAttemptNumberingConcurrent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 100)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Start(ctx, "u1", q.ID, ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent start: %v", err)
	}

	list, err := store.ListAttempts(ctx, ListOpts{UserID: "u1", QuizID: q.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != n {
		t.Fatalf("want %d attempts, got %d", n, len(list))
	}
	seen := map[int]bool{}
	for _, a := range list {
		if a.AttemptNumber < 1 || a.AttemptNumber > n {
			t.Fatalf("attempt number %d out of range [1,%d]", a.AttemptNumber, n)
		}
		if seen[a.AttemptNumber] {
			t.Fatalf("duplicate attempt number %d", a.AttemptNumber)
		}
		seen[a.AttemptNumber] = true
	}
}

func TestAttemptLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 3)

	for i := 0; i < 3; i++ {
		a, err := svc.Start(ctx, "u1", q.ID, "")
		if err != nil {
			t.Fatalf("start %d: %v", i+1, err)
		}
		// Abandoned attempts count against the limit just like completed ones.
		if _, err := svc.Abandon(ctx, a.ID); err != nil {
			t.Fatalf("abandon: %v", err)
		}
	}

	_, err := svc.Start(ctx, "u1", q.ID, "")
	var limitErr *quiz.AttemptLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("want AttemptLimitError on 4th start, got %v", err)
	}
	if limitErr.MaxAttempts != 3 {
		t.Fatalf("error must carry the limit, got %d", limitErr.MaxAttempts)
	}

	// A different user is unaffected.
	if _, err := svc.Start(ctx, "u2", q.ID, ""); err != nil {
		t.Fatalf("other user must still be able to start: %v", err)
	}
}

func TestSubmitScoresAndIssues(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 3)

	a, err := svc.Start(ctx, "u1", q.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	answers := []quiz.Answer{quiz.SelectedOption("q1", 1), quiz.BoolAnswer("q2", true)}
	got, action, err := svc.Submit(ctx, a.ID, answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != quiz.AttemptCompleted || !got.Passed || got.Score != 2 {
		t.Fatalf("submit result: %+v", got)
	}
	if got.CompletedAt == nil || got.TimeSpentSeconds == nil {
		t.Fatal("completed attempt must have completion timestamps")
	}
	if action.Kind != cert.ActionIssued || action.Certificate == nil {
		t.Fatalf("passing submit must issue a certificate, got %+v", action)
	}
	if action.Certificate.QuizAttemptID != a.ID {
		t.Fatalf("certificate bound to wrong attempt: %s", action.Certificate.QuizAttemptID)
	}

	fb, err := svc.Feedback(ctx, a.ID)
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if len(fb) != 2 {
		t.Fatalf("want feedback for each question, got %d records", len(fb))
	}
}

func TestSubmitIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 3)

	a, err := svc.Start(ctx, "u1", q.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	answers := []quiz.Answer{quiz.SelectedOption("q1", 1), quiz.BoolAnswer("q2", true)}
	first, action1, err := svc.Submit(ctx, a.ID, answers)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if action1.Kind != cert.ActionIssued {
		t.Fatalf("first submit: want issued, got %s", action1.Kind)
	}

	// Resubmitting with different answers changes nothing.
	second, action2, err := svc.Submit(ctx, a.ID, []quiz.Answer{quiz.SelectedOption("q1", 0)})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Score != first.Score || second.Passed != first.Passed {
		t.Fatalf("resubmit changed the stored result: %+v vs %+v", second, first)
	}
	if action2.Kind != cert.ActionAlreadyIssued {
		t.Fatalf("resubmit: want already_issued, got %s", action2.Kind)
	}
	if action2.Certificate.ID != action1.Certificate.ID {
		t.Fatal("resubmit must return the same certificate")
	}
}

func TestSubmitFailingScore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 3)

	a, err := svc.Start(ctx, "u1", q.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	got, action, err := svc.Submit(ctx, a.ID, []quiz.Answer{quiz.SelectedOption("q1", 0)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Passed {
		t.Fatalf("1/2 under threshold 70 must fail, got %+v", got)
	}
	if action.Kind != cert.ActionNoAction {
		t.Fatalf("failed attempt must not issue, got %s", action.Kind)
	}
}

func TestSubmitUsesAutosavedAnswers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 3)

	a, err := svc.Start(ctx, "u1", q.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	saved := []quiz.Answer{quiz.SelectedOption("q1", 1), quiz.BoolAnswer("q2", true)}
	if _, err := svc.SaveAnswers(ctx, a.ID, saved); err != nil {
		t.Fatalf("save answers: %v", err)
	}
	got, _, err := svc.Submit(ctx, a.ID, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Score != 2 {
		t.Fatalf("submit without a body must score the autosaved answers, got %d", got.Score)
	}
}

func TestAbandonedAttemptRejectsSubmit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 3)

	a, err := svc.Start(ctx, "u1", q.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Abandon(ctx, a.ID); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if _, _, err := svc.Submit(ctx, a.ID, nil); !errors.Is(err, quiz.ErrAttemptClosed) {
		t.Fatalf("want ErrAttemptClosed, got %v", err)
	}
	if _, err := svc.SaveAnswers(ctx, a.ID, nil); !errors.Is(err, quiz.ErrAttemptClosed) {
		t.Fatalf("autosave on abandoned attempt: want ErrAttemptClosed, got %v", err)
	}
}

func TestCertificatePageAggregate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 3)

	a, err := svc.Start(ctx, "u1", q.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := svc.Submit(ctx, a.ID, []quiz.Answer{quiz.SelectedOption("q1", 1), quiz.BoolAnswer("q2", true)}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	page, err := svc.CertificatePage(ctx, a.ID)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.Certificate == nil {
		t.Fatal("page for a passed attempt must carry the certificate")
	}
	if len(page.Feedback) != 2 {
		t.Fatalf("want 2 feedback rows, got %d", len(page.Feedback))
	}
	if !page.CanRetake || page.RemainingAttempts != 2 || page.MaxAttempts != 3 {
		t.Fatalf("retake verdict: %+v", page)
	}
	for _, qu := range page.Quiz.Questions {
		if qu.CorrectAnswer != nil || qu.Explanation != "" {
			t.Fatal("page quiz must be the learner view")
		}
	}

	// Reloading the page must not mint a second certificate.
	again, err := svc.CertificatePage(ctx, a.ID)
	if err != nil {
		t.Fatalf("page reload: %v", err)
	}
	if again.Certificate.ID != page.Certificate.ID {
		t.Fatal("page reload reissued the certificate")
	}
}

func TestCertificatePageShowsEarlierCertificateAfterFailedRetake(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 3)

	pass, err := svc.Start(ctx, "u1", q.ID, "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, action, err := svc.Submit(ctx, pass.ID, []quiz.Answer{quiz.SelectedOption("q1", 1), quiz.BoolAnswer("q2", true)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	fail, err := svc.Start(ctx, "u1", q.ID, "")
	if err != nil {
		t.Fatalf("retake: %v", err)
	}
	if _, _, err := svc.Submit(ctx, fail.ID, []quiz.Answer{quiz.SelectedOption("q1", 0)}); err != nil {
		t.Fatalf("failing submit: %v", err)
	}

	page, err := svc.CertificatePage(ctx, fail.ID)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.Certificate == nil || page.Certificate.ID != action.Certificate.ID {
		t.Fatalf("failed retake page must surface the earlier certificate, got %+v", page.Certificate)
	}
}

func TestLearnerViewStripsKeys(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	q := publishedQuiz(t, svc, 3)

	lv, err := svc.GetQuizForLearner(ctx, q.ID)
	if err != nil {
		t.Fatalf("learner view: %v", err)
	}
	for _, qu := range lv.Questions {
		if qu.CorrectAnswer != nil {
			t.Fatalf("question %s leaked its answer key", qu.ID)
		}
	}

	full, err := svc.GetQuiz(ctx, q.ID)
	if err != nil {
		t.Fatalf("full view: %v", err)
	}
	for _, qu := range full.Questions {
		if qu.CorrectAnswer == nil {
			t.Fatalf("full view must keep the answer key for %s", qu.ID)
		}
	}
}
