package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"chat-quiz-bot/internal/app"
	"chat-quiz-bot/internal/domain"
)

func TestStartQuizShowsFirstQuestion(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	snap := h.start(t, "u1")

	if snap.CurrentIndex != 0 || snap.Score != 0 || snap.State != app.StateAwaitingAnswer {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
	if len(snap.Questions) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(snap.Questions))
	}
	if snap.ID == "" {
		t.Fatalf("expected session id")
	}

	shown := h.notes.questionsFor("u1")
	if len(shown) != 1 {
		t.Fatalf("expected one question shown, got %d", len(shown))
	}
	q := shown[0]
	if q.Index != 0 || q.Total != 10 || q.Prompt != snap.Questions[0].Prompt {
		t.Fatalf("unexpected question view %+v", q)
	}
	if len(q.Options) != 4 {
		t.Fatalf("expected 4 options, got %v", q.Options)
	}
	if q.Options[snap.Options.Correct] != snap.Questions[0].CorrectMeaning {
		t.Fatalf("correct option does not match the prompt")
	}
	if h.timers.pending() != 1 {
		t.Fatalf("expected one armed timer, got %d", h.timers.pending())
	}

	if name, ok, _ := h.names.ResolveName(context.Background(), "u1"); !ok || name != "name-u1" {
		t.Fatalf("expected username to be saved, got %q", name)
	}
}

func TestAnswerAdvancesAndScores(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	h.start(t, "u1")

	res := h.answer(t, "u1", 0, true)
	if res.Outcome != app.OutcomeAccepted || !res.Correct || res.Score != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.notes.lastResult("u1") != "✅ Correct!" {
		t.Fatalf("expected correct feedback, got %q", h.notes.lastResult("u1"))
	}

	res = h.answer(t, "u1", 1, false)
	if res.Outcome != app.OutcomeAccepted || res.Correct || res.Score != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	snap, _ := h.svc.Session("u1")
	if !h.notes.sawResult("u1", snap.Questions[1].CorrectMeaning) {
		t.Fatalf("wrong answer feedback must reveal the correct meaning")
	}
	if snap.CurrentIndex != 2 || len(snap.AskedIDs) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(h.notes.questionsFor("u1")) != 3 {
		t.Fatalf("expected the third question to be shown")
	}
}

func TestDuplicateAnswerIsStale(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	h.start(t, "u1")

	h.answer(t, "u1", 0, true)
	res := h.answer(t, "u1", 0, true)
	if res.Outcome != app.OutcomeStale {
		t.Fatalf("expected stale outcome, got %+v", res)
	}
	snap, _ := h.svc.Session("u1")
	if snap.Score != 1 || snap.CurrentIndex != 1 {
		t.Fatalf("stale answer must not change state, got %+v", snap)
	}
}

func TestAnswerWithoutSession(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	res := h.answer(t, "ghost", 0, true)
	if res.Outcome != app.OutcomeNoSession {
		t.Fatalf("expected no-session outcome, got %+v", res)
	}
	if !h.notes.sawResult("ghost", "ended") {
		t.Fatalf("expected session ended notice")
	}
}

func TestTimeoutAfterAnswerIsNoop(t *testing.T) {
	h := newHarness(t, makePool(6), 2)
	h.start(t, "u1")
	first := h.timers.last()

	h.answer(t, "u1", 0, true)
	if !first.isStopped() {
		t.Fatalf("answer must cancel the question timer")
	}

	if h.svc.Timeout(context.Background(), "u1", 0) {
		t.Fatalf("timeout for an answered question must be a no-op")
	}
	// a callback that raced past Stop is fenced out as well
	first.fire()

	snap, ok := h.svc.Session("u1")
	if !ok {
		t.Fatalf("session must still be live")
	}
	if snap.Score != 1 || snap.CurrentIndex != 1 {
		t.Fatalf("expected score 1 at index 1, got %+v", snap)
	}
}

func TestTimerExpiryAdvances(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	h.start(t, "u1")

	h.timers.last().fire()

	snap, _ := h.svc.Session("u1")
	if snap.CurrentIndex != 1 || snap.Score != 0 {
		t.Fatalf("expected timeout to advance without scoring, got %+v", snap)
	}
	if !h.notes.sawResult("u1", "Time's up") {
		t.Fatalf("expected time up notice")
	}
	if len(snap.AskedIDs) != 1 || snap.AskedIDs[0] != snap.Questions[0].ID {
		t.Fatalf("timed out question must be recorded as asked, got %v", snap.AskedIDs)
	}
	if h.timers.pending() != 1 {
		t.Fatalf("expected a fresh timer for the next question")
	}
}

func TestAnswerAndTimeoutRaceResolveOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t, makePool(12), 10)
		h.start(t, "u1")
		timer := h.timers.last()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = h.svc.Answer(context.Background(), "u1", 0, true)
		}()
		go func() {
			defer wg.Done()
			timer.fire()
		}()
		wg.Wait()

		snap, _ := h.svc.Session("u1")
		if snap.CurrentIndex != 1 {
			t.Fatalf("question 0 must resolve exactly once, index %d", snap.CurrentIndex)
		}
		if snap.Score > 1 {
			t.Fatalf("score must not exceed resolved questions, got %d", snap.Score)
		}
	}
}

func TestStartQuizReplacesRunningSession(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	old := h.start(t, "u1")
	h.answer(t, "u1", 0, true)
	oldTimer := h.timers.last()

	fresh := h.start(t, "u1")
	if fresh.ID == old.ID {
		t.Fatalf("expected a new session id")
	}
	if !oldTimer.isStopped() {
		t.Fatalf("previous session timer must be cancelled")
	}

	oldTimer.fire()
	snap, _ := h.svc.Session("u1")
	if snap.ID != fresh.ID || snap.CurrentIndex != 0 || snap.Score != 0 {
		t.Fatalf("old timer must not touch the new session, got %+v", snap)
	}
	if h.timers.pending() != 1 {
		t.Fatalf("expected exactly one armed timer, got %d", h.timers.pending())
	}
	if _, found, _ := h.progress.Get(context.Background(), "u1"); found {
		t.Fatalf("replaced session must not persist progress")
	}
}

func TestCompletionLevelsUp(t *testing.T) {
	h := newHarness(t, makePool(20), 10)
	snap := h.start(t, "u1")

	for i := 0; i < 10; i++ {
		h.answer(t, "u1", i, i < 6)
	}

	if _, ok := h.svc.Session("u1"); ok {
		t.Fatalf("completed session must leave the session table")
	}
	if !h.notes.sawResult("u1", "Your score: 6/10") {
		t.Fatalf("expected final score message")
	}
	if !h.notes.sawResult("u1", "level 2") {
		t.Fatalf("expected level up message")
	}

	progress, found, err := h.progress.Get(context.Background(), "u1")
	if err != nil || !found {
		t.Fatalf("expected stored progress, found=%v err=%v", found, err)
	}
	if progress.Level != 2 || progress.Score != 6 {
		t.Fatalf("expected level 2 score 6, got %+v", progress)
	}
	if len(progress.AskedHistory) != 10 {
		t.Fatalf("expected 10 asked ids, got %v", progress.AskedHistory)
	}
	asked := progress.Asked()
	for _, q := range snap.Questions {
		if _, ok := asked[q.ID]; !ok {
			t.Fatalf("question %s missing from history", q.ID)
		}
	}

	events := h.events.all()
	if len(events) != 1 {
		t.Fatalf("expected one completion event, got %d", len(events))
	}
	if ev := events[0]; ev.SessionID != snap.ID || ev.Score != 6 || ev.Total != 10 || !ev.LeveledUp || !ev.Durable {
		t.Fatalf("unexpected event %+v", ev)
	}
	if h.timers.pending() != 0 {
		t.Fatalf("no timer may outlive a completed session")
	}
}

func TestCompletionBelowPassMarkKeepsLevel(t *testing.T) {
	h := newHarness(t, makePool(20), 10)
	h.start(t, "u1")
	for i := 0; i < 10; i++ {
		h.answer(t, "u1", i, i < 4)
	}

	progress, _, _ := h.progress.Get(context.Background(), "u1")
	if progress.Level != 1 || progress.Score != 4 {
		t.Fatalf("expected level 1 score 4, got %+v", progress)
	}
	if h.notes.sawResult("u1", "Level up") {
		t.Fatalf("unexpected level up")
	}
}

func TestSecondQuizAvoidsAskedQuestions(t *testing.T) {
	h := newHarness(t, makePool(20), 10)
	first := h.start(t, "u1")
	for i := 0; i < 10; i++ {
		h.answer(t, "u1", i, false)
	}

	second := h.start(t, "u1")
	seen := make(map[string]struct{})
	for _, q := range first.Questions {
		seen[q.ID] = struct{}{}
	}
	for _, q := range second.Questions {
		if _, dup := seen[q.ID]; dup {
			t.Fatalf("question %s repeated while unseen items remained", q.ID)
		}
	}
}

func TestQuitForfeitsRun(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	h.start(t, "u1")
	h.answer(t, "u1", 0, true)
	timer := h.timers.last()

	if !h.svc.Quit(context.Background(), "u1") {
		t.Fatalf("expected quit to succeed")
	}
	if !timer.isStopped() {
		t.Fatalf("quit must cancel the pending timer")
	}
	if _, ok := h.svc.Session("u1"); ok {
		t.Fatalf("quit session must leave the table")
	}
	if _, found, _ := h.progress.Get(context.Background(), "u1"); found {
		t.Fatalf("quit must not persist progress")
	}

	timer.fire()
	if h.svc.Quit(context.Background(), "u1") {
		t.Fatalf("second quit must report no active quiz")
	}
	if res := h.answer(t, "u1", 1, true); res.Outcome != app.OutcomeNoSession {
		t.Fatalf("answer after quit must report no session, got %+v", res)
	}
}

func TestStartQuizWithEmptyPool(t *testing.T) {
	h := newHarness(t, nil, 10)
	err := h.svc.StartQuiz(context.Background(), "u1", "alice")
	if !errors.Is(err, domain.ErrEmptyPool) {
		t.Fatalf("expected empty pool error, got %v", err)
	}
	if _, ok := h.svc.Session("u1"); ok {
		t.Fatalf("no session may start on an empty pool")
	}
	if !h.notes.sawResult("u1", "no questions") {
		t.Fatalf("expected empty pool notice")
	}
}

func TestStartQuizStoreUnavailable(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	h.progress.readsDown = true

	err := h.svc.StartQuiz(context.Background(), "u1", "alice")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if _, ok := h.svc.Session("u1"); ok {
		t.Fatalf("no session may start without progress")
	}
}

func TestFailedRestartKeepsRunningSession(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	h.start(t, "u1")
	h.answer(t, "u1", 0, true)

	h.progress.mu.Lock()
	h.progress.readsDown = true
	h.progress.mu.Unlock()
	if err := h.svc.StartQuiz(context.Background(), "u1", "alice"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}

	snap, ok := h.svc.Session("u1")
	if !ok || snap.CurrentIndex != 1 || snap.Score != 1 {
		t.Fatalf("running session must survive a failed restart, got %+v (live=%v)", snap, ok)
	}
	if !h.notes.sawResult("u1", "try again") {
		t.Fatalf("expected a retry notice")
	}
}

func TestSmallPoolSkipsUnbuildableQuestions(t *testing.T) {
	items := []domain.QuizItem{
		{ID: "A", Prompt: "A", CorrectMeaning: "a"},
		{ID: "B", Prompt: "B", CorrectMeaning: "b"},
		{ID: "C", Prompt: "C", CorrectMeaning: "c"},
	}
	h := newHarness(t, items, 10)
	if err := h.svc.StartQuiz(context.Background(), "u1", "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if n := len(h.notes.questionsFor("u1")); n != 0 {
		t.Fatalf("no question can be shown with only two distractors, got %d", n)
	}
	if !h.notes.sawResult("u1", "Your score: 0/3") {
		t.Fatalf("expected the session to finish with 0/3")
	}
	progress, found, _ := h.progress.Get(context.Background(), "u1")
	if !found || len(progress.AskedHistory) != 0 || progress.Level != 1 {
		t.Fatalf("skipped questions must not be recorded, got %+v", progress)
	}
	if h.timers.count() != 0 {
		t.Fatalf("no timer should be armed")
	}
}

func TestCompletionRetriesFailedWrite(t *testing.T) {
	h := newHarness(t, makePool(12), 2)
	h.progress.failPuts = 1
	h.start(t, "u1")
	h.answer(t, "u1", 0, true)
	h.answer(t, "u1", 1, true)

	if h.progress.putCalls() != 2 {
		t.Fatalf("expected one retry, got %d writes", h.progress.putCalls())
	}
	progress, found, _ := h.progress.Get(context.Background(), "u1")
	if !found || progress.Level != 2 || progress.Score != 2 {
		t.Fatalf("expected retried write to land, got %+v", progress)
	}
	if h.notes.sawResult("u1", "could not save") {
		t.Fatalf("unexpected not-saved notice")
	}
}

func TestCompletionReportsLostWrite(t *testing.T) {
	h := newHarness(t, makePool(12), 2)
	h.progress.failPuts = 100
	h.start(t, "u1")
	h.answer(t, "u1", 0, true)
	h.answer(t, "u1", 1, false)

	if _, ok := h.svc.Session("u1"); ok {
		t.Fatalf("session must be removed even when the write fails")
	}
	if !h.notes.sawResult("u1", "could not save") {
		t.Fatalf("expected not-saved notice")
	}
	events := h.events.all()
	if len(events) != 1 || events[0].Durable {
		t.Fatalf("expected one non-durable event, got %+v", events)
	}
}

func TestSelectOptionJudgesPosition(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	snap := h.start(t, "u1")
	ctx := context.Background()

	res, err := h.svc.SelectOption(ctx, "u1", 0, snap.Options.Correct)
	if err != nil || !res.Correct || res.Score != 1 {
		t.Fatalf("expected correct answer, got %+v err=%v", res, err)
	}

	snap, _ = h.svc.Session("u1")
	wrong := (snap.Options.Correct + 1) % len(snap.Options.Items)
	res, err = h.svc.SelectOption(ctx, "u1", 1, wrong)
	if err != nil || res.Correct || res.Score != 1 {
		t.Fatalf("expected wrong answer, got %+v err=%v", res, err)
	}

	res, err = h.svc.SelectOption(ctx, "u1", 2, 99)
	if !errors.Is(err, domain.ErrOptionNotFound) || res.Outcome != app.OutcomeRejected {
		t.Fatalf("expected rejected option, got %+v err=%v", res, err)
	}
	snap, _ = h.svc.Session("u1")
	if snap.CurrentIndex != 2 {
		t.Fatalf("rejected option must not advance, got %d", snap.CurrentIndex)
	}
}

func TestProgressDefaultsForNewUser(t *testing.T) {
	h := newHarness(t, makePool(12), 10)
	p, err := h.svc.RequestProgress(context.Background(), "new")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Level != 1 || p.Score != 0 || len(p.AskedHistory) != 0 {
		t.Fatalf("unexpected default progress %+v", p)
	}
	if !h.notes.sawResult("new", "Level: 1") {
		t.Fatalf("expected progress message")
	}
}

func TestConcurrentUsersAreIndependent(t *testing.T) {
	h := newHarness(t, makePool(30), 5)
	var wg sync.WaitGroup
	for u := 0; u < 20; u++ {
		userID := fmt.Sprintf("u%d", u)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.svc.StartQuiz(context.Background(), userID, userID); err != nil {
				t.Errorf("start %s: %v", userID, err)
				return
			}
			for i := 0; i < 5; i++ {
				_, _ = h.svc.Answer(context.Background(), userID, i, true)
			}
		}()
	}
	wg.Wait()

	all, err := h.progress.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 20 {
		t.Fatalf("expected 20 records, got %d", len(all))
	}
	for _, p := range all {
		if p.Score != 5 || p.Level != 2 {
			t.Fatalf("unexpected record %+v", p)
		}
	}
}
