package telegram_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chattop/internal/quiz"
	"github.com/edgard/chattop/internal/telegram"
)

type fakePollAPI struct {
	sendErr   error
	deleteErr error
	lastPoll  *bot.SendPollParams
}

func (f *fakePollAPI) SendPoll(_ context.Context, params *bot.SendPollParams) (*models.Message, error) {
	f.lastPoll = params
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &models.Message{ID: 77}, nil
}

func (f *fakePollAPI) DeleteMessage(context.Context, *bot.DeleteMessageParams) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return true, nil
}

func TestPollSenderSendQuiz(t *testing.T) {
	t.Parallel()

	api := &fakePollAPI{}
	sender := telegram.NewPollSender(api, 600, nil)
	q := &quiz.Question{Text: "Q?", Options: []string{"a", "b", "c"}, CorrectIndex: 2, Explanation: "Correct Answer: c"}

	id, err := sender.SendQuiz(context.Background(), -100, q)
	if err != nil {
		t.Fatalf("SendQuiz() error = %v", err)
	}
	if id != 77 {
		t.Errorf("SendQuiz() id = %d, want 77", id)
	}
	p := api.lastPoll
	if p.Type != "quiz" || p.CorrectOptionID != 2 || len(p.Options) != 3 || p.OpenPeriod != 600 {
		t.Errorf("unexpected poll params %+v", p)
	}
	if p.IsAnonymous == nil || *p.IsAnonymous {
		t.Error("quiz polls must not be anonymous")
	}
}

func TestPollSenderClassifiesErrors(t *testing.T) {
	t.Parallel()

	blocked := &fakePollAPI{sendErr: fmt.Errorf("%w, Forbidden: bot was kicked from the group chat", bot.ErrorForbidden)}
	_, err := telegram.NewPollSender(blocked, 0, nil).SendQuiz(context.Background(), 1, &quiz.Question{})
	if !errors.Is(err, quiz.ErrChatUnreachable) {
		t.Errorf("forbidden error = %v, want ErrChatUnreachable", err)
	}

	flaky := &fakePollAPI{sendErr: errors.New("connection reset")}
	_, err = telegram.NewPollSender(flaky, 0, nil).SendQuiz(context.Background(), 1, &quiz.Question{})
	if err == nil || errors.Is(err, quiz.ErrChatUnreachable) {
		t.Errorf("transient error = %v, want plain error", err)
	}

	gone := &fakePollAPI{deleteErr: fmt.Errorf("%w, Bad Request: message to delete not found", bot.ErrorBadRequest)}
	if err := telegram.NewPollSender(gone, 0, nil).DeletePoll(context.Background(), 1, 5); err == nil || errors.Is(err, quiz.ErrChatUnreachable) {
		t.Errorf("delete error = %v, want transient error", err)
	}
}
