package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/chattop/internal/quiz"
)

// PollAPI is the subset of the Bot API used to deliver quiz polls.
type PollAPI interface {
	SendPoll(ctx context.Context, params *bot.SendPollParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// PollSender delivers quiz polls through the Bot API.
type PollSender struct {
	api        PollAPI
	openPeriod int
	logger     *slog.Logger
}

// NewPollSender creates a PollSender. openPeriod is the poll lifetime in
// seconds; zero leaves the poll open until it is deleted.
func NewPollSender(api PollAPI, openPeriod int, logger *slog.Logger) *PollSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &PollSender{
		api:        api,
		openPeriod: openPeriod,
		logger:     logger.With("component", "poll_sender"),
	}
}

// SendQuiz sends q as a non-anonymous quiz poll and returns its message id.
// Permanent failures wrap quiz.ErrChatUnreachable.
func (s *PollSender) SendQuiz(ctx context.Context, chatID int64, q *quiz.Question) (int, error) {
	options := make([]models.InputPollOption, 0, len(q.Options))
	for _, o := range q.Options {
		options = append(options, models.InputPollOption{Text: o})
	}

	isAnonymous := false
	msg, err := s.api.SendPoll(ctx, &bot.SendPollParams{
		ChatID:          chatID,
		Question:        q.Text,
		Options:         options,
		IsAnonymous:     &isAnonymous,
		Type:            "quiz",
		CorrectOptionID: q.CorrectIndex,
		Explanation:     q.Explanation,
		OpenPeriod:      s.openPeriod,
	})
	if err != nil {
		return 0, classify(err)
	}
	s.logger.DebugContext(ctx, "Quiz poll sent", "chat_id", chatID, "message_id", msg.ID)
	return msg.ID, nil
}

// DeletePoll removes a previously sent poll message.
func (s *PollSender) DeletePoll(ctx context.Context, chatID int64, messageID int) error {
	if _, err := s.api.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	if IsPermanent(err) {
		return fmt.Errorf("%w: %v", quiz.ErrChatUnreachable, err)
	}
	return err
}
