package tg

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/pvzzle/stxwatch/internal/bus"
	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/market"
	"github.com/pvzzle/stxwatch/internal/storage"
	"github.com/pvzzle/stxwatch/internal/subs"
	"github.com/pvzzle/stxwatch/internal/tracker"
)

const (
	cbTrack     = "track"
	cbListings  = "listings"
	cbBalance   = "balance"
	cbSubWallet = "sub_wallet"

	cbMySubs      = "my_subs"
	cbUnsubWallet = "unsub_wallet"
	cbUnsubAll    = "unsub_all"
	cbBackToMain  = "back_main"

	cbHistory = "history"
)

type TxTracker interface {
	Enqueue(ctx context.Context, txID string, chatID int64) (string, error)
}

type ListingSource interface {
	Listings(ctx context.Context) []market.Listing
}

type BalanceSource interface {
	Get(ctx context.Context, principal string) (market.Balance, error)
}

type Service struct {
	bot     *tgbot.Bot
	network string

	txs      TxTracker
	listings ListingSource
	balances BalanceSource

	subStore *subs.Store
	notifyCh <-chan bus.Notification

	state *StateStore

	repo storage.Repository
	log  *zap.Logger
}

func NewService(
	b *tgbot.Bot,
	network string,
	txs TxTracker,
	listings ListingSource,
	balances BalanceSource,
	subStore *subs.Store,
	notifyCh <-chan bus.Notification,
	repo storage.Repository,
	logger *zap.Logger,
) *Service {
	s := &Service{
		bot:      b,
		network:  network,
		txs:      txs,
		listings: listings,
		balances: balances,
		subStore: subStore,
		notifyCh: notifyCh,
		state:    NewStateStore(),
		repo:     repo,
		log:      logging.OrNop(logger).Named("tg"),
	}
	s.registerHandlers()
	return s
}

func (s *Service) registerHandlers() {
	s.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, s.onStart)

	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbTrack, tgbot.MatchTypeExact, s.onCbTrack)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbListings, tgbot.MatchTypeExact, s.onCbListings)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbBalance, tgbot.MatchTypeExact, s.onCbBalance)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbSubWallet, tgbot.MatchTypeExact, s.onCbSubWallet)

	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbMySubs, tgbot.MatchTypeExact, s.onCbMySubs)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbUnsubWallet, tgbot.MatchTypeExact, s.onCbUnsubWallet)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbUnsubAll, tgbot.MatchTypeExact, s.onCbUnsubAll)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbBackToMain, tgbot.MatchTypeExact, s.onCbBackToMain)

	s.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "", tgbot.MatchTypePrefix, s.onAnyText)
	s.bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, cbHistory, tgbot.MatchTypeExact, s.onCbHistory)
}

func (s *Service) StartNotifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.notifyCh:
			_, err := s.bot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: n.ChatID,
				Text:   n.Text,
			})
			if err != nil {
				s.log.Warn("send notification", zap.Int64("chat_id", n.ChatID), zap.Error(err))
			}
		}
	}
}

func mainMenu() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Track tx", CallbackData: cbTrack},
				{Text: "Listings", CallbackData: cbListings},
			},
			{
				{Text: "Balance", CallbackData: cbBalance},
				{Text: "Subscribe wallet", CallbackData: cbSubWallet},
			},
			{
				{Text: "My subscriptions", CallbackData: cbMySubs},
				{Text: "History", CallbackData: cbHistory},
			},
		},
	}
}

func backMenu() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Back", CallbackData: cbBackToMain}},
		},
	}
}

func (s *Service) onStart(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	s.state.Set(chatID, StateIdle)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        "Hi! I track Stacks transactions, show marketplace listings and staking balances.\n\nPick an action:",
		ReplyMarkup: mainMenu(),
	})
}

// callbackChat answers the callback and returns its chat, or false when the
// originating message is no longer accessible.
func (s *Service) callbackChat(ctx context.Context, b *tgbot.Bot, upd *models.Update) (int64, bool) {
	cb := upd.CallbackQuery
	if cb == nil || cb.Message.Type == models.MaybeInaccessibleMessageTypeInaccessibleMessage {
		return 0, false
	}
	_ = s.answerCallback(ctx, b, cb.ID)
	return cb.Message.Message.Chat.ID, true
}

func (s *Service) prompt(ctx context.Context, b *tgbot.Bot, upd *models.Update, st ChatState, text string) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, st)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
}

func (s *Service) onCbTrack(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	s.prompt(ctx, b, upd, StateAwaitTxID, "Send the transaction id (0x + 64 hex):")
}

func (s *Service) onCbBalance(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	s.prompt(ctx, b, upd, StateAwaitBalancePrincipal, "Send the wallet address (SP... or ST...):")
}

func (s *Service) onCbSubWallet(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	s.prompt(ctx, b, upd, StateAwaitWalletPrincipal, "Send the wallet address to watch (SP... or ST...):")
}

func (s *Service) onCbListings(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateIdle)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   "⏳ Loading listings…",
	})

	ls := s.listings.Listings(ctx)
	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        FormatListings(ls),
		ReplyMarkup: backMenu(),
	})
}

func (s *Service) onAnyText(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	text := strings.TrimSpace(upd.Message.Text)

	if strings.HasPrefix(text, "/") {
		return
	}

	switch s.state.Get(chatID) {
	case StateAwaitTxID:
		s.handleTrackTx(ctx, b, chatID, text)

	case StateAwaitBalancePrincipal:
		s.handleBalance(ctx, b, chatID, text)

	case StateAwaitWalletPrincipal:
		s.handleSetWallet(ctx, b, chatID, text)

	default:
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   "Use /start to open the menu.",
		})
	}
}

func (s *Service) handleTrackTx(ctx context.Context, b *tgbot.Bot, chatID int64, txID string) {
	if !IsTxID(txID) {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   "That does not look like a transaction id. Expected 0x + 64 hex characters.",
		})
		return
	}
	s.state.Reset(chatID)

	id := subs.NormalizeTxID(txID)
	job, err := s.txs.Enqueue(ctx, id, chatID)
	if err != nil {
		s.log.Warn("enqueue tracking", zap.String("tx_id", id), zap.Error(err))
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("Could not start tracking: %v", err),
		})
		return
	}
	s.log.Debug("tracking requested", zap.String("tx_id", id), zap.String("job_id", job), zap.Int64("chat_id", chatID))

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text: fmt.Sprintf("⏳ Tracking %s\nI'll message you when it settles.\nExplorer: %s",
			id, tracker.ExplorerURL(id, s.network)),
	})
}

func (s *Service) handleBalance(ctx context.Context, b *tgbot.Bot, chatID int64, principal string) {
	if !IsPrincipal(principal) {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   "That does not look like a Stacks address. Try again.",
		})
		return
	}
	s.state.Reset(chatID)

	bal, err := s.balances.Get(ctx, principal)
	if err != nil {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("Could not read balances: %v", err),
		})
		return
	}

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        FormatBalance(principal, bal),
		ReplyMarkup: backMenu(),
	})
}

func (s *Service) handleSetWallet(ctx context.Context, b *tgbot.Bot, chatID int64, principal string) {
	if !IsPrincipal(principal) {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   "That does not look like a Stacks address. Try again.",
		})
		return
	}
	principal = strings.TrimSpace(principal)

	s.subStore.SetPrincipal(chatID, principal)
	s.state.Reset(chatID)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("✅ OK! I'll notify you about tracked transactions sent by %s.", principal),
	})
}

func (s *Service) answerCallback(ctx context.Context, b *tgbot.Bot, callbackID string) error {
	_, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	})
	return err
}

func (s *Service) onCbMySubs(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateIdle)

	s.sendMySubs(ctx, b, chatID)
}

func (s *Service) onCbUnsubWallet(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.subStore.ClearPrincipal(chatID)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   "✅ Wallet subscription removed.",
	})
	s.sendMySubs(ctx, b, chatID)
}

func (s *Service) onCbUnsubAll(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.subStore.ClearAll(chatID)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   "✅ All subscriptions removed.",
	})
	s.sendMySubs(ctx, b, chatID)
}

func (s *Service) onCbBackToMain(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}
	s.state.Set(chatID, StateIdle)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        "Main menu:",
		ReplyMarkup: mainMenu(),
	})
}

func (s *Service) sendMySubs(ctx context.Context, b *tgbot.Bot, chatID int64) {
	u, ok := s.subStore.GetCopy(chatID)

	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   FormatSubs(u, ok),
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "Remove: wallet", CallbackData: cbUnsubWallet}},
				{{Text: "Remove all", CallbackData: cbUnsubAll}},
				{{Text: "Back", CallbackData: cbBackToMain}},
			},
		},
	})
}

func (s *Service) onCbHistory(ctx context.Context, b *tgbot.Bot, upd *models.Update) {
	chatID, ok := s.callbackChat(ctx, b, upd)
	if !ok {
		return
	}

	items, err := s.repo.ListHistory(ctx, chatID, 10)
	if err != nil {
		_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("Could not read history: %v", err),
		})
		return
	}

	text := "History is empty."
	if len(items) > 0 {
		text = FormatHistory(items)
	}
	_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: backMenu(),
	})
}
