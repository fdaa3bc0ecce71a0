package telegram

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botflow/core/flow"
	"github.com/m3rciful/botflow/core/logger"
	"github.com/m3rciful/botflow/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/botflow/core/telegram/helpers"
)

const (
	busyText   = "Hold on, still working on your last tap"
	staleText  = "This conversation has ended"
	failedText = "Something went wrong, try again"
)

// Host bridges Telegram updates and the flow engine: commands start flows,
// callback taps become flow events, instructions become message edits. Each
// flow session is pinned to the message that renders it.
type Host struct {
	bot        *tele.Bot
	dispatcher *flow.Dispatcher
	flows      *Flows

	mu       sync.Mutex
	messages map[string]tele.StoredMessage
}

// NewHost wires a host to the bot and dispatcher and installs the expiry
// hook that rewrites messages of swept sessions.
func NewHost(bot *tele.Bot, dispatcher *flow.Dispatcher, flows *Flows) *Host {
	h := &Host{
		bot:        bot,
		dispatcher: dispatcher,
		flows:      flows,
		messages:   make(map[string]tele.StoredMessage),
	}
	dispatcher.Registry().SetOnExpired(h.expired)
	return h
}

// Dispatcher returns the flow dispatcher behind this host.
func (h *Host) Dispatcher() *flow.Dispatcher { return h.dispatcher }

// LaunchHandler returns the bot handler that starts the flow bound to command.
func (h *Host) LaunchHandler(command string) tele.HandlerFunc {
	return func(c tele.Context) error {
		launch, ok := h.flows.Lookup(command)
		if !ok {
			return nil
		}
		return h.StartFlow(c, launch.Definition)
	}
}

// StartFlow creates a session for the sender and renders the entry step as a
// new message. Session keys are random, so concurrent flows by the same user
// coexist; the per-key uniqueness guarantee matters for hosts that derive
// keys from stable identifiers.
func (h *Host) StartFlow(c tele.Context, def *flow.Definition) error {
	user := c.Sender()
	if user == nil {
		return nil
	}

	key := uuid.NewString()
	s, err := h.dispatcher.Registry().Create(key, def, user.ID)
	if err != nil {
		return err
	}

	ctx := tghelpers.BuildContext(c)
	ctx = logger.WithSessionKey(ctx, key)

	entry := s.Current()
	ev := flow.Event{SessionKey: key, UserID: user.ID}
	content := ResolveContent(entry.Payload, ev)
	markup := BuildMarkup(key, entry, content, false)

	msg, err := h.bot.Send(c.Chat(), content.Text, &tele.SendOptions{
		ParseMode:   content.ParseMode,
		ReplyMarkup: markup,
	})
	if err != nil {
		// Roll the session back through the engine so lifecycle logging
		// and eviction stay consistent.
		h.dispatcher.Dispatch(ctx, flow.Event{SessionKey: key, Action: flow.ActionCancel, UserID: user.ID})
		logger.Warn(ctx, "tg.flow", "flow.start_failed",
			slog.String("flow", def.Name()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return err
	}

	h.remember(key, msg)
	logger.Info(ctx, "tg.flow", "flow.started",
		slog.String("flow", def.Name()),
		slog.String("session_key", key),
		slog.Int64("user_id", user.ID),
	)
	return nil
}

// HandleCallback is the OnCallback route: it decodes the button payload,
// dispatches the event and applies the resulting instruction.
func (h *Host) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	unique, payload := callbacks.ParseData(cb)
	if unique != CallbackUnique {
		return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
	}

	parts := strings.SplitN(payload, "|", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
	}

	var userID int64
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	ev := flow.Event{SessionKey: parts[0], Action: parts[1], UserID: userID}
	if len(parts) == 3 {
		ev.Data = parts[2]
	}

	ctx := tghelpers.BuildContext(c)
	ctx = logger.WithSessionKey(ctx, ev.SessionKey)

	in := h.dispatcher.Dispatch(ctx, ev)
	return h.apply(c, ev, in)
}

func (h *Host) apply(c tele.Context, ev flow.Event, in flow.Instruction) error {
	switch in.Kind {
	case flow.KindRender:
		s, ok := h.dispatcher.Registry().Lookup(ev.SessionKey)
		canGoBack := ok && s.HistoryDepth() > 0
		content := ResolveContent(in.Step.Payload, ev)
		markup := BuildMarkup(ev.SessionKey, in.Step, content, canGoBack)
		_ = c.Respond()
		return c.Edit(content.Text, &tele.SendOptions{
			ParseMode:   content.ParseMode,
			ReplyMarkup: markup,
		})

	case flow.KindFinish:
		h.forget(ev.SessionKey)
		_ = c.Respond()
		// Editing without markup drops the inline keyboard with the text.
		return c.Edit(noticeText(in.Outcome, in.Notice))

	case flow.KindBusy:
		return c.Respond(&tele.CallbackResponse{Text: busyText})

	case flow.KindStale:
		return c.Respond(&tele.CallbackResponse{Text: staleText})

	case flow.KindFailed:
		return c.Respond(&tele.CallbackResponse{Text: failedText})

	default: // KindRejected: silent ack, the tap was a no-op
		return c.Respond()
	}
}

// expired runs on the registry's janitor goroutine for every swept session.
func (h *Host) expired(s *flow.Session) {
	msg, ok := h.take(s.Key())
	if !ok {
		return
	}
	if _, err := h.bot.Edit(msg, noticeText(flow.OutcomeExpired, s.Notice())); err != nil {
		logger.Warn(logger.Background(), "tg.flow", "flow.expire_edit_failed",
			slog.String("session_key", s.Key()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func (h *Host) remember(key string, msg *tele.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages[key] = tele.StoredMessage{
		MessageID: strconv.Itoa(msg.ID),
		ChatID:    msg.Chat.ID,
	}
}

func (h *Host) forget(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.messages, key)
}

func (h *Host) take(key string) (tele.StoredMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg, ok := h.messages[key]
	if ok {
		delete(h.messages, key)
	}
	return msg, ok
}
