package telegram

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botflow/core/flow"
)

// CallbackUnique tags every inline button the adapter emits. Callback data is
// encoded by Telebot as \fflow|<session_key>|<action>[|<data>].
const CallbackUnique = "flow"

const (
	backButtonText   = "« Back"
	cancelButtonText = "✖ Cancel"
)

// Button is one inline keyboard button bound to a flow action. Data is
// forwarded to the action's resolver as event data.
type Button struct {
	Label  string
	Action string
	Data   string
}

// Content is the rendered form of a step payload: message text plus an
// optional explicit keyboard. When Rows is nil the keyboard is derived from
// the step's labelled actions instead.
type Content struct {
	Text      string
	ParseMode string
	Rows      [][]Button
	// HideNav suppresses the automatic back/cancel row.
	HideNav bool
}

// ContentFunc computes content from the live event, for steps whose view
// depends on event data, such as page turns.
type ContentFunc func(ev flow.Event) Content

// ResolveContent maps the supported payload shapes onto Content. Anything
// unrecognized renders via fmt.Sprint, so a flow is never unrenderable.
func ResolveContent(payload any, ev flow.Event) Content {
	switch v := payload.(type) {
	case Content:
		return v
	case ContentFunc:
		return v(ev)
	case func(flow.Event) Content:
		return v(ev)
	case string:
		return Content{Text: v}
	case fmt.Stringer:
		return Content{Text: v.String()}
	case nil:
		return Content{}
	default:
		return Content{Text: fmt.Sprint(v)}
	}
}

// actionsPerRow is how many derived action buttons share a keyboard row.
const actionsPerRow = 2

// BuildMarkup renders the inline keyboard for a step of the given session.
// canGoBack controls whether the nav row offers a back button.
func BuildMarkup(sessionKey string, step *flow.Step, content Content, canGoBack bool) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows []tele.Row

	if content.Rows != nil {
		for _, row := range content.Rows {
			btns := make([]tele.Btn, 0, len(row))
			for _, b := range row {
				btns = append(btns, flowButton(markup, sessionKey, b.Label, b.Action, b.Data))
			}
			if len(btns) > 0 {
				rows = append(rows, markup.Row(btns...))
			}
		}
	} else {
		var btns []tele.Btn
		for _, a := range step.Actions {
			// Unlabelled actions are reachable only through explicit
			// content rows or event data, never as plain buttons.
			if a.Label == "" {
				continue
			}
			btns = append(btns, flowButton(markup, sessionKey, a.Label, a.ID, ""))
		}
		for i := 0; i < len(btns); i += actionsPerRow {
			end := i + actionsPerRow
			if end > len(btns) {
				end = len(btns)
			}
			rows = append(rows, markup.Row(btns[i:end]...))
		}
	}

	if !content.HideNav {
		var nav []tele.Btn
		if canGoBack {
			nav = append(nav, flowButton(markup, sessionKey, backButtonText, flow.ActionBack, ""))
		}
		nav = append(nav, flowButton(markup, sessionKey, cancelButtonText, flow.ActionCancel, ""))
		rows = append(rows, markup.Row(nav...))
	}

	markup.Inline(rows...)
	return markup
}

func flowButton(markup *tele.ReplyMarkup, sessionKey, label, action, data string) tele.Btn {
	if data != "" {
		return markup.Data(label, CallbackUnique, sessionKey, action, data)
	}
	return markup.Data(label, CallbackUnique, sessionKey, action)
}

// noticeText renders a terminal notice. Empty notices fall back to a default
// closing line per outcome.
func noticeText(outcome flow.Outcome, notice any) string {
	if notice != nil {
		if c, ok := notice.(Content); ok {
			return c.Text
		}
		if s := strings.TrimSpace(fmt.Sprint(notice)); s != "" {
			return s
		}
	}
	switch outcome {
	case flow.OutcomeCancelled:
		return "Cancelled."
	case flow.OutcomeExpired:
		return "This conversation timed out."
	default:
		return "Done."
	}
}
