// Package i18n holds the user-facing texts in English, Russian and
// Spanish. Lookups fall back to English, then to the key itself.
package i18n

import (
	"strings"
)

type Lang string

const (
	EN Lang = "en"
	RU Lang = "ru"
	ES Lang = "es"

	Default = EN
)

// Supported lists languages in keyboard order.
func Supported() []Lang { return []Lang{EN, RU, ES} }

// Parse maps a stored or client language code to a supported language.
// "ru-RU" becomes RU; anything unknown becomes Default.
func Parse(code string) Lang {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	for _, l := range Supported() {
		if string(l) == code {
			return l
		}
	}
	return Default
}

// Name is the language's own name with its flag, for the picker.
func (l Lang) Name() string {
	switch l {
	case RU:
		return "🇷🇺 Русский"
	case ES:
		return "🇪🇸 Español"
	default:
		return "🇬🇧 English"
	}
}

type Key string

const (
	Welcome       Key = "welcome"
	LangSet       Key = "lang_set"
	AskHandle     Key = "ask_handle"
	Methodology   Key = "methodology"
	SellInfo      Key = "sell_info"
	ChannelInfo   Key = "channel_info"
	ManagerInfo   Key = "manager_info"
	NoUsername    Key = "no_username"
	Evaluating    Key = "evaluating"
	ErrorFormat   Key = "error_format"
	ErrorNotFound Key = "error_not_found"
	ErrorGeneric  Key = "error_generic"
	Result        Key = "result_template"
	Reminder      Key = "reminder_message"
	OrderDone     Key = "order_confirmed"
	OrderCanceled Key = "order_cancelled"
	BackToMenu    Key = "back_to_menu"

	BtnEvaluate  Key = "btn_evaluate"
	BtnSell      Key = "btn_sell"
	BtnLang      Key = "btn_lang"
	BtnMethod    Key = "btn_method"
	BtnChannel   Key = "btn_channel"
	BtnManager   Key = "btn_manager"
	BtnSellThis  Key = "btn_sell_this"
	BtnAnother   Key = "btn_another"
	BtnContact   Key = "btn_contact"
	BtnProceed   Key = "btn_proceed"
	BtnConfirm   Key = "btn_confirm"
	BtnCancel    Key = "btn_cancel"
	BtnBack      Key = "btn_back"
	BtnGoChannel Key = "btn_go_channel"
	BtnGoGroup   Key = "btn_go_group"
)

// MenuButtons are the reply keyboard buttons matched in every language.
var MenuButtons = []Key{BtnEvaluate, BtnSell, BtnLang, BtnMethod, BtnChannel, BtnManager}

// T returns the text for key in lang.
func T(lang Lang, key Key) string {
	if s, ok := catalog[lang][key]; ok {
		return s
	}
	if s, ok := catalog[Default][key]; ok {
		return s
	}
	return string(key)
}

// F is T with "{name}" placeholders replaced from kv pairs.
func F(lang Lang, key Key, kv ...string) string {
	s := T(lang, key)
	if len(kv) < 2 {
		return s
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// MatchButton finds which menu button text was pressed, in any language.
func MatchButton(text string) (Key, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	for _, k := range MenuButtons {
		for _, l := range Supported() {
			if T(l, k) == text {
				return k, true
			}
		}
	}
	return "", false
}
