package i18n

// Texts are HTML (Telegram parse mode). Placeholder values must be escaped
// by the caller.
var catalog = map[Lang]map[Key]string{
	EN: {
		Welcome:       "👋 Welcome to the handle valuation bot!\n\nPlease choose your language:",
		LangSet:       "✅ Language set.\n\nSend me a handle (for example <b>@username</b>) and I will estimate its market value.",
		AskHandle:     "✍️ Send the handle you want to evaluate, for example <b>@username</b>.",
		Methodology:   "📐 <b>How we value handles</b>\n\nWe look at length and structure, the category the word belongs to, how rare comparable names are, current market demand and the branding potential. The result is an indicative price range, not an offer.",
		SellInfo:      "💼 <b>Selling {username}</b>\n\nOur manager handles the whole deal: escrow, transfer and payment. Confirm the order to reserve a slot or talk to the manager first.",
		ChannelInfo:   "📢 Recent sales, market news and new listings are published in our channel and discussed in the group.",
		ManagerInfo:   "💬 Our manager will answer any question about buying or selling handles.",
		NoUsername:    "🤷 Your account has no public username.\n\nSend the handle you want to evaluate instead, for example <b>@username</b>.",
		Evaluating:    "⏳ Evaluating <b>{username}</b>…",
		ErrorFormat:   "⚠️ That does not look like a valid handle. Use 5-32 characters: Latin letters, digits and underscores, starting with a letter.",
		ErrorNotFound: "❌ Handle <b>{username}</b> was not found on Telegram.",
		ErrorGeneric:  "⚠️ Something went wrong. Please try again in a minute.",
		Result: "📊 <b>Valuation report for {username}</b>\n\n" +
			"🔤 Structure: {structure}\n" +
			"🏷 Category: {category}\n" +
			"💎 Rarity: {rarity}\n" +
			"📈 Demand: {demand}\n" +
			"⭐ Score: {score}/10\n" +
			"🌐 Branding: {branding}\n\n" +
			"💰 <b>Estimated value: ${price_low} – ${price_high}</b>",
		Reminder:      "👋 Still thinking about your handle?\n\nBuyers are active right now. Our manager can help you sell it at the best price.",
		OrderDone:     "✅ <b>Order placed!</b>\n\nThe manager will contact you shortly about {username}.",
		OrderCanceled: "👌 Order cancelled. You can come back to it any time.",
		BackToMenu:    "🏠 Main menu.",

		BtnEvaluate:  "🔍 Evaluate a handle",
		BtnSell:      "💰 Sell your handle",
		BtnLang:      "🌐 Change language",
		BtnMethod:    "📐 Valuation methodology",
		BtnChannel:   "📢 Channel",
		BtnManager:   "💬 Contact manager",
		BtnSellThis:  "💰 Sell this handle",
		BtnAnother:   "🔁 Evaluate another",
		BtnContact:   "💬 Contact manager",
		BtnProceed:   "🤝 Proceed with the manager",
		BtnConfirm:   "✅ Confirm order",
		BtnCancel:    "✖️ Cancel",
		BtnBack:      "🏠 Back to menu",
		BtnGoChannel: "📢 Open channel",
		BtnGoGroup:   "👥 Join the group",
	},
	RU: {
		Welcome:       "👋 Добро пожаловать в бот оценки юзернеймов!\n\nВыберите язык:",
		LangSet:       "✅ Язык установлен.\n\nОтправьте юзернейм (например <b>@username</b>), и я оценю его рыночную стоимость.",
		AskHandle:     "✍️ Отправьте юзернейм для оценки, например <b>@username</b>.",
		Methodology:   "📐 <b>Как мы оцениваем юзернеймы</b>\n\nМы учитываем длину и структуру, категорию слова, редкость похожих имён, текущий спрос и потенциал для бренда. Результат — ориентировочный диапазон цены, а не оферта.",
		SellInfo:      "💼 <b>Продажа {username}</b>\n\nМенеджер проведёт всю сделку: гарант, передачу и оплату. Подтвердите заказ или сначала напишите менеджеру.",
		ChannelInfo:   "📢 Свежие продажи, новости рынка и новые лоты публикуются в нашем канале и обсуждаются в группе.",
		ManagerInfo:   "💬 Менеджер ответит на любые вопросы о покупке и продаже юзернеймов.",
		NoUsername:    "🤷 У вашего аккаунта нет публичного юзернейма.\n\nОтправьте юзернейм для оценки, например <b>@username</b>.",
		Evaluating:    "⏳ Оцениваю <b>{username}</b>…",
		ErrorFormat:   "⚠️ Это не похоже на юзернейм. Допустимо 5-32 символа: латиница, цифры и подчёркивания, начиная с буквы.",
		ErrorNotFound: "❌ Юзернейм <b>{username}</b> не найден в Telegram.",
		ErrorGeneric:  "⚠️ Что-то пошло не так. Попробуйте через минуту.",
		Result: "📊 <b>Оценка {username}</b>\n\n" +
			"🔤 Структура: {structure}\n" +
			"🏷 Категория: {category}\n" +
			"💎 Редкость: {rarity}\n" +
			"📈 Спрос: {demand}\n" +
			"⭐ Рейтинг: {score}/10\n" +
			"🌐 Брендинг: {branding}\n\n" +
			"💰 <b>Оценочная стоимость: ${price_low} – ${price_high}</b>",
		Reminder:      "👋 Всё ещё думаете о своём юзернейме?\n\nПокупатели сейчас активны. Менеджер поможет продать его по лучшей цене.",
		OrderDone:     "✅ <b>Заказ оформлен!</b>\n\nМенеджер скоро свяжется с вами по поводу {username}.",
		OrderCanceled: "👌 Заказ отменён. Вы можете вернуться к нему в любое время.",
		BackToMenu:    "🏠 Главное меню.",

		BtnEvaluate:  "🔍 Оценить юзернейм",
		BtnSell:      "💰 Продать юзернейм",
		BtnLang:      "🌐 Сменить язык",
		BtnMethod:    "📐 Методика оценки",
		BtnChannel:   "📢 Канал",
		BtnManager:   "💬 Связаться с менеджером",
		BtnSellThis:  "💰 Продать этот юзернейм",
		BtnAnother:   "🔁 Оценить другой",
		BtnContact:   "💬 Связаться с менеджером",
		BtnProceed:   "🤝 Перейти к менеджеру",
		BtnConfirm:   "✅ Подтвердить заказ",
		BtnCancel:    "✖️ Отмена",
		BtnBack:      "🏠 В меню",
		BtnGoChannel: "📢 Открыть канал",
		BtnGoGroup:   "👥 Вступить в группу",
	},
	ES: {
		Welcome:       "👋 ¡Bienvenido al bot de valoración de nombres de usuario!\n\nElige tu idioma:",
		LangSet:       "✅ Idioma configurado.\n\nEnvíame un nombre de usuario (por ejemplo <b>@username</b>) y estimaré su valor de mercado.",
		AskHandle:     "✍️ Envía el nombre de usuario que quieres valorar, por ejemplo <b>@username</b>.",
		Methodology:   "📐 <b>Cómo valoramos los nombres</b>\n\nAnalizamos la longitud y la estructura, la categoría de la palabra, la rareza de nombres similares, la demanda actual y el potencial de marca. El resultado es un rango de precio orientativo, no una oferta.",
		SellInfo:      "💼 <b>Venta de {username}</b>\n\nNuestro gestor se encarga de todo: garantía, transferencia y pago. Confirma el pedido o habla antes con el gestor.",
		ChannelInfo:   "📢 Las ventas recientes, noticias del mercado y nuevos anuncios se publican en nuestro canal y se comentan en el grupo.",
		ManagerInfo:   "💬 Nuestro gestor responderá cualquier pregunta sobre la compra o venta de nombres.",
		NoUsername:    "🤷 Tu cuenta no tiene nombre de usuario público.\n\nEnvía el nombre que quieres valorar, por ejemplo <b>@username</b>.",
		Evaluating:    "⏳ Valorando <b>{username}</b>…",
		ErrorFormat:   "⚠️ Eso no parece un nombre de usuario válido. Usa 5-32 caracteres: letras latinas, dígitos y guiones bajos, empezando por una letra.",
		ErrorNotFound: "❌ El nombre <b>{username}</b> no existe en Telegram.",
		ErrorGeneric:  "⚠️ Algo salió mal. Inténtalo de nuevo en un minuto.",
		Result: "📊 <b>Informe de valoración de {username}</b>\n\n" +
			"🔤 Estructura: {structure}\n" +
			"🏷 Categoría: {category}\n" +
			"💎 Rareza: {rarity}\n" +
			"📈 Demanda: {demand}\n" +
			"⭐ Puntuación: {score}/10\n" +
			"🌐 Marca: {branding}\n\n" +
			"💰 <b>Valor estimado: ${price_low} – ${price_high}</b>",
		Reminder:      "👋 ¿Sigues pensando en tu nombre de usuario?\n\nLos compradores están activos ahora. Nuestro gestor puede ayudarte a venderlo al mejor precio.",
		OrderDone:     "✅ <b>¡Pedido realizado!</b>\n\nEl gestor te contactará pronto sobre {username}.",
		OrderCanceled: "👌 Pedido cancelado. Puedes retomarlo cuando quieras.",
		BackToMenu:    "🏠 Menú principal.",

		BtnEvaluate:  "🔍 Valorar un nombre",
		BtnSell:      "💰 Vender tu nombre",
		BtnLang:      "🌐 Cambiar idioma",
		BtnMethod:    "📐 Metodología",
		BtnChannel:   "📢 Canal",
		BtnManager:   "💬 Contactar al gestor",
		BtnSellThis:  "💰 Vender este nombre",
		BtnAnother:   "🔁 Valorar otro",
		BtnContact:   "💬 Contactar al gestor",
		BtnProceed:   "🤝 Continuar con el gestor",
		BtnConfirm:   "✅ Confirmar pedido",
		BtnCancel:    "✖️ Cancelar",
		BtnBack:      "🏠 Volver al menú",
		BtnGoChannel: "📢 Abrir canal",
		BtnGoGroup:   "👥 Unirse al grupo",
	},
}
