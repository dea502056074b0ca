package i18n

// Locale codes with a complete table.
const (
	LocaleRU = "ru"
	LocaleEN = "en"
)

var catalogs = map[string]*table{
	LocaleRU: &ru,
	LocaleEN: &en,
}

// labels are shown on the /lang keyboard, each in its own language.
var labels = map[string]string{
	LocaleRU: "🇷🇺 Русский",
	LocaleEN: "🇬🇧 English",
}

var ru = table{
	KeyWelcome: "👋 Привет! Я — бот для сохранения изображений на фотохостинге!\n\n" +
		"Как мной пользоваться:\n" +
		"1. Просто отправь мне изображение 📸.\n" +
		"2. Я сохраню его и пришлю тебе ссылку 🔗 на изображение.\n\n" +
		"Делись ссылкой с друзьями и размещай на форумах! 😊\n\n" +
		"Сменить язык: /lang",
	KeySendPhotoHint: "📸 Отправьте мне фотографию для загрузки на фотохостинг!",
	KeyGenericError:  "❌ Что-то пошло не так. Попробуйте позже.",

	KeyAdminOnly: "❌ Эта команда доступна только администратору.",

	KeyStatsReport: "📊 Статистика бота:\n\n" +
		"👥 Всего пользователей: %d\n" +
		"📸 Всего изображений: %d\n" +
		"🔥 Активных пользователей: %d",
	KeyStatsError:       "❌ Ошибка при получении статистики.",
	KeyStatsDigestTitle: "🗓 Ежедневная сводка",

	KeyBroadcastUsage:    "❌ Использование: /all ваше сообщение",
	KeyBroadcastHeader:   "📢 Сообщение от администратора:\n\n%s",
	KeyBroadcastStarted:  "🔄 Начинаю рассылку для %d пользователей...",
	KeyBroadcastProgress: "🔄 Рассылка: %d из %d...",
	KeyBroadcastReport: "✅ Рассылка завершена!\n\n" +
		"📊 Результаты:\n" +
		"👥 Всего пользователей: %d\n" +
		"✅ Успешно отправлено: %d\n" +
		"❌ Не удалось отправить: %d",
	KeyBroadcastBusy:  "⏳ Рассылка уже выполняется. Дождитесь её завершения.",
	KeyBroadcastError: "❌ Ошибка при рассылке сообщения.",

	KeyUploadDone:   "✅ Изображение загружено!\n\n🔗 Ссылка: %s",
	KeyUploadFailed: "❌ Ошибка при загрузке изображения. Попробуйте еще раз.",
	KeyPhotoError:   "❌ Произошла ошибка при обработке изображения.",

	KeyLangPrompt:  "🌐 Выберите язык:",
	KeyLangChanged: "✅ Язык изменён: %s",
	KeyLangUnknown: "❌ Неизвестный язык. Доступные: %s",
}

var en = table{
	KeyWelcome: "👋 Hi! I save your images to a photo hosting service!\n\n" +
		"How to use me:\n" +
		"1. Just send me an image 📸.\n" +
		"2. I will upload it and send you a link 🔗 to it.\n\n" +
		"Share the link with friends and post it on forums! 😊\n\n" +
		"Change language: /lang",
	KeySendPhotoHint: "📸 Send me a photo to upload it to the image host!",
	KeyGenericError:  "❌ Something went wrong. Please try again later.",

	KeyAdminOnly: "❌ This command is available to the administrator only.",

	KeyStatsReport: "📊 Bot statistics:\n\n" +
		"👥 Total users: %d\n" +
		"📸 Total images: %d\n" +
		"🔥 Active users: %d",
	KeyStatsError:       "❌ Failed to load statistics.",
	KeyStatsDigestTitle: "🗓 Daily digest",

	KeyBroadcastUsage:    "❌ Usage: /all your message",
	KeyBroadcastHeader:   "📢 Message from the administrator:\n\n%s",
	KeyBroadcastStarted:  "🔄 Starting broadcast to %d users...",
	KeyBroadcastProgress: "🔄 Broadcasting: %d of %d...",
	KeyBroadcastReport: "✅ Broadcast finished!\n\n" +
		"📊 Results:\n" +
		"👥 Total users: %d\n" +
		"✅ Delivered: %d\n" +
		"❌ Failed: %d",
	KeyBroadcastBusy:  "⏳ A broadcast is already running. Wait for it to finish.",
	KeyBroadcastError: "❌ Failed to broadcast the message.",

	KeyUploadDone:   "✅ Image uploaded!\n\n🔗 Link: %s",
	KeyUploadFailed: "❌ Failed to upload the image. Please try again.",
	KeyPhotoError:   "❌ Something went wrong while processing the image.",

	KeyLangPrompt:  "🌐 Choose your language:",
	KeyLangChanged: "✅ Language changed: %s",
	KeyLangUnknown: "❌ Unknown language. Available: %s",
}
