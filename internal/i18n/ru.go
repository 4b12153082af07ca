// ABOUTME: Russian message catalog
// ABOUTME: Keys absent here render from the English catalog

package i18n

var russian = map[Key]string{
	AuthWelcome: "Добро пожаловать! Для начала введите ваш email для верификации:",
	AuthOtpSent: "Код верификации отправлен на **{{email}}**.\n\nВведите 6-значный код из письма (действителен {{minutes}} минут).\n\n" +
		"Если вы ввели неправильный email, просто введите правильный.",
	AuthOtpSentNewEmail: "Код верификации отправлен на **{{email}}**.\n\nВведите 6-значный код из письма (действителен {{minutes}} минут):",
	AuthOtpExpired:      "Срок действия кода истёк. Введите email снова:",
	AuthOtpInvalid:      "Неверный код верификации. Попробуйте снова или введите другой email.",
	AuthEnterOtpOrEmail: "Введите 6-значный код из письма или введите другой email:",
	AuthVerified:        "Email подтверждён и сохранён! Теперь подключите Google Календарь.",
	AuthSaveError:       "Ошибка сохранения email. Попробуйте снова.",

	ErrorProcessing:      "Ошибка обработки запроса.",
	ErrorNoAgentOutput:   "Не получен ответ от AI-агента.",
	ErrorConfirmation:    "Ошибка подтверждения. Попробуйте снова.",
	ErrorStillProcessing: "Подождите, я ещё обрабатываю ваш предыдущий запрос...",
	PendingEventPrompt:   "У вас есть ожидающее создание события. Ответьте 'да' для создания несмотря на конфликты, или 'нет' для отмены.",

	EventCreationCanceled: "Создание события отменено.",
}
