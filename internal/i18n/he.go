// ABOUTME: Hebrew message catalog
// ABOUTME: Keys absent here render from the English catalog

package i18n

var hebrew = map[Key]string{
	AuthWelcome: "👋 **ברוכים הבאים ל-Ally!**\n\nאני העוזרת החכמה שלך ליומן.\n\n" +
		"**שלב 1:** אימות האימייל שלך\n**שלב 2:** חיבור יומן Google\n\nאנא הזן את כתובת האימייל שלך כדי להתחיל:",
	AuthOtpSent: "📧 **בדוק את תיבת הדואר שלך!**\n\nשלחתי קוד אימות בן 6 ספרות ל-**{{email}}**.\n\n" +
		"אנא הזן את הקוד למטה (תקף ל-{{minutes}} דקות).\n\n_אימייל לא נכון? פשוט הקלד את הנכון._",
	AuthOtpSentNewEmail: "📧 קוד אימות נשלח ל-**{{email}}**.\n\nאנא הזן את הקוד בן 6 הספרות (תקף ל-{{minutes}} דקות):",
	AuthOtpExpired:      "⏰ קוד האימות פג תוקף.\n\nאנא הזן את כתובת האימייל שלך שוב:",
	AuthOtpInvalid:      "❌ קוד אימות לא תקין.\n\nאנא נסה שוב או הקלד כתובת אימייל אחרת.",
	AuthEnterOtpOrEmail: "אנא הזן את קוד האימות בן 6 הספרות, או הקלד כתובת אימייל אחרת:",
	AuthVerified:        "✅ **האימייל אומת!**\n\nמצוין, אתה באמצע הדרך. השלב הבא: חבר את יומן Google שלך.",
	AuthSaveError:       "שגיאה בשמירת האימייל. אנא נסה שוב.",

	ErrorProcessing:      "שגיאה בעיבוד הבקשה שלך.",
	ErrorNoAgentOutput:   "לא התקבל פלט מסוכן ה-AI.",
	ErrorConfirmation:    "שגיאה באישור. אנא נסה שוב.",
	ErrorStillProcessing: "רגע, אני עדיין עובדת על הבקשה הקודמת שלך...",
	PendingEventPrompt:   "יש לך יצירת אירוע ממתינה. אנא השב 'כן' ליצירה למרות התנגשויות, או 'לא' לביטול.",

	EventCreationCanceled: "יצירת האירוע בוטלה.",
}
