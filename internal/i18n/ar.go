// ABOUTME: Arabic message catalog
// ABOUTME: Keys absent here render from the English catalog

package i18n

var arabic = map[Key]string{
	AuthWelcome: "👋 **مرحباً بك في Ally!**\n\nأنا مساعدك الذكي للتقويم.\n\n" +
		"**الخطوة 1:** التحقق من بريدك الإلكتروني\n**الخطوة 2:** ربط تقويم Google\n\nيرجى إدخال عنوان بريدك الإلكتروني للبدء:",
	AuthOtpSent: "📧 **تحقق من صندوق الوارد!**\n\nلقد أرسلت رمز تحقق مكون من 6 أرقام إلى **{{email}}**.\n\n" +
		"يرجى إدخال الرمز أدناه (صالح لمدة {{minutes}} دقائق).\n\n_بريد خاطئ؟ فقط اكتب الصحيح._",
	AuthOtpSentNewEmail: "📧 تم إرسال رمز التحقق إلى **{{email}}**.\n\nيرجى إدخال الرمز المكون من 6 أرقام (صالح لمدة {{minutes}} دقائق):",
	AuthOtpExpired:      "⏰ انتهت صلاحية رمز التحقق.\n\nيرجى إدخال عنوان بريدك الإلكتروني مرة أخرى:",
	AuthOtpInvalid:      "❌ رمز التحقق غير صالح.\n\nيرجى المحاولة مرة أخرى أو كتابة عنوان بريد إلكتروني مختلف.",
	AuthEnterOtpOrEmail: "يرجى إدخال الرمز المكون من 6 أرقام، أو اكتب عنوان بريد إلكتروني مختلف:",
	AuthVerified:        "✅ **تم التحقق من البريد الإلكتروني!**\n\nرائع، أنت في منتصف الطريق. الخطوة التالية: قم بربط تقويم Google الخاص بك.",
	AuthSaveError:       "خطأ في حفظ البريد الإلكتروني. يرجى المحاولة مرة أخرى.",

	ErrorProcessing:      "خطأ في معالجة طلبك.",
	ErrorNoAgentOutput:   "لم يتم استلام أي مخرجات من وكيل الذكاء الاصطناعي.",
	ErrorConfirmation:    "خطأ أثناء التأكيد. يرجى المحاولة مرة أخرى.",
	ErrorStillProcessing: "لحظة، ما زلت أعمل على طلبك السابق...",
	PendingEventPrompt:   "لديك حدث قيد الإنشاء. يرجى الرد بـ 'نعم' للإنشاء رغم التعارضات، أو 'لا' للإلغاء.",

	EventCreationCanceled: "تم إلغاء إنشاء الحدث.",
}
