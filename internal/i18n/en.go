// ABOUTME: English message catalog
// ABOUTME: Keys absent here render from the English catalog

package i18n

var english = map[Key]string{
	AuthWelcome: "👋 **Welcome to Ally!**\n\nI'm your private AI secretary for Google Calendar.\n\n" +
		"**Step 1:** Verify your email\n**Step 2:** Connect Google Calendar\n\n" +
		"Please enter your email address to get started:",
	AuthOtpSent: "📧 A verification code has been sent to **{{email}}**.\n\n" +
		"Please enter the 6-digit code from your email (valid for {{minutes}} minutes).\n\n" +
		"_Wrong email? Just type the correct one._",
	AuthOtpSentNewEmail: "📧 Verification code sent to **{{email}}**.\n\nPlease enter the 6-digit code from your email (valid for {{minutes}} minutes):",
	AuthOtpExpired:      "⏰ Verification code expired. Please enter your email again:",
	AuthOtpInvalid:      "❌ Invalid verification code. Please try again or type a new email address.",
	AuthOtpTooMany:      "Too many incorrect codes. Please enter your email address to receive a new one:",
	AuthEnterOtpOrEmail: "Please enter the 6-digit verification code from your email, or enter a different email address:",
	AuthVerified: "✅ **Email verified!**\n\nYou're halfway there. " +
		"Next, connect your Google Calendar so I can manage your schedule.",
	AuthSaveError:     "Error saving email. Please try again.",
	AuthOtpSendFailed: "Failed to send a verification code to **{{email}}**. Please try again or use a different email.",
	AuthRestored:      "Welcome back! You're signed in as **{{email}}**.",

	SessionExpired: "🔒 Your session expired after 24 hours of inactivity. Please verify your email again.",

	RateLimitAuth:    "Too many verification attempts. Please try again in {{minutes}} minutes.",
	RateLimitMessage: "You're sending messages too quickly. Please wait {{seconds}} seconds and try again.",

	CredentialGrantAccess: "📅 To manage your calendar I need access to Google Calendar.\n\n[Grant access]({{url}})",
	CredentialReconnect:   "Your Google Calendar connection is inactive. Please reconnect:\n\n[Reconnect Google Calendar]({{url}})",
	CredentialFullAccess:  "Your Google Calendar connection is missing offline access. Please reconnect and grant full access:\n\n[Reconnect with full access]({{url}})",
	CredentialExpired:     "Your Google session has expired. Please reconnect your calendar:\n\n[Reconnect Google Calendar]({{url}})",
	CredentialTransient:   "I couldn't reach Google Calendar right now. Please try again in a moment.",
	CredentialConnected:   "Google Calendar connected for {{email}}. You can return to the chat.",

	ChangeEmailPrompt:      "Your current email is **{{email}}**.\n\nPlease enter your new email address:",
	ChangeEmailInvalid:     "Please enter a valid email address.",
	ChangeEmailSame:        "This is already your linked email address.",
	ChangeEmailTaken:       "This email is already linked to another account.",
	ChangeEmailSent:        "A verification code has been sent to **{{email}}**.\n\nPlease enter the 6-digit code to confirm the email change.\n\nThis code expires in {{minutes}} minutes. Type /cancel to abort.",
	ChangeEmailCancelled:   "Email change cancelled.",
	ChangeEmailExpired:     "Verification code expired. Start the email change again with /changeemail.",
	ChangeEmailInvalidCode: "Invalid verification code. Please try again or type /cancel.",
	ChangeEmailReprompt:    "Please enter the 6-digit code sent to **{{email}}**, or type /cancel.",
	ChangeEmailSuccess:     "✅ Your email is now **{{email}}**. Please reconnect Google Calendar for the new address.",

	ErrorProcessing:      "Error processing your request.",
	ErrorNoAgentOutput:   "No output received from the assistant.",
	ErrorConfirmation:    "Error during confirmation. Please try again.",
	ErrorStillProcessing: "Hold on, I'm still working on your previous request...",
	PendingEventPrompt:   "You have a pending event creation. Please reply 'yes' to create it despite conflicts, or 'no' to cancel.",

	EventCreated:          "✅ Event created.",
	EventCreationCanceled: "Event creation cancelled.",
	ConversationEnded:     "Conversation ended. Send a new message any time.",
}
