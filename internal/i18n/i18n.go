// ABOUTME: User-facing message catalog with language negotiation via golang.org/x/text
// ABOUTME: Messages are Markdown with {{name}} placeholders; missing translations fall back to English

package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Key identifies a message.
type Key string

const (
	AuthWelcome         Key = "auth.welcome"
	AuthOtpSent         Key = "auth.otpSent"
	AuthOtpSentNewEmail Key = "auth.otpSentToNewEmail"
	AuthOtpExpired      Key = "auth.otpExpired"
	AuthOtpInvalid      Key = "auth.otpInvalid"
	AuthOtpTooMany      Key = "auth.otpTooManyAttempts"
	AuthEnterOtpOrEmail Key = "auth.enterOtpOrNewEmail"
	AuthVerified        Key = "auth.emailVerified"
	AuthSaveError       Key = "auth.dbSaveError"
	AuthOtpSendFailed   Key = "auth.otpSendFailed"
	AuthRestored        Key = "auth.restored"

	SessionExpired Key = "session.expired"

	RateLimitAuth    Key = "rateLimit.auth"
	RateLimitMessage Key = "rateLimit.message"

	CredentialGrantAccess Key = "credential.grantAccess"
	CredentialReconnect   Key = "credential.reconnect"
	CredentialFullAccess  Key = "credential.fullAccess"
	CredentialExpired     Key = "credential.sessionExpired"
	CredentialTransient   Key = "credential.transient"
	CredentialConnected   Key = "credential.connected"

	ChangeEmailPrompt      Key = "changeEmail.prompt"
	ChangeEmailInvalid     Key = "changeEmail.invalidEmail"
	ChangeEmailSame        Key = "changeEmail.sameEmail"
	ChangeEmailTaken       Key = "changeEmail.taken"
	ChangeEmailSent        Key = "changeEmail.sent"
	ChangeEmailCancelled   Key = "changeEmail.cancelled"
	ChangeEmailExpired     Key = "changeEmail.expired"
	ChangeEmailInvalidCode Key = "changeEmail.invalidCode"
	ChangeEmailReprompt    Key = "changeEmail.reprompt"
	ChangeEmailSuccess     Key = "changeEmail.success"

	ErrorProcessing      Key = "errors.processing"
	ErrorNoAgentOutput   Key = "errors.noOutputFromAgent"
	ErrorConfirmation    Key = "errors.confirmation"
	ErrorStillProcessing Key = "errors.processingPreviousRequest"
	PendingEventPrompt   Key = "errors.pendingEventPrompt"

	EventCreated          Key = "common.eventCreated"
	EventCreationCanceled Key = "common.eventCreationCancelled"
	ConversationEnded     Key = "common.conversationEnded"
)

var catalogs = map[language.Tag]map[Key]string{
	language.English: english,
	language.German:  german,
	language.French:  french,
	language.Russian: russian,
	language.Hebrew:  hebrew,
	language.Arabic:  arabic,
}

// supported lists the catalog languages; English first so it wins ties.
var supported = []language.Tag{
	language.English,
	language.German,
	language.French,
	language.Russian,
	language.Hebrew,
	language.Arabic,
}

var matcher = language.NewMatcher(supported)

// Match returns the best supported language for a client language code such as "de-AT".
func Match(code string) language.Tag {
	if code == "" {
		return language.English
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Printer renders messages for one language.
type Printer struct {
	lang language.Tag
}

// For returns a Printer for a client language code.
func For(code string) Printer {
	return Printer{lang: Match(code)}
}

// Lang returns the negotiated language.
func (p Printer) Lang() language.Tag {
	return p.lang
}

// T renders key, replacing {{name}} placeholders from alternating name/value pairs.
func (p Printer) T(key Key, pairs ...string) string {
	msg, ok := catalogs[p.lang][key]
	if !ok {
		msg, ok = english[key]
	}
	if !ok {
		return string(key)
	}
	if len(pairs) < 2 {
		return msg
	}

	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{{"+pairs[i]+"}}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(msg)
}
