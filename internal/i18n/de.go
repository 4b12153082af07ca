// ABOUTME: German message catalog
// ABOUTME: Keys absent here render from the English catalog

package i18n

var german = map[Key]string{
	AuthWelcome: "👋 **Willkommen bei Ally!**\n\nIch bin Ihr KI-gestützter Kalender-Assistent.\n\n" +
		"**Schritt 1:** E-Mail verifizieren\n**Schritt 2:** Google Kalender verbinden\n\n" +
		"Bitte geben Sie Ihre E-Mail-Adresse ein, um zu beginnen:",
	AuthOtpSent: "📧 **Prüfen Sie Ihren Posteingang!**\n\nIch habe einen 6-stelligen Code an **{{email}}** gesendet.\n\n" +
		"Bitte geben Sie den Code unten ein (gültig für {{minutes}} Minuten).\n\n_Falsche E-Mail? Tippen Sie einfach die richtige ein._",
	AuthOtpSentNewEmail: "📧 Bestätigungscode an **{{email}}** gesendet.\n\nBitte geben Sie den 6-stelligen Code ein (gültig für {{minutes}} Minuten):",
	AuthOtpExpired:      "⏰ Bestätigungscode abgelaufen.\n\nBitte geben Sie Ihre E-Mail-Adresse erneut ein:",
	AuthOtpInvalid:      "❌ Ungültiger Bestätigungscode.\n\nBitte versuchen Sie es erneut oder geben Sie eine andere E-Mail-Adresse ein.",
	AuthEnterOtpOrEmail: "Bitte geben Sie den 6-stelligen Code ein, oder tippen Sie eine andere E-Mail-Adresse:",
	AuthVerified:        "✅ **E-Mail verifiziert!**\n\nSuper, Sie sind auf halbem Weg. Verbinden Sie als Nächstes Ihren Google Kalender.",
	AuthSaveError:       "Fehler beim Speichern der E-Mail. Bitte versuchen Sie es erneut.",

	ErrorProcessing:      "Fehler bei der Bearbeitung Ihrer Anfrage.",
	ErrorNoAgentOutput:   "Keine Ausgabe vom AI-Agenten erhalten.",
	ErrorConfirmation:    "Fehler während der Bestätigung. Bitte versuchen Sie es erneut.",
	ErrorStillProcessing: "Moment, ich arbeite noch an Ihrer vorherigen Anfrage...",
	PendingEventPrompt:   "Sie haben eine ausstehende Terminerstellung. Bitte antworten Sie mit 'ja', um trotz Konflikten zu erstellen, oder 'nein', um abzubrechen.",

	EventCreationCanceled: "Terminerstellung abgebrochen.",
}
