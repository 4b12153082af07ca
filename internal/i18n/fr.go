// ABOUTME: French message catalog
// ABOUTME: Keys absent here render from the English catalog

package i18n

var french = map[Key]string{
	AuthWelcome: "👋 **Bienvenue sur Ally !**\n\nJe suis votre assistant calendrier intelligent.\n\n" +
		"**Étape 1 :** Vérifier votre e-mail\n**Étape 2 :** Connecter votre Google Agenda\n\n" +
		"Veuillez entrer votre adresse e-mail pour commencer :",
	AuthOtpSent: "📧 **Vérifiez votre boîte de réception !**\n\nJ'ai envoyé un code de vérification à 6 chiffres à **{{email}}**.\n\n" +
		"Veuillez entrer le code ci-dessous (valide {{minutes}} minutes).\n\n_Mauvais e-mail ? Tapez simplement le bon._",
	AuthOtpSentNewEmail: "📧 Code de vérification envoyé à **{{email}}**.\n\nVeuillez entrer le code à 6 chiffres (valide {{minutes}} minutes) :",
	AuthOtpExpired:      "⏰ Code de vérification expiré.\n\nVeuillez entrer votre adresse e-mail à nouveau :",
	AuthOtpInvalid:      "❌ Code de vérification invalide.\n\nVeuillez réessayer ou tapez une autre adresse e-mail.",
	AuthEnterOtpOrEmail: "Veuillez entrer le code à 6 chiffres, ou tapez une autre adresse e-mail :",
	AuthVerified:        "✅ **E-mail vérifié !**\n\nParfait, vous y êtes presque. Connectez maintenant votre Google Agenda.",
	AuthSaveError:       "Erreur lors de l'enregistrement de l'e-mail. Veuillez réessayer.",

	ErrorProcessing:      "Erreur lors du traitement de votre demande.",
	ErrorNoAgentOutput:   "Aucune réponse reçue de l'agent IA.",
	ErrorConfirmation:    "Erreur pendant la confirmation. Veuillez réessayer.",
	ErrorStillProcessing: "Attendez, je travaille encore sur votre demande précédente...",
	PendingEventPrompt:   "Vous avez une création d'événement en attente. Veuillez répondre 'oui' pour créer malgré les conflits, ou 'non' pour annuler.",

	EventCreationCanceled: "Création d'événement annulée.",
}
