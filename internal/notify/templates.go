package notify

import "jobdispatch/internal/models"

// EventTemplate is the built-in content and channel set of one event type.
type EventTemplate struct {
	Type     models.EventType
	Subject  string
	Body     string
	Channels []models.Channel
}

// defaultTemplates maps every event type to its French default template.
var defaultTemplates = map[models.EventType]EventTemplate{
	models.EventInterviewScheduled: {
		Type:    models.EventInterviewScheduled,
		Subject: "Entretien planifié pour {{job_title}}",
		Body: `Bonjour {{candidate_name}},

Nous avons le plaisir de vous inviter à un entretien pour le poste de {{job_title}}.

📅 Date : {{interview_date}}
⏰ Heure : {{interview_time}}
{{#if_visio}}
🎥 Type : Visioconférence
🔗 Lien : {{interview_link}}
{{/if_visio}}
{{#if_presentiel}}
📍 Type : Présentiel
📍 Lieu : {{interview_location}}
{{/if_presentiel}}
{{#if_telephone}}
📞 Type : Entretien téléphonique
📞 Nous vous appellerons au : {{candidate_phone}}
{{/if_telephone}}

{{#if_notes}}
ℹ️ Informations complémentaires :
{{interview_notes}}
{{/if_notes}}

Nous vous prions de confirmer votre présence.

Cordialement,
{{company_name}}`,
		Channels: []models.Channel{models.ChannelInApp, models.ChannelEmail},
	},

	models.EventInterviewReminder24h: {
		Type:    models.EventInterviewReminder24h,
		Subject: "Rappel : Entretien demain pour {{job_title}}",
		Body: `Bonjour {{candidate_name}},

Nous vous rappelons que votre entretien pour le poste de {{job_title}} est prévu demain.

📅 Date : {{interview_date}}
⏰ Heure : {{interview_time}}
{{#if_visio}}
🎥 Lien de visioconférence : {{interview_link}}
{{/if_visio}}
{{#if_presentiel}}
📍 Lieu : {{interview_location}}
{{/if_presentiel}}

À bientôt !
{{company_name}}`,
		Channels: []models.Channel{models.ChannelInApp, models.ChannelEmail, models.ChannelSMS},
	},

	models.EventInterviewReminder2h: {
		Type:    models.EventInterviewReminder2h,
		Subject: "Rappel : Entretien dans 2 heures",
		Body: `Bonjour {{candidate_name}},

Votre entretien pour {{job_title}} commence dans 2 heures ({{interview_time}}).

{{#if_visio}}
🎥 Lien de connexion : {{interview_link}}
{{/if_visio}}

À tout de suite !
{{company_name}}`,
		Channels: []models.Channel{models.ChannelInApp, models.ChannelSMS},
	},

	models.EventInterviewCancelled: {
		Type:    models.EventInterviewCancelled,
		Subject: "Annulation d'entretien - {{job_title}}",
		Body: `Bonjour {{candidate_name}},

Nous sommes au regret de vous informer que l'entretien prévu le {{interview_date}} à {{interview_time}} pour le poste de {{job_title}} a été annulé.

{{#if_reason}}
Raison : {{cancellation_reason}}
{{/if_reason}}

Nous vous contacterons prochainement pour reprogrammer.

Cordialement,
{{company_name}}`,
		Channels: []models.Channel{models.ChannelInApp, models.ChannelEmail},
	},

	models.EventInterviewRescheduled: {
		Type:    models.EventInterviewRescheduled,
		Subject: "Entretien reprogrammé - {{job_title}}",
		Body: `Bonjour {{candidate_name}},

Votre entretien pour le poste de {{job_title}} a été reprogrammé.

📅 Nouvelle date : {{interview_date}}
⏰ Nouvelle heure : {{interview_time}}

Merci de confirmer votre disponibilité.

Cordialement,
{{company_name}}`,
		Channels: []models.Channel{models.ChannelInApp, models.ChannelEmail, models.ChannelSMS},
	},

	models.EventApplicationStatusUpdate: {
		Type:    models.EventApplicationStatusUpdate,
		Subject: "Mise à jour de votre candidature - {{job_title}}",
		Body: `Bonjour {{candidate_name}},

Votre candidature pour le poste de {{job_title}} a été mise à jour.

Statut : {{new_status}}

Vous pouvez consulter les détails sur votre espace candidat.

Cordialement,
{{company_name}}`,
		Channels: []models.Channel{models.ChannelInApp, models.ChannelEmail},
	},

	models.EventMessageReceived: {
		Type:    models.EventMessageReceived,
		Subject: "Nouveau message de {{company_name}}",
		Body: `Bonjour {{candidate_name}},

Vous avez reçu un nouveau message concernant votre candidature pour {{job_title}}.

Connectez-vous à votre espace pour le consulter.

Cordialement,
{{company_name}}`,
		Channels: []models.Channel{models.ChannelInApp, models.ChannelEmail},
	},

	models.EventJobClosed: {
		Type:    models.EventJobClosed,
		Subject: "Clôture de l'offre - {{job_title}}",
		Body: `Bonjour {{candidate_name}},

Nous vous informons que l'offre pour le poste de {{job_title}} est désormais clôturée.

Nous vous remercions de l'intérêt porté à notre entreprise et vous souhaitons bonne chance dans vos recherches.

Cordialement,
{{company_name}}`,
		Channels: []models.Channel{models.ChannelInApp, models.ChannelEmail},
	},

	models.EventCreditsValidated: {
		Type:    models.EventCreditsValidated,
		Subject: "Paiement validé - {{credits_amount}} crédits IA ajoutés",
		Body: `Bonjour,

Excellente nouvelle! Votre paiement a été validé avec succès.

💳 Référence : {{payment_reference}}
💰 Montant : {{price_amount}}
✨ Crédits ajoutés : {{credits_amount}} crédits IA
📊 Nouveau solde : {{new_balance}} crédits

Vos crédits sont maintenant disponibles et vous pouvez les utiliser pour accéder aux services IA premium de JobGuinée.

{{#if_notes}}
📝 Note de l'administrateur :
{{admin_notes}}
{{/if_notes}}

Merci pour votre confiance!

L'équipe JobGuinée`,
		Channels: []models.Channel{models.ChannelInApp, models.ChannelEmail},
	},

	models.EventCreditsRejected: {
		Type:    models.EventCreditsRejected,
		Subject: "Paiement non validé - {{payment_reference}}",
		Body: `Bonjour,

Nous avons examiné votre demande d'achat de crédits mais nous ne pouvons malheureusement pas la valider.

💳 Référence : {{payment_reference}}
💰 Montant : {{price_amount}}
❌ Crédits : {{credits_amount}} crédits IA

{{#if_reason}}
📝 Raison :
{{rejection_reason}}
{{/if_reason}}

Si vous pensez qu'il s'agit d'une erreur, veuillez nous contacter via WhatsApp avec votre preuve de paiement.

L'équipe JobGuinée`,
		Channels: []models.Channel{models.ChannelInApp, models.ChannelEmail},
	},
}

// Template returns the built-in template for an event type.
func Template(t models.EventType) (EventTemplate, bool) {
	tmpl, ok := defaultTemplates[t]
	return tmpl, ok
}
