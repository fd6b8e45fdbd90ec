package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.BrazilianPortuguese

	message.SetString(lang, "notification.generic.title", "Notificação")
	message.SetString(lang, "notification.generic.body", "Você tem uma nova notificação.")
	message.SetString(lang, "notification.party.unnamed", "um encontro")
	message.SetString(lang, "notification.participation_requested.title", "Novo pedido de participação")
	message.SetString(lang, "notification.participation_requested.body", "Alguém pediu para participar de %s.")
	message.SetString(lang, "notification.participation_approved.title", "Pedido aprovado")
	message.SetString(lang, "notification.participation_approved.body", "Você está dentro! Seu pedido para participar de %s foi aprovado.")
	message.SetString(lang, "notification.participation_rejected.title", "Pedido recusado")
	message.SetString(lang, "notification.participation_rejected.body", "Seu pedido para participar de %s foi recusado.")
	message.SetString(lang, "notification.participation_cancelled.title", "Participante saiu")
	message.SetString(lang, "notification.participation_cancelled.body", "Um participante cancelou a vaga em %s.")
	message.SetString(lang, "notification.party_updated.title", "Encontro atualizado")
	message.SetString(lang, "notification.party_updated.body", "O organizador atualizou %s. Confira os detalhes.")
}
