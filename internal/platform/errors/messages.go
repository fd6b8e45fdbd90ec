package errors

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	en := language.AmericanEnglish
	message.SetString(en, messageKey(CodeUnknown), "Something went wrong. Please try again.")
	message.SetString(en, messageKey(CodeInvalidArgument), "The request is invalid.")
	message.SetString(en, messageKey(CodeUnauthenticated), "Sign in to continue.")
	message.SetString(en, messageKey(CodeNotFound), "The requested resource was not found.")
	message.SetString(en, messageKey(CodeForbidden), "You are not allowed to do that.")
	message.SetString(en, messageKey(CodeSelfJoinForbidden), "Organizers cannot request to join their own party.")
	message.SetString(en, messageKey(CodeAlreadyRequested), "You already have an active request for this party.")
	message.SetString(en, messageKey(CodeInvalidTransition), "This request can no longer be changed that way.")
	message.SetString(en, messageKey(CodeCapacityExceeded), "This party is full.")
	message.SetString(en, messageKey(CodeInvalidNotification), "The notification is invalid.")

	pt := language.BrazilianPortuguese
	message.SetString(pt, messageKey(CodeUnknown), "Algo deu errado. Tente novamente.")
	message.SetString(pt, messageKey(CodeInvalidArgument), "A requisição é inválida.")
	message.SetString(pt, messageKey(CodeUnauthenticated), "Entre para continuar.")
	message.SetString(pt, messageKey(CodeNotFound), "O recurso solicitado não foi encontrado.")
	message.SetString(pt, messageKey(CodeForbidden), "Você não tem permissão para isso.")
	message.SetString(pt, messageKey(CodeSelfJoinForbidden), "Organizadores não podem pedir para entrar na própria festa.")
	message.SetString(pt, messageKey(CodeAlreadyRequested), "Você já tem um pedido ativo para esta festa.")
	message.SetString(pt, messageKey(CodeInvalidTransition), "Este pedido não pode mais ser alterado dessa forma.")
	message.SetString(pt, messageKey(CodeCapacityExceeded), "Esta festa está lotada.")
	message.SetString(pt, messageKey(CodeInvalidNotification), "A notificação é inválida.")
}
