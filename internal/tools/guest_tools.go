package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/cenourinhas/concierge/internal/guests"
)

// GuestBook records attendance answers.
type GuestBook interface {
	ConfirmPresence(ctx context.Context, phone string, confirm bool) (*guests.Confirmation, error)
}

// NotOnGuestList is the failure message when no guest matches a phone.
const NotOnGuestList = "Não encontrei seu número na lista de convidados."

// ConfirmPresenceData is the payload of a successful confirm_presence.
type ConfirmPresenceData struct {
	GuestName string   `json:"guest_name"`
	Confirmed bool     `json:"confirmed"`
	Names     []string `json:"names"`
}

// RegisterGuestTools adds confirm_presence to the registry.
func (r *Registry) RegisterGuestTools(book GuestBook) error {
	return r.Register(&Tool{
		Name: "confirm_presence",
		Description: "Confirma ou rejeita a presença do convidado cujo telefone corresponde ao valor fornecido. " +
			"Use quando o usuário disser que deseja confirmar presença, negar presença ou alterar a resposta anterior. " +
			"O telefone deve estar no formato completo com código do país e DDD, por exemplo \"+5511999998888\". " +
			"Se o usuário informar o DDD sem o código do país, adicione +55.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"phone": map[string]any{
					"type":        "string",
					"description": "Número de telefone completo, com código do país e DDD",
				},
				"confirm": map[string]any{
					"type":        "boolean",
					"description": "true para confirmar presença, false para rejeitar",
				},
			},
			"required": []string{"phone", "confirm"},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			phone, _ := args["phone"].(string)
			confirm, _ := args["confirm"].(bool)
			return confirmPresence(ctx, book, phone, confirm)
		},
	})
}

func confirmPresence(ctx context.Context, book GuestBook, phone string, confirm bool) (Result, error) {
	conf, err := book.ConfirmPresence(ctx, phone, confirm)
	if errors.Is(err, guests.ErrNotFound) {
		return Result{Success: false, Message: NotOnGuestList}, nil
	}
	if err != nil {
		return Result{}, err
	}

	list := "\n- " + strings.Join(conf.Names, "\n- ")
	msg := "Presença confirmada para:" + list
	if !confirm {
		msg = "Registramos que não comparecerão:" + list
	}

	return Result{
		Success: true,
		Message: msg,
		Data: ConfirmPresenceData{
			GuestName: conf.Guest.Name,
			Confirmed: confirm,
			Names:     conf.Names,
		},
	}, nil
}
