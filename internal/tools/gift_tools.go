package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cenourinhas/concierge/internal/gifts"
)

// GiftCatalog lists gifts and records payment attempts.
type GiftCatalog interface {
	List(ctx context.Context) ([]gifts.Gift, error)
	Get(ctx context.Context, id int64) (*gifts.Gift, error)
	CreatePending(ctx context.Context, g *gifts.Gift) (*gifts.Payment, error)
	SetCheckoutURL(ctx context.Context, paymentID, url string) error
}

// CheckoutLinker creates a hosted checkout link for a payment.
type CheckoutLinker interface {
	CheckoutLink(ctx context.Context, paymentID, title string, amountCents int64) (string, error)
}

// GiftOption is one catalog entry as presented to the model.
type GiftOption struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       *string `json:"price"`
}

// GiftList is the payload of get_gift_options.
type GiftList struct {
	Gifts []GiftOption `json:"gifts"`
}

// PlainText lists the gifts one per line.
func (l GiftList) PlainText() string {
	if len(l.Gifts) == 0 {
		return "No momento não há presentes disponíveis na lista."
	}
	var b strings.Builder
	b.WriteString("Opções de presentes:")
	for _, g := range l.Gifts {
		fmt.Fprintf(&b, "\n%d. %s", g.ID, g.Name)
		if g.Price != nil {
			b.WriteString(" - " + brl(*g.Price))
		}
	}
	return b.String()
}

// GiftPayment is the payload of a successful start_gift_payment.
type GiftPayment struct {
	PaymentID  string `json:"payment_id"`
	ItemName   string `json:"item_name"`
	Amount     string `json:"amount"`
	PaymentURL string `json:"payment_url"`
}

// PlainText renders the payment link for direct delivery.
func (p GiftPayment) PlainText() string {
	return fmt.Sprintf("Presente: %s\nValor: %s\nLink para pagamento: %s", p.ItemName, brl(p.Amount), p.PaymentURL)
}

// brl renders "150.00" as "R$ 150,00".
func brl(amount string) string {
	return "R$ " + strings.Replace(amount, ".", ",", 1)
}

// RegisterGiftTools adds get_gift_options and start_gift_payment.
func (r *Registry) RegisterGiftTools(catalog GiftCatalog, linker CheckoutLinker) error {
	err := r.Register(&Tool{
		Name: "get_gift_options",
		Description: "Retorna a lista completa de presentes disponíveis. " +
			"Use quando o usuário pedir opções de presentes, a lista de presentes ou perguntar o que pode dar de presente.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, _ map[string]any) (Result, error) {
			return giftOptions(ctx, catalog)
		},
	})
	if err != nil {
		return err
	}

	return r.Register(&Tool{
		Name: "start_gift_payment",
		Description: "Cria um pagamento associado a um presente específico e retorna o link de pagamento. " +
			"Use quando o usuário escolher um presente da lista com ID conhecido, disser \"quero dar o presente X\" " +
			"ou pedir o link de pagamento de um item específico.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"gift_id": map[string]any{
					"type":        "integer",
					"description": "ID do presente, conforme retornado por get_gift_options",
				},
			},
			"required": []string{"gift_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			id, err := intArg(args, "gift_id")
			if err != nil {
				return Result{}, err
			}
			return startGiftPayment(ctx, catalog, linker, r.logger, id)
		},
	})
}

func giftOptions(ctx context.Context, catalog GiftCatalog) (Result, error) {
	list, err := catalog.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list gifts: %w", err)
	}

	out := GiftList{Gifts: make([]GiftOption, 0, len(list))}
	for _, g := range list {
		opt := GiftOption{ID: g.ID, Name: g.Name, Description: g.Description}
		if g.HasPrice {
			price := g.Price()
			opt.Price = &price
		}
		out.Gifts = append(out.Gifts, opt)
	}
	return Result{Success: true, Data: out}, nil
}

func startGiftPayment(ctx context.Context, catalog GiftCatalog, linker CheckoutLinker, logger *slog.Logger, giftID int64) (Result, error) {
	gift, err := catalog.Get(ctx, giftID)
	if errors.Is(err, gifts.ErrNotFound) {
		return Result{Success: false, Message: "Presente não encontrado."}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("get gift %d: %w", giftID, err)
	}
	if !gift.HasPrice || gift.PriceCents <= 0 {
		return Result{Success: false, Message: fmt.Sprintf("O presente '%s' não tem valor definido para pagamento online.", gift.Name)}, nil
	}

	payment, err := catalog.CreatePending(ctx, gift)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("Erro ao criar link de pagamento: %v", err)}, nil
	}

	url, err := linker.CheckoutLink(ctx, payment.ID, gift.Name, payment.AmountCents)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("Erro ao criar link de pagamento: %v", err)}, nil
	}
	if err := catalog.SetCheckoutURL(ctx, payment.ID, url); err != nil {
		// The guest can still pay; only the QR lookup loses the link.
		logger.Warn("failed to store checkout url", "payment_id", payment.ID, "error", err)
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("Aqui está o link seguro para enviar o presente '%s'.", gift.Name),
		Data: GiftPayment{
			PaymentID:  payment.ID,
			ItemName:   gift.Name,
			Amount:     gifts.FormatCents(payment.AmountCents),
			PaymentURL: url,
		},
	}, nil
}

// intArg reads an integer argument. JSON numbers decode as float64 and
// the schema has already rejected fractional values.
func intArg(args map[string]any, name string) (int64, error) {
	switch v := args[name].(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be an integer", name)
	}
}
