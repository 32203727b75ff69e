package funding

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
)

const (
	// MinCardAmountUSD is the smallest card top-up Stripe will process for us
	MinCardAmountUSD = 1.0
	// MaxCardAmountUSD keeps fat-fingered amounts out of checkout
	MaxCardAmountUSD = 50_000.0
)

type checkoutCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Service builds paymaster funding flows: direct on-chain deposits and
// card checkout via Stripe.
type Service struct {
	cfg      config.StripeConfig
	sessions checkoutCreator
}

// NewService creates a funding service from config
func NewService(cfg config.StripeConfig) *Service {
	return &Service{
		cfg: cfg,
		sessions: &session.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: cfg.SecretKey,
		},
	}
}

// NewServiceWithCheckout creates a funding service with a custom checkout client
func NewServiceWithCheckout(cfg config.StripeConfig, sessions checkoutCreator) *Service {
	return &Service{cfg: cfg, sessions: sessions}
}

// Fund resolves a funding request into either a deposit address + QR payload
// or a hosted checkout URL. depositAddress is the paymaster address on the
// requested chain.
func (s *Service) Fund(ctx context.Context, project *entities.Project, input entities.FundInput, depositAddress string) (*entities.FundResponse, error) {
	switch input.Method {
	case entities.FundingMethodDeposit:
		return &entities.FundResponse{
			Method:         entities.FundingMethodDeposit,
			Chain:          input.Chain,
			DepositAddress: depositAddress,
			QRPayload:      fmt.Sprintf("%s:%s", input.Chain, depositAddress),
		}, nil
	case entities.FundingMethodCard:
		return s.cardCheckout(ctx, project, input)
	default:
		return nil, domainerrors.BadRequest("funding method must be deposit or card").WithField("method")
	}
}

func (s *Service) cardCheckout(ctx context.Context, project *entities.Project, input entities.FundInput) (*entities.FundResponse, error) {
	if s.cfg.SecretKey == "" {
		return nil, domainerrors.BadRequest("card funding is not configured").WithField("method")
	}
	if input.AmountUSD < MinCardAmountUSD || input.AmountUSD > MaxCardAmountUSD {
		return nil, domainerrors.BadRequest(
			fmt.Sprintf("amount must be between $%.0f and $%.0f", MinCardAmountUSD, MaxCardAmountUSD)).
			WithField("amountUsd")
	}

	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(s.cfg.SuccessURL),
		CancelURL:          stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String("usd"),
				UnitAmount: stripe.Int64(int64(math.Round(input.AmountUSD * 100))),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("Paymaster top-up (%s) for %s", input.Chain, project.Name)),
				},
			},
		}},
		Metadata: map[string]string{
			"projectId": project.ID,
			"chain":     string(input.Chain),
		},
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		return nil, domainerrors.Upstream("checkout session creation failed", err)
	}
	return &entities.FundResponse{
		Method:      entities.FundingMethodCard,
		Chain:       input.Chain,
		CheckoutURL: sess.URL,
	}, nil
}
