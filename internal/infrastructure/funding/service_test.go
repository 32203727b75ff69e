package funding

import (
	"context"
	"testing"

	"github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/require"
	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/domain/entities"
)

type stubCheckout struct {
	params *stripe.CheckoutSessionParams
	url    string
	err    error
}

func (s *stubCheckout) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.CheckoutSession{URL: s.url}, nil
}

func fundingProject() *entities.Project {
	return &entities.Project{ID: "proj_1", Name: "DeFi App"}
}

func TestService_FundDeposit(t *testing.T) {
	svc := NewService(config.StripeConfig{})

	resp, err := svc.Fund(context.Background(), fundingProject(), entities.FundInput{
		Chain:  entities.ChainEthereum,
		Method: entities.FundingMethodDeposit,
	}, "0xPaymaster")
	require.NoError(t, err)
	require.Equal(t, entities.FundingMethodDeposit, resp.Method)
	require.Equal(t, "0xPaymaster", resp.DepositAddress)
	require.Equal(t, "ethereum:0xPaymaster", resp.QRPayload)
	require.Empty(t, resp.CheckoutURL)
}

func TestService_FundCard(t *testing.T) {
	stub := &stubCheckout{url: "https://checkout.stripe.com/c/pay/cs_test"}
	svc := NewServiceWithCheckout(config.StripeConfig{
		SecretKey:  "sk_test",
		SuccessURL: "https://dashboard.nexuspay.dev/funding/success",
		CancelURL:  "https://dashboard.nexuspay.dev/funding/cancel",
	}, stub)

	resp, err := svc.Fund(context.Background(), fundingProject(), entities.FundInput{
		Chain:     entities.ChainSolana,
		Method:    entities.FundingMethodCard,
		AmountUSD: 49.99,
	}, "")
	require.NoError(t, err)
	require.Equal(t, stub.url, resp.CheckoutURL)
	require.Empty(t, resp.DepositAddress)

	require.NotNil(t, stub.params)
	require.Equal(t, int64(4999), *stub.params.LineItems[0].PriceData.UnitAmount)
	require.Equal(t, "usd", *stub.params.LineItems[0].PriceData.Currency)
	require.Equal(t, "https://dashboard.nexuspay.dev/funding/success", *stub.params.SuccessURL)
	require.Equal(t, "proj_1", stub.params.Metadata["projectId"])
	require.Equal(t, "solana", stub.params.Metadata["chain"])
}

func TestService_FundCardValidation(t *testing.T) {
	stub := &stubCheckout{url: "https://checkout.stripe.com/x"}
	svc := NewServiceWithCheckout(config.StripeConfig{SecretKey: "sk_test"}, stub)

	_, err := svc.Fund(context.Background(), fundingProject(), entities.FundInput{
		Chain:     entities.ChainEthereum,
		Method:    entities.FundingMethodCard,
		AmountUSD: 0.5,
	}, "")
	require.Error(t, err)

	_, err = svc.Fund(context.Background(), fundingProject(), entities.FundInput{
		Chain:     entities.ChainEthereum,
		Method:    entities.FundingMethodCard,
		AmountUSD: 100_000,
	}, "")
	require.Error(t, err)

	// Card funding needs a configured secret key.
	unconfigured := NewServiceWithCheckout(config.StripeConfig{}, stub)
	_, err = unconfigured.Fund(context.Background(), fundingProject(), entities.FundInput{
		Chain:     entities.ChainEthereum,
		Method:    entities.FundingMethodCard,
		AmountUSD: 10,
	}, "")
	require.Error(t, err)

	_, err = svc.Fund(context.Background(), fundingProject(), entities.FundInput{
		Chain:  entities.ChainEthereum,
		Method: "wire",
	}, "")
	require.Error(t, err)
}
