package repositories

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/infrastructure/models"
)

// PaymasterRepository implements paymaster wallet operations
type PaymasterRepository struct {
	db *gorm.DB
}

// NewPaymasterRepository creates a new paymaster repository
func NewPaymasterRepository(db *gorm.DB) *PaymasterRepository {
	return &PaymasterRepository{db: db}
}

// Create creates a paymaster record
func (r *PaymasterRepository) Create(ctx context.Context, pm *entities.ProjectPaymaster) error {
	m := &models.ProjectPaymaster{
		ID:                  pm.ID,
		ProjectID:           pm.ProjectID,
		Chain:               string(pm.Chain),
		Address:             pm.Address,
		EncryptedPrivateKey: pm.EncryptedPrivateKey,
		Frozen:              pm.Frozen,
		CreatedAt:           pm.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// Get gets the paymaster for a (project, chain) pair
func (r *PaymasterRepository) Get(ctx context.Context, projectID string, chain entities.Chain) (*entities.ProjectPaymaster, error) {
	var m models.ProjectPaymaster
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND chain = ?", projectID, string(chain)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return paymasterToEntity(&m), nil
}

// ListByProject lists a project's paymasters
func (r *PaymasterRepository) ListByProject(ctx context.Context, projectID string) ([]*entities.ProjectPaymaster, error) {
	var ms []models.ProjectPaymaster
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("chain ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	pms := make([]*entities.ProjectPaymaster, 0, len(ms))
	for i := range ms {
		pms = append(pms, paymasterToEntity(&ms[i]))
	}
	return pms, nil
}

// ListAll lists every paymaster, used by the balance refresher
func (r *PaymasterRepository) ListAll(ctx context.Context) ([]*entities.ProjectPaymaster, error) {
	var ms []models.ProjectPaymaster
	if err := r.db.WithContext(ctx).Find(&ms).Error; err != nil {
		return nil, err
	}
	pms := make([]*entities.ProjectPaymaster, 0, len(ms))
	for i := range ms {
		pms = append(pms, paymasterToEntity(&ms[i]))
	}
	return pms, nil
}

// SetFrozen freezes or unfreezes all of a project's paymasters
func (r *PaymasterRepository) SetFrozen(ctx context.Context, projectID string, frozen bool) error {
	return r.db.WithContext(ctx).Model(&models.ProjectPaymaster{}).
		Where("project_id = ?", projectID).
		Update("frozen", frozen).Error
}

func paymasterToEntity(m *models.ProjectPaymaster) *entities.ProjectPaymaster {
	return &entities.ProjectPaymaster{
		ID:                  m.ID,
		ProjectID:           m.ProjectID,
		Chain:               entities.Chain(m.Chain),
		Address:             m.Address,
		EncryptedPrivateKey: m.EncryptedPrivateKey,
		Frozen:              m.Frozen,
		CreatedAt:           m.CreatedAt,
	}
}

// PaymasterBalanceRepository implements cached-balance operations
type PaymasterBalanceRepository struct {
	db *gorm.DB
}

// NewPaymasterBalanceRepository creates a new balance repository
func NewPaymasterBalanceRepository(db *gorm.DB) *PaymasterBalanceRepository {
	return &PaymasterBalanceRepository{db: db}
}

// Upsert writes a balance snapshot, replacing any prior row for the pair
func (r *PaymasterBalanceRepository) Upsert(ctx context.Context, balance *entities.PaymasterBalance) error {
	m := &models.PaymasterBalance{
		ProjectID:     balance.ProjectID,
		Chain:         string(balance.Chain),
		Address:       balance.Address,
		BalanceNative: balance.BalanceNative,
		BalanceWei:    balance.BalanceWei,
		BalanceUSD:    balance.BalanceUSD,
		TokenPriceUSD: balance.TokenPriceUSD,
		LastUpdated:   balance.LastUpdated,
		LastTxHash:    balance.LastTxHash.Ptr(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_id"}, {Name: "chain"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"address", "balance_native", "balance_wei", "balance_usd",
			"token_price_usd", "last_updated", "last_tx_hash",
		}),
	}).Create(m).Error
}

// Get gets the cached balance for a (project, chain) pair
func (r *PaymasterBalanceRepository) Get(ctx context.Context, projectID string, chain entities.Chain) (*entities.PaymasterBalance, error) {
	var m models.PaymasterBalance
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND chain = ?", projectID, string(chain)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return balanceToEntity(&m), nil
}

// ListByProject lists cached balances for a project
func (r *PaymasterBalanceRepository) ListByProject(ctx context.Context, projectID string) ([]*entities.PaymasterBalance, error) {
	var ms []models.PaymasterBalance
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("chain ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	balances := make([]*entities.PaymasterBalance, 0, len(ms))
	for i := range ms {
		balances = append(balances, balanceToEntity(&ms[i]))
	}
	return balances, nil
}

func balanceToEntity(m *models.PaymasterBalance) *entities.PaymasterBalance {
	return &entities.PaymasterBalance{
		ProjectID:     m.ProjectID,
		Chain:         entities.Chain(m.Chain),
		Address:       m.Address,
		BalanceNative: m.BalanceNative,
		BalanceWei:    m.BalanceWei,
		BalanceUSD:    m.BalanceUSD,
		TokenPriceUSD: m.TokenPriceUSD,
		LastUpdated:   m.LastUpdated,
		LastTxHash:    null.StringFromPtr(m.LastTxHash),
	}
}

// PaymasterPaymentRepository implements the sponsored-payment ledger
type PaymasterPaymentRepository struct {
	db *gorm.DB
}

// NewPaymasterPaymentRepository creates a new payment repository
func NewPaymasterPaymentRepository(db *gorm.DB) *PaymasterPaymentRepository {
	return &PaymasterPaymentRepository{db: db}
}

// Create appends a ledger row
func (r *PaymasterPaymentRepository) Create(ctx context.Context, payment *entities.PaymasterPayment) error {
	m := paymentToModel(payment)
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID gets a payment by ID
func (r *PaymasterPaymentRepository) GetByID(ctx context.Context, id string) (*entities.PaymasterPayment, error) {
	var m models.PaymasterPayment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return paymentToEntity(&m), nil
}

// GetByTxHash gets a payment by transaction hash
func (r *PaymasterPaymentRepository) GetByTxHash(ctx context.Context, txHash string) (*entities.PaymasterPayment, error) {
	var m models.PaymasterPayment
	if err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return paymentToEntity(&m), nil
}

// PatchReceipt fills receipt fields and transitions status. The WHERE clause
// only matches pending rows, so a terminal row is never rewritten.
func (r *PaymasterPaymentRepository) PatchReceipt(ctx context.Context, id string, status entities.PaymentStatus, blockNumber int64, gasUsed int64, gasPrice string, amountWei string, amount float64, usdValue float64) error {
	updates := map[string]interface{}{
		"status":       string(status),
		"block_number": blockNumber,
		"gas_used":     gasUsed,
		"gas_price":    gasPrice,
	}
	if amountWei != "" {
		updates["amount_wei"] = amountWei
		updates["amount"] = amount
		updates["usd_value"] = usdValue
	}

	result := r.db.WithContext(ctx).Model(&models.PaymasterPayment{}).
		Where("id = ? AND status = ?", id, string(entities.PaymentStatusPending)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.PaymasterPayment{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domainerrors.ErrNotFound
		}
		return domainerrors.ErrAlreadyExists
	}
	return nil
}

// ListByProject pages ledger rows for a project, newest first. An empty chain
// matches all chains.
func (r *PaymasterPaymentRepository) ListByProject(ctx context.Context, projectID string, chain entities.Chain, limit, offset int) ([]*entities.PaymasterPayment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.PaymasterPayment{}).Where("project_id = ?", projectID)
	if chain != "" {
		q = q.Where("chain = ?", string(chain))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.PaymasterPayment
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&ms).Error
	if err != nil {
		return nil, 0, err
	}

	payments := make([]*entities.PaymasterPayment, 0, len(ms))
	for i := range ms {
		payments = append(payments, paymentToEntity(&ms[i]))
	}
	return payments, total, nil
}

// ListPending returns pending rows created before olderThan, oldest first
func (r *PaymasterPaymentRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*entities.PaymasterPayment, error) {
	var ms []models.PaymasterPayment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(entities.PaymentStatusPending), olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	payments := make([]*entities.PaymasterPayment, 0, len(ms))
	for i := range ms {
		payments = append(payments, paymentToEntity(&ms[i]))
	}
	return payments, nil
}

// TotalConfirmedByChain sums confirmed sponsorship per chain in a window.
// Wei totals are raw integers stored as strings, so the sum runs in Go with
// big.Int instead of SQL.
func (r *PaymasterPaymentRepository) TotalConfirmedByChain(ctx context.Context, projectID string, from, to time.Time) ([]*entities.CostReport, error) {
	var ms []models.PaymasterPayment
	err := r.db.WithContext(ctx).
		Select("chain", "amount_wei", "usd_value").
		Where("project_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			projectID, string(entities.PaymentStatusConfirmed), from, to).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	type acc struct {
		txs int64
		wei *big.Int
		usd float64
	}
	byChain := map[string]*acc{}
	order := []string{}
	for i := range ms {
		a, ok := byChain[ms[i].Chain]
		if !ok {
			a = &acc{wei: new(big.Int)}
			byChain[ms[i].Chain] = a
			order = append(order, ms[i].Chain)
		}
		a.txs++
		a.usd += ms[i].USDValue
		if w, ok := new(big.Int).SetString(ms[i].AmountWei, 10); ok {
			a.wei.Add(a.wei, w)
		}
	}
	sort.Strings(order)

	reports := make([]*entities.CostReport, 0, len(order))
	for _, chain := range order {
		a := byChain[chain]
		reports = append(reports, &entities.CostReport{
			Chain:        entities.Chain(chain),
			ConfirmedTxs: a.txs,
			TotalWei:     a.wei.String(),
			TotalUSD:     a.usd,
		})
	}
	return reports, nil
}

func paymentToModel(p *entities.PaymasterPayment) *models.PaymasterPayment {
	return &models.PaymasterPayment{
		ID:                p.ID,
		ProjectID:         p.ProjectID,
		PaymasterAddress:  p.PaymasterAddress,
		Chain:             string(p.Chain),
		Amount:            p.Amount,
		AmountWei:         p.AmountWei,
		GasForAddress:     p.GasForAddress,
		TxHash:            p.TxHash,
		BlockNumber:       p.BlockNumber.Ptr(),
		GasPrice:          p.GasPrice.Ptr(),
		GasUsed:           p.GasUsed.Ptr(),
		USDValue:          p.USDValue,
		OperationType:     string(p.OperationType),
		UserOperationHash: p.UserOperationHash.Ptr(),
		Status:            string(p.Status),
		CreatedAt:         p.CreatedAt,
	}
}

func paymentToEntity(m *models.PaymasterPayment) *entities.PaymasterPayment {
	return &entities.PaymasterPayment{
		ID:                m.ID,
		ProjectID:         m.ProjectID,
		PaymasterAddress:  m.PaymasterAddress,
		Chain:             entities.Chain(m.Chain),
		Amount:            m.Amount,
		AmountWei:         m.AmountWei,
		GasForAddress:     m.GasForAddress,
		TxHash:            m.TxHash,
		BlockNumber:       null.Int64FromPtr(m.BlockNumber),
		GasPrice:          null.StringFromPtr(m.GasPrice),
		GasUsed:           null.Int64FromPtr(m.GasUsed),
		USDValue:          m.USDValue,
		OperationType:     entities.PaymentOperationType(m.OperationType),
		UserOperationHash: null.StringFromPtr(m.UserOperationHash),
		Status:            entities.PaymentStatus(m.Status),
		CreatedAt:         m.CreatedAt,
	}
}
