package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

const paymentColumns = `id, transaction_id, idempotency_key, type, status, user_id,
	from_account_id, from_iban, to_account_id, to_account_number, to_iban,
	beneficiary_name, beneficiary_swift_bic, phone_number, operator_code,
	merchant_id, invoice_reference, amount, currency, fees,
	debit_transaction_id, credit_transaction_id, external_transaction_id,
	iso20022_message_reference, compensation_transaction_id, reference, uetr,
	fraud_check_passed, sca_required, sca_verified, compensation_pending, failure_reason,
	description, ip_address, user_agent, correlation_id,
	estimated_completion_date, completed_at, created_at, updated_at`

const uniqueViolation = "23505"

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37, $38, $39, $40
		)`,
		p.ID, p.TransactionID, p.IdempotencyKey, p.Type, p.Status, p.UserID,
		p.FromAccountID, p.FromIBAN, nullableUUID(p.ToAccountID), p.ToAccountNumber, p.ToIBAN,
		p.BeneficiaryName, p.BeneficiarySwiftBIC, p.PhoneNumber, p.OperatorCode,
		p.MerchantID, p.InvoiceReference, p.Amount, p.Currency, p.Fees,
		p.DebitTransactionID, p.CreditTransactionID, p.ExternalTransactionID,
		p.ISO20022MessageReference, p.CompensationTransactionID, p.Reference, p.UETR,
		p.FraudCheckPassed, p.ScaRequired, p.ScaVerified, p.CompensationPending, p.FailureReason,
		p.Description, p.IPAddress, p.UserAgent, p.CorrelationID,
		p.EstimatedCompletionDate, p.CompletedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "payments_idempotency_key_key") {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateIdempotencyKey)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Update writes every mutable column, guarded on the status the caller last
// observed. A concurrent writer that already moved the row yields ErrStaleState.
func (r *PaymentRepository) Update(ctx context.Context, tx *sql.Tx, p *domain.Payment, expected domain.PaymentStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET
			status = $1, from_iban = $2, operator_code = $3, fees = $4,
			debit_transaction_id = $5, credit_transaction_id = $6, external_transaction_id = $7,
			iso20022_message_reference = $8, compensation_transaction_id = $9,
			reference = $10, uetr = $11,
			fraud_check_passed = $12, sca_required = $13, sca_verified = $14,
			compensation_pending = $15, failure_reason = $16,
			estimated_completion_date = $17, completed_at = $18, updated_at = $19
		WHERE id = $20 AND status = $21`,
		p.Status, p.FromIBAN, p.OperatorCode, p.Fees,
		p.DebitTransactionID, p.CreditTransactionID, p.ExternalTransactionID,
		p.ISO20022MessageReference, p.CompensationTransactionID,
		p.Reference, p.UETR,
		p.FraudCheckPassed, p.ScaRequired, p.ScaVerified,
		p.CompensationPending, p.FailureReason,
		p.EstimatedCompletionDate, p.CompletedAt, p.UpdatedAt,
		p.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrStaleState)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIdempotencyKey: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByUser: scan: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: rows: %w", err)
	}
	return payments, nil
}

var unsuccessfulStatuses = pq.Array([]string{
	string(domain.PaymentStatusRejected),
	string(domain.PaymentStatusCancelled),
	string(domain.PaymentStatusFailed),
	string(domain.PaymentStatusCompensated),
})

// SumAmountSince totals the amounts of an account's payments created at or
// after since, ignoring payments that never moved money.
func (r *PaymentRepository) SumAmountSince(ctx context.Context, accountID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE from_account_id = $1 AND created_at >= $2 AND NOT (status = ANY($3))`,
		accountID, since, unsuccessfulStatuses,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumAmountSince: %w", err)
	}
	return total, nil
}

// CountSince counts an account's payments created at or after since,
// excluding the payment being screened.
func (r *PaymentRepository) CountSince(ctx context.Context, accountID uuid.UUID, since time.Time, exclude uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments
		WHERE from_account_id = $1 AND created_at >= $2 AND id <> $3`,
		accountID, since, exclude,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountSince: %w", err)
	}
	return n, nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	var toAccountID uuid.NullUUID

	err := s.Scan(
		&p.ID, &p.TransactionID, &p.IdempotencyKey, &p.Type, &p.Status, &p.UserID,
		&p.FromAccountID, &p.FromIBAN, &toAccountID, &p.ToAccountNumber, &p.ToIBAN,
		&p.BeneficiaryName, &p.BeneficiarySwiftBIC, &p.PhoneNumber, &p.OperatorCode,
		&p.MerchantID, &p.InvoiceReference, &p.Amount, &p.Currency, &p.Fees,
		&p.DebitTransactionID, &p.CreditTransactionID, &p.ExternalTransactionID,
		&p.ISO20022MessageReference, &p.CompensationTransactionID, &p.Reference, &p.UETR,
		&p.FraudCheckPassed, &p.ScaRequired, &p.ScaVerified, &p.CompensationPending, &p.FailureReason,
		&p.Description, &p.IPAddress, &p.UserAgent, &p.CorrelationID,
		&p.EstimatedCompletionDate, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if toAccountID.Valid {
		p.ToAccountID = &toAccountID.UUID
	}
	return &p, nil
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}
