package services

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AuditLogger writes one structured record per balance-affecting operation
type AuditLogger struct {
	logger *zap.Logger
}

func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("audit")}
}

func (a *AuditLogger) LogTransfer(txID, payerID, payeeID uuid.UUID, amount decimal.Decimal, status string) {
	a.logger.Info("TRANSFER",
		zap.Stringer("transaction_id", txID),
		zap.Stringer("payer_id", payerID),
		zap.Stringer("payee_id", payeeID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("status", status))
}

func (a *AuditLogger) LogReversal(txID, payerID, payeeID uuid.UUID, amount decimal.Decimal) {
	a.logger.Info("REVERSAL",
		zap.Stringer("transaction_id", txID),
		zap.Stringer("payer_id", payerID),
		zap.Stringer("payee_id", payeeID),
		zap.String("amount", amount.StringFixed(2)))
}

func (a *AuditLogger) LogAdjustment(entityID uuid.UUID, delta, balance decimal.Decimal) {
	a.logger.Info("ADJUSTMENT",
		zap.Stringer("entity_id", entityID),
		zap.String("delta", delta.StringFixed(2)),
		zap.String("balance", balance.StringFixed(2)))
}

func (a *AuditLogger) LogError(subjectID uuid.UUID, operation string, err error) {
	a.logger.Error("ERROR",
		zap.Stringer("subject_id", subjectID),
		zap.String("operation", operation),
		zap.Error(err))
}
