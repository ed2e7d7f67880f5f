package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/sarvodaya-edu/fees-api/internal/models"
	appErrors "github.com/sarvodaya-edu/fees-api/pkg/errors"
	"github.com/sarvodaya-edu/fees-api/pkg/export"
)

type paymentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
}

// SchoolInfo is the letterhead printed on every receipt.
type SchoolInfo struct {
	Name     string
	Subtitle string
	Location string
}

// ReceiptService builds printable receipts from ledger entries.
type ReceiptService struct {
	payments paymentFinder
	balances balanceProvider
	school   SchoolInfo
	renderer *export.ReceiptPDF
	logger   *zap.Logger
}

// NewReceiptService constructs the receipt service.
func NewReceiptService(payments paymentFinder, balances balanceProvider, school SchoolInfo, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptService{
		payments: payments,
		balances: balances,
		school:   school,
		renderer: export.NewReceiptPDF(),
		logger:   logger,
	}
}

// Layouts lists the supported physical receipt formats.
func (s *ReceiptService) Layouts() []string {
	return export.LayoutNames()
}

func formatAmount(amount int64) string {
	return "Rs. " + strconv.FormatInt(amount, 10)
}

// BuildReceipt assembles the logical receipt for one payment. Only nonzero
// fee components appear as lines; the balance block reflects what remains
// outstanding after this payment.
func (s *ReceiptService) BuildReceipt(payment models.Payment, balance *models.FeeBalance) export.Receipt {
	receipt := export.Receipt{
		SchoolName:     s.school.Name,
		SchoolSubtitle: s.school.Subtitle,
		SchoolLocation: s.school.Location,
		ReceiptNo:      payment.ReceiptNo(),
		Date:           payment.PaymentDate.Format("02/01/2006"),
		StudentName:    payment.StudentName,
		AdmissionNo:    payment.AdmissionNo,
		ClassLabel:     classLabel(payment.Class, payment.Division),
		Total:          formatAmount(payment.TotalAmount),
	}

	if payment.DevelopmentFee > 0 {
		receipt.Lines = append(receipt.Lines, export.ReceiptLine{Label: "Development Fee", Amount: formatAmount(payment.DevelopmentFee)})
	}
	if payment.BusFee > 0 {
		receipt.Lines = append(receipt.Lines, export.ReceiptLine{Label: "Bus Fee", Amount: formatAmount(payment.BusFee)})
	}
	if payment.SpecialFee > 0 {
		label := payment.SpecialFeeType
		if label == "" {
			label = "Special Fee"
		}
		receipt.Lines = append(receipt.Lines, export.ReceiptLine{Label: label, Amount: formatAmount(payment.SpecialFee)})
	}

	// The balance block only prints while something is still owed; settled
	// students get a receipt without it, and zero categories are skipped.
	if balance != nil {
		if balance.DevelopmentBalance > 0 {
			receipt.BalanceLines = append(receipt.BalanceLines, export.ReceiptLine{Label: "Development", Amount: formatAmount(balance.DevelopmentBalance)})
		}
		if balance.BusBalance > 0 {
			receipt.BalanceLines = append(receipt.BalanceLines, export.ReceiptLine{Label: "Bus", Amount: formatAmount(balance.BusBalance)})
		}
	}

	return receipt
}

// Render produces the PDF for one payment in the requested layout.
func (s *ReceiptService) Render(ctx context.Context, actor models.UserInfo, paymentID, layoutName string) ([]byte, error) {
	layout, err := export.LayoutFor(layoutName)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown receipt format %q", layoutName))
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	if !scopeAllows(actor, payment.Class, payment.Division) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment outside assigned class")
	}

	// Balance lookup is best-effort: a deleted student still gets a receipt,
	// just without the balance block.
	var balance *models.FeeBalance
	if b, err := s.balances.BalanceFor(ctx, payment.StudentID); err == nil {
		balance = b
	}

	pdf, err := s.renderer.Render(layout, []export.Receipt{s.BuildReceipt(*payment, balance)})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return pdf, nil
}

// RenderBulk produces one PDF with a receipt per matching payment, tiled
// according to the layout. Used for end-of-day batch printing.
func (s *ReceiptService) RenderBulk(ctx context.Context, actor models.UserInfo, filter models.PaymentFilter, layoutName string) ([]byte, error) {
	layout, err := export.LayoutFor(layoutName)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown receipt format %q", layoutName))
	}

	filter = applyScope(actor, filter)
	filter.Page = 1
	filter.PageSize = 500

	payments, _, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	if len(payments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no payments match the filter")
	}

	receipts := make([]export.Receipt, 0, len(payments))
	for _, payment := range payments {
		var balance *models.FeeBalance
		if b, err := s.balances.BalanceFor(ctx, payment.StudentID); err == nil {
			balance = b
		}
		receipts = append(receipts, s.BuildReceipt(payment, balance))
	}

	s.logger.Info("bulk receipt render",
		zap.Int("receipts", len(receipts)),
		zap.String("layout", layout.Name))

	pdf, err := s.renderer.Render(layout, receipts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipts")
	}
	return pdf, nil
}
