package validation

import (
	"fmt"
	"strings"

	"github.com/senyabanana/proposal-service/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate - ставка налога, если конфигурация ее не задала.
var DefaultTaxRate = decimal.RequireFromString("0.13")

// TaxTable хранит ставки налога по юрисдикциям.
type TaxTable struct {
	Default  decimal.Decimal
	ByRegion map[string]decimal.Decimal
}

// Rate возвращает ставку для региона, для неизвестного региона - ставку по умолчанию.
func (t TaxTable) Rate(region string) decimal.Decimal {
	if rate, ok := t.ByRegion[normalizeRegion(region)]; ok {
		return rate
	}
	return t.Default
}

// ParseTaxRates разбирает строку вида "ON:0.13,QC:0.14975".
func ParseTaxRates(s string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		region, value, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(region) == "" {
			return nil, fmt.Errorf("invalid tax rate entry %q, expected REGION:RATE", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid tax rate for %s: %w", region, err)
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("tax rate for %s must not be negative", region)
		}
		rates[normalizeRegion(region)] = rate
	}
	return rates, nil
}

func normalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

// Calculator выводит итоговую сумму предложения из подытога.
type Calculator struct {
	taxes TaxTable
}

// NewCalculator создает калькулятор с таблицей ставок.
func NewCalculator(taxes TaxTable) *Calculator {
	return &Calculator{taxes: taxes}
}

// Total вычисляет итог: при включенном налоге итог равен подытогу,
// иначе подытог умножается на (1 + ставка) и округляется до центов.
func (c *Calculator) Total(subtotal decimal.Decimal, taxIncluded bool, region string) decimal.Decimal {
	if taxIncluded {
		return subtotal
	}
	return subtotal.Mul(decimal.NewFromInt(1).Add(c.taxes.Rate(region))).Round(2)
}

// ValidateAmounts проверяет подытог и задаток относительно итога.
func ValidateAmounts(subtotal, total, deposit decimal.Decimal) []models.Violation {
	var violations []models.Violation
	if !subtotal.IsPositive() {
		violations = append(violations, models.Violation{Field: "subtotalAmount", Rule: RulePositive})
	} else if !wholeCents(subtotal) {
		violations = append(violations, models.Violation{Field: "subtotalAmount", Rule: RuleCents})
	}
	if !deposit.IsPositive() {
		violations = append(violations, models.Violation{Field: "depositAmount", Rule: RulePositive})
	} else if !wholeCents(deposit) {
		violations = append(violations, models.Violation{Field: "depositAmount", Rule: RuleCents})
	} else if deposit.GreaterThan(total) {
		violations = append(violations, models.Violation{Field: "depositAmount", Rule: RuleNotAboveTotal})
	}
	return violations
}

// wholeCents сообщает, что сумма хранится в NUMERIC(14, 2) без округления.
func wholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// Apply пересчитывает TotalAmount предложения, перезаписывая любое переданное значение,
// и проверяет суммы.
func (c *Calculator) Apply(p *models.Proposal, region string) []models.Violation {
	p.TotalAmount = c.Total(p.SubtotalAmount, p.TaxIncluded, region)
	return ValidateAmounts(p.SubtotalAmount, p.TotalAmount, p.DepositAmount)
}
