package utils

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func NumericToDecimal(value pgtype.Numeric) decimal.Decimal {
	if !value.Valid {
		return decimal.Zero
	}
	text, err := value.MarshalJSON()
	if err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(text))
	if err != nil {
		return decimal.Zero
	}
	return d
}
