// Package repository содержит реализации хранилища данных: PostgreSQL, MongoDB и в памяти.
package repository

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound возвращается, если запись не найдена.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate возвращается при нарушении ограничения уникальности.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleState возвращается, если условное обновление не применилось: запись уже в другом состоянии.
	ErrStaleState = errors.New("record state changed")
)

// ThemeFilter задаёт условия выборки тем. Результат всегда упорядочен по order, затем по имени.
type ThemeFilter struct {
	OnlyActive  bool
	OnlyInStore bool
	OnlyFree    bool
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
