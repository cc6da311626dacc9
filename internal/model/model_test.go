package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMergeReminderFlags_KeepsSentFlag(t *testing.T) {
	d1 := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 10, 25, 9, 0, 0, 0, time.UTC)

	stored := []ReExamination{
		{Date: d1, ReminderSent: true},
		{Date: d2, ReminderSent: false},
	}
	updated := []ReExamination{
		{Date: d1, Note: "edited", ReminderSent: false},
		{Date: d2, ReminderSent: true},
	}

	got := MergeReminderFlags(stored, updated)

	assert.Len(t, got, 2)
	assert.True(t, got[0].ReminderSent)
	assert.Equal(t, "edited", got[0].Note)
	assert.False(t, got[1].ReminderSent, "client cannot mark a reminder as sent")
}

func TestMergeReminderFlags_DuplicateDates(t *testing.T) {
	d := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	stored := []ReExamination{{Date: d, ReminderSent: true}, {Date: d}}
	updated := []ReExamination{{Date: d}, {Date: d}, {Date: d}}

	got := MergeReminderFlags(stored, updated)

	sent := 0
	for _, re := range got {
		if re.ReminderSent {
			sent++
		}
	}
	assert.Equal(t, 1, sent)
}

func TestPetRefreshStatus(t *testing.T) {
	p := Pet{}
	p.RefreshStatus()
	assert.Equal(t, PetStatusUnused, p.Status)

	p.Owner.Phone = "0901234567"
	p.RefreshStatus()
	assert.Equal(t, PetStatusActive, p.Status)
}

func TestRedemptionCodePastExpiry(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	c := RedemptionCode{ExpiresAt: now}

	assert.False(t, c.PastExpiry(now))
	assert.True(t, c.PastExpiry(now.Add(time.Second)))
}

func TestThemeNormalizePrice(t *testing.T) {
	free := Theme{Price: decimal.NewFromInt(50)}
	assert.NoError(t, free.NormalizePrice())
	assert.True(t, free.Price.IsZero())

	premium := Theme{IsPremium: true, Price: decimal.NewFromInt(-1)}
	assert.ErrorIs(t, premium.NormalizePrice(), ErrInvalidInput)
}

func TestThemeNormalizePrice_Scale(t *testing.T) {
	tests := []struct {
		price   string
		wantErr bool
	}{
		{"19.99", false},
		{"19.990", false},
		{"20", false},
		{"0.01", false},
		{"19.999", true},
		{"0.001", true},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			th := Theme{IsPremium: true, Price: decimal.RequireFromString(tt.price)}
			err := th.NormalizePrice()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
			assert.True(t, th.Price.Equal(decimal.RequireFromString(tt.price)))
		})
	}
}
