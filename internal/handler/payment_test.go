package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/repository"
)

type fakePaymentRepo struct {
	repository.PaymentRepository
	stats    []repository.PaymentStatusStat
	lastSince time.Time
}

func (f *fakePaymentRepo) Stats(ctx context.Context, since time.Time) ([]repository.PaymentStatusStat, error) {
	f.lastSince = since
	return f.stats, nil
}

func TestPaymentHandler_Stats_DefaultsToThirtyDayWindow(t *testing.T) {
	repo := &fakePaymentRepo{stats: []repository.PaymentStatusStat{
		{Status: domain.PaymentCaptured, Count: 3, Total: 15000},
	}}
	h := NewPaymentHandler(repo, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/payments/stats", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Stats(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), repo.lastSince, time.Minute)
}

func TestPaymentHandler_Stats_RejectsBadSinceParam(t *testing.T) {
	h := NewPaymentHandler(&fakePaymentRepo{}, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/payments/stats?since=not-a-time", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Stats(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
