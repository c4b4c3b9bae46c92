package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/pharmaerp/receiving/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingHandler(t *testing.T) {
	h := NewRecordingHandler("goods_receipt.created")
	assert.Equal(t, []string{"goods_receipt.created"}, h.EventTypes())

	created := shared.NewBaseDomainEvent("goods_receipt.created", "GoodsReceipt", uuid.New())
	changed := shared.NewBaseDomainEvent("goods_receipt.status_changed", "GoodsReceipt", uuid.New())
	require.NoError(t, h.Handle(context.Background(), &created))
	require.NoError(t, h.Handle(context.Background(), &changed))

	assert.Len(t, h.Handled(), 2)
	assert.Len(t, h.HandledOfType("goods_receipt.created"), 1)

	h.SetError(errors.New("boom"))
	assert.Error(t, h.Handle(context.Background(), &created))
}

func TestRequireEventually(t *testing.T) {
	var n atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		n.Store(1)
	}()
	RequireEventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPerformJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/echo", func(c *gin.Context) {
		var body map[string]string
		require.NoError(t, c.ShouldBindJSON(&body))
		c.JSON(http.StatusOK, dto.NewSuccessResponse(body))
	})
	engine.GET("/fail", func(c *gin.Context) {
		c.JSON(http.StatusConflict, dto.NewErrorResponse("CONFLICT", "stale", ""))
	})

	w := PerformJSON(t, engine, http.MethodPost, "/echo", map[string]string{"grn": "GRN-2026-00001"})
	var data map[string]string
	resp := DecodeResponse(t, w, &data)
	assert.True(t, resp.Success)
	assert.Equal(t, "GRN-2026-00001", data["grn"])

	RequireErrorCode(t, PerformJSON(t, engine, http.MethodGet, "/fail", nil), http.StatusConflict, "CONFLICT")
}
