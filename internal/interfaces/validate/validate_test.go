package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/application/receiving"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStruct_CreateInput(t *testing.T) {
	v := New()

	t.Run("valid input passes", func(t *testing.T) {
		in := receiving.CreateGoodsReceiptInput{
			PurchaseOrderID: uuid.New(),
			ReceivedDate:    time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC),
			Items: []receiving.CreateGoodsReceiptItemInput{
				{PurchaseOrderItemID: uuid.New()},
			},
		}
		assert.NoError(t, Struct(v, in))
	})

	t.Run("every failed field is listed", func(t *testing.T) {
		long := string(make([]byte, 101))
		in := receiving.CreateGoodsReceiptInput{
			Items: []receiving.CreateGoodsReceiptItemInput{
				{BatchNumber: &long},
			},
		}

		err := Struct(v, in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrValidation))

		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		fields := de.Details["fields"].([]FieldViolation)

		paths := make([]string, 0, len(fields))
		for _, f := range fields {
			paths = append(paths, f.Field)
		}
		assert.ElementsMatch(t, []string{
			"purchase_order_id",
			"received_date",
			"items[0].purchase_order_item_id",
			"items[0].batch_number",
		}, paths)
	})

	t.Run("empty item list", func(t *testing.T) {
		in := receiving.CreateGoodsReceiptInput{
			PurchaseOrderID: uuid.New(),
			ReceivedDate:    time.Now(),
			Items:           []receiving.CreateGoodsReceiptItemInput{},
		}
		var de *shared.DomainError
		require.True(t, errors.As(Struct(v, in), &de))
		fields := de.Details["fields"].([]FieldViolation)
		require.Len(t, fields, 1)
		assert.Equal(t, "items", fields[0].Field)
		assert.Equal(t, "Must contain at least 1 item(s)", fields[0].Message)
	})
}

func TestStruct_ListInput(t *testing.T) {
	v := New()

	assert.NoError(t, Struct(v, receiving.ListGoodsReceiptsInput{}))
	assert.NoError(t, Struct(v, receiving.ListGoodsReceiptsInput{SortBy: "received_date", SortOrder: "desc", Limit: 100}))

	err := Struct(v, receiving.ListGoodsReceiptsInput{
		SortBy:          "supplier",
		Limit:           500,
		PurchaseOrderID: "not-a-uuid",
		SearchFields:    []string{"grn_number", "batch_number"},
	})
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	fields := de.Details["fields"].([]FieldViolation)

	messages := map[string]string{}
	for _, f := range fields {
		messages[f.Field] = f.Message
	}
	assert.Equal(t, "Must be one of: grn_number received_date status created_at updated_at", messages["sort_by"])
	assert.Equal(t, "Must be at most 100", messages["limit"])
	assert.Equal(t, "Invalid UUID format", messages["purchase_order_id"])
	assert.Contains(t, messages, "search_fields[1]")
}

func TestToDomainError_PassesOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, ToDomainError(plain))
	assert.NoError(t, ToDomainError(nil))
}
