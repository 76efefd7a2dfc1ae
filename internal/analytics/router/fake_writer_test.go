package router

import (
	"context"

	"github.com/angelmondragon/kiosko-backend/internal/analytics/types"
)

type fakeWriter struct {
	sales         []types.OrderSaleRow
	cancellations []types.OrderCancellationRow
	err           error
}

func (f *fakeWriter) InsertSale(_ context.Context, row types.OrderSaleRow) error {
	if f.err != nil {
		return f.err
	}
	f.sales = append(f.sales, row)
	return nil
}

func (f *fakeWriter) InsertCancellation(_ context.Context, row types.OrderCancellationRow) error {
	if f.err != nil {
		return f.err
	}
	f.cancellations = append(f.cancellations, row)
	return nil
}
