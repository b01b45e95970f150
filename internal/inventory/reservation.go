package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/ingressolab/ingresso-backend/pkg/errors"
)

// ReservationRequest asks for qty seats of one ticket type, against either
// the full-price pool or the half-price pool.
type ReservationRequest struct {
	TicketTypeID uuid.UUID
	Qty          int
	HalfPrice    bool
}

// ReservationResult reports the per-request outcome. Reserved=false carries a
// human-readable reason so checkout can surface which line failed.
type ReservationResult struct {
	TicketTypeID uuid.UUID
	Qty          int
	HalfPrice    bool
	Reserved     bool
	Reason       string
}

// The half-price pool is a sub-quota of the same physical seats, so every
// half-price mutation also moves the parent counters. Both guards sit in the
// WHERE clause; a request that would overdraw either pool matches zero rows.
const (
	reserveFullSQL = `UPDATE ticket_types
		SET reserved_qty = reserved_qty + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND total_qty - sold_qty - reserved_qty >= ?`

	reserveHalfSQL = `UPDATE ticket_types
		SET reserved_qty = reserved_qty + ?, half_price_reserved = half_price_reserved + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		  AND total_qty - sold_qty - reserved_qty >= ?
		  AND half_price_qty - half_price_sold - half_price_reserved >= ?`

	commitFullSQL = `UPDATE ticket_types
		SET reserved_qty = reserved_qty - ?, sold_qty = sold_qty + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_qty >= ?`

	commitHalfSQL = `UPDATE ticket_types
		SET reserved_qty = reserved_qty - ?, sold_qty = sold_qty + ?,
		    half_price_reserved = half_price_reserved - ?, half_price_sold = half_price_sold + ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_qty >= ? AND half_price_reserved >= ?`

	releaseFullSQL = `UPDATE ticket_types
		SET reserved_qty = reserved_qty - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_qty >= ?`

	releaseHalfSQL = `UPDATE ticket_types
		SET reserved_qty = reserved_qty - ?, half_price_reserved = half_price_reserved - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_qty >= ? AND half_price_reserved >= ?`
)

func validateRequests(requests []ReservationRequest) error {
	if len(requests) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no reservation requests")
	}
	for _, req := range requests {
		if req.TicketTypeID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "ticket type id is required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity %d for ticket type %s", req.Qty, req.TicketTypeID))
		}
	}
	return nil
}

// Reserve attempts each request with a single guarded UPDATE so concurrent
// checkouts can never take the pool negative. It never partially applies a
// request; a request either moves qty seats into reserved or reports why not.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	if err := validateRequests(requests); err != nil {
		return nil, err
	}

	results := make([]ReservationResult, 0, len(requests))
	for _, req := range requests {
		sql := reserveFullSQL
		args := []any{req.Qty, req.TicketTypeID, req.Qty}
		if req.HalfPrice {
			sql = reserveHalfSQL
			args = []any{req.Qty, req.Qty, req.TicketTypeID, req.Qty, req.Qty}
		}
		res := tx.WithContext(ctx).Exec(sql, args...)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserving inventory")
		}

		result := ReservationResult{
			TicketTypeID: req.TicketTypeID,
			Qty:          req.Qty,
			HalfPrice:    req.HalfPrice,
			Reserved:     res.RowsAffected > 0,
		}
		if !result.Reserved {
			result.Reason = "insufficient availability"
		}
		results = append(results, result)
	}

	return results, nil
}

// Commit moves reserved seats into sold at order confirmation. The guard on
// reserved_qty catches double-commits and returns a state conflict.
func Commit(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if err := validateRequests(requests); err != nil {
		return err
	}

	for _, req := range requests {
		sql := commitFullSQL
		args := []any{req.Qty, req.Qty, req.TicketTypeID, req.Qty}
		if req.HalfPrice {
			sql = commitHalfSQL
			args = []any{req.Qty, req.Qty, req.Qty, req.Qty, req.TicketTypeID, req.Qty, req.Qty}
		}
		res := tx.WithContext(ctx).Exec(sql, args...)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "committing inventory")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("reservation for ticket type %s no longer held", req.TicketTypeID))
		}
	}

	return nil
}

// Release returns reserved seats to the pool on cancellation or expiry.
func Release(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if err := validateRequests(requests); err != nil {
		return err
	}

	for _, req := range requests {
		sql := releaseFullSQL
		args := []any{req.Qty, req.TicketTypeID, req.Qty}
		if req.HalfPrice {
			sql = releaseHalfSQL
			args = []any{req.Qty, req.Qty, req.TicketTypeID, req.Qty, req.Qty}
		}
		res := tx.WithContext(ctx).Exec(sql, args...)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "releasing inventory")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("release for ticket type %s exceeds reserved quantity", req.TicketTypeID))
		}
	}

	return nil
}
