package booking

import (
	"context"
	"math"

	"bus-ticketing/internal/models"
)

// computeFare applies the canonical formula:
// total = subtotal - discount + round(taxRate*subtotal) + fee.
// The discount is capped at the subtotal so a promo can never drive
// the pre-tax amount negative.
func (s *Service) computeFare(ctx context.Context, trip *models.Trip, req models.BookingRequest) (models.FareBreakdown, error) {
	fares, err := s.Trips.SeatFares(ctx, trip.TripID, req.SeatNumbers)
	if err != nil {
		return models.FareBreakdown{}, err
	}

	var subtotal float64
	for _, seat := range req.SeatNumbers {
		subtotal += fares[seat].Fare
	}

	var discount float64
	if req.PromoCode != "" {
		result, err := s.Promo.Validate(ctx, req.PromoCode, subtotal, req.UserID, trip.RouteID)
		if err != nil {
			return models.FareBreakdown{}, err
		}
		if !result.Valid {
			reason := result.RejectionReason
			if reason == "" {
				reason = "code not applicable"
			}
			return models.FareBreakdown{}, &models.ValidationError{Reason: "promo code rejected: " + reason}
		}
		discount = math.Min(result.DiscountAmount, subtotal)
	}

	tax := math.Round(s.Fare.TaxRate * subtotal)
	fee := s.Fare.ConvenienceFee

	return models.FareBreakdown{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Fee:      fee,
		Total:    subtotal - discount + tax + fee,
	}, nil
}

// RefundRate returns the tier percentage for a cancellation this many
// hours before departure: under 2h half the fare comes back, under 6h
// 70%, everything earlier 80%.
func RefundRate(hoursBeforeDeparture float64) float64 {
	switch {
	case hoursBeforeDeparture < 2:
		return 0.50
	case hoursBeforeDeparture < 6:
		return 0.70
	default:
		return 0.80
	}
}

// RefundAmount rounds the tiered refund to whole currency units.
func RefundAmount(totalAmount, hoursBeforeDeparture float64) float64 {
	return math.Round(RefundRate(hoursBeforeDeparture) * totalAmount)
}
