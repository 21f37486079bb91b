package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/evermart/shop-api/internal/domain/discount"
	"github.com/evermart/shop-api/internal/domain/order"
	"github.com/evermart/shop-api/internal/domain/product"
	"github.com/evermart/shop-api/internal/domain/user"
)

// errorStatus translates domain errors into HTTP statuses and user-facing
// messages. Anything unrecognized is an internal error; its details stay in
// the logs, not the response.
func errorStatus(err error) (int, string) {
	var (
		discountNotFound  *discount.NotFoundError
		notApplicable     *discount.NotApplicableError
		unknownKind       *discount.UnknownKindError
		insufficientStock *product.InsufficientStockError
		alreadyDiscounted *order.AlreadyDiscountedError
	)

	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, discount.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound, err.Error()

	case errors.As(err, &discountNotFound):
		return http.StatusNotFound, discountNotFound.Error()

	case errors.As(err, &notApplicable):
		return http.StatusBadRequest, notApplicable.Error()

	case errors.As(err, &insufficientStock):
		return http.StatusBadRequest, insufficientStock.Error()

	case errors.As(err, &alreadyDiscounted):
		return http.StatusBadRequest, alreadyDiscounted.Error()

	case errors.As(err, &unknownKind):
		return http.StatusBadRequest, unknownKind.Error()

	case errors.Is(err, discount.ErrUsageExhausted):
		return http.StatusBadRequest, discount.ErrUsageExhausted.Error()

	case errors.Is(err, order.ErrEmptyItems):
		return http.StatusBadRequest, order.ErrEmptyItems.Error()

	case errors.Is(err, user.ErrEmailTaken):
		return http.StatusBadRequest, user.ErrEmailTaken.Error()

	case errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized, user.ErrInvalidCredentials.Error()
	}

	return http.StatusInternalServerError, "internal error"
}
