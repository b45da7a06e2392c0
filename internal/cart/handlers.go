package cart

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storeengine/internal/common"
	"github.com/noah-isme/storeengine/internal/discount"
	"github.com/noah-isme/storeengine/internal/money"
	"github.com/noah-isme/storeengine/internal/shipping"
)

// Handler exposes the cart totals endpoint.
type Handler struct {
	Service *Service
	// DisplayPricesIncTax mirrors the store display option.
	DisplayPricesIncTax bool
}

type itemRequest struct {
	Key           string      `json:"key" validate:"required,max=64"`
	ProductID     int64       `json:"productId"`
	Quantity      int         `json:"quantity" validate:"gte=0,lte=10000"`
	UnitPrice     money.Money `json:"unitPrice"`
	TaxClass      string      `json:"taxClass" validate:"max=64"`
	Taxable       *bool       `json:"taxable"`
	ShippingClass string      `json:"shippingClass" validate:"max=64"`
	Virtual       bool        `json:"virtual"`
}

type feeRequest struct {
	Key      string      `json:"key" validate:"required,max=64"`
	Name     string      `json:"name" validate:"max=200"`
	Amount   money.Money `json:"amount"`
	Taxable  bool        `json:"taxable"`
	TaxClass string      `json:"taxClass" validate:"max=64"`
}

type couponRequest struct {
	ID                 int64           `json:"id"`
	Code               string          `json:"code" validate:"required,max=64"`
	DiscountType       string          `json:"discountType" validate:"required"`
	Amount             decimal.Decimal `json:"amount"`
	ProductIDs         []int64         `json:"productIds"`
	ExcludedProductIDs []int64         `json:"excludedProductIds"`
	LimitUsageToXItems int             `json:"limitUsageToXItems" validate:"gte=0"`
	FreeShipping       bool            `json:"freeShipping"`
}

type totalsRequest struct {
	Items       []itemRequest   `json:"items" validate:"required,min=1,max=200,dive"`
	Fees        []feeRequest    `json:"fees" validate:"max=50,dive"`
	Coupons     []couponRequest `json:"coupons" validate:"max=20,dive"`
	Customer    *Customer       `json:"customer"`
	ChosenRates []string        `json:"chosenRates" validate:"max=20"`
}

type totalsResponse struct {
	Items       []Item             `json:"items"`
	Fees        []Fee              `json:"fees"`
	Packages    []shipping.Package `json:"packages"`
	ChosenRates []string           `json:"chosenRates"`
	Totals      Result             `json:"totals"`
}

// CalculateTotals handles POST /cart/totals. The cart is sent whole and
// returned with every line and total computed.
func (h *Handler) CalculateTotals(w http.ResponseWriter, r *http.Request) {
	var req totalsRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.cartFromRequest(r, req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Service.Calculate(r.Context(), c); err != nil {
		common.WriteError(w, common.NewAppError("INTERNAL", "cart totals failed", http.StatusInternalServerError, err))
		return
	}
	resp := totalsResponse{
		Items:       c.Lines,
		Fees:        c.FeeLines,
		Packages:    c.Packages,
		ChosenRates: c.ChosenRates,
		Totals:      c.Result,
	}
	if resp.Fees == nil {
		resp.Fees = []Fee{}
	}
	if resp.Packages == nil {
		resp.Packages = []shipping.Package{}
	}
	if resp.ChosenRates == nil {
		resp.ChosenRates = []string{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

func (h *Handler) cartFromRequest(r *http.Request, req totalsRequest) (*Cart, error) {
	sessionID, _ := common.SessionID(r.Context())
	c := &Cart{
		SessionID:           sessionID,
		Shopper:             req.Customer,
		DisplayPricesIncTax: h.DisplayPricesIncTax,
		ChosenRates:         req.ChosenRates,
	}
	seen := map[string]bool{}
	for _, it := range req.Items {
		if seen[it.Key] {
			return nil, duplicateKey("items", it.Key)
		}
		seen[it.Key] = true
		taxable := true
		if it.Taxable != nil {
			taxable = *it.Taxable
		}
		c.Lines = append(c.Lines, Item{
			Key:           it.Key,
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			TaxClass:      it.TaxClass,
			Taxable:       taxable,
			ShippingClass: it.ShippingClass,
			Virtual:       it.Virtual,
		})
	}
	seen = map[string]bool{}
	for _, f := range req.Fees {
		if seen[f.Key] {
			return nil, duplicateKey("fees", f.Key)
		}
		seen[f.Key] = true
		c.FeeLines = append(c.FeeLines, Fee{Key: f.Key, Name: f.Name, Amount: f.Amount, Taxable: f.Taxable, TaxClass: f.TaxClass})
	}
	for _, cp := range req.Coupons {
		typ, err := discount.ParseType(cp.DiscountType)
		if err != nil {
			appErr := common.NewAppError("VALIDATION_FAILED", "unsupported coupon type", http.StatusUnprocessableEntity, err)
			appErr.Details = map[string]any{"code": cp.Code, "discountType": cp.DiscountType}
			return nil, appErr
		}
		c.AppliedCoupons = append(c.AppliedCoupons, discount.Coupon{
			ID:                 cp.ID,
			Code:               cp.Code,
			Type:               typ,
			Amount:             cp.Amount,
			ProductIDs:         cp.ProductIDs,
			ExcludedProductIDs: cp.ExcludedProductIDs,
			LimitUsageToXItems: cp.LimitUsageToXItems,
			FreeShipping:       cp.FreeShipping,
		})
	}
	return c, nil
}

var errDuplicateKey = errors.New("duplicate key")

func duplicateKey(field, key string) error {
	appErr := common.NewAppError("VALIDATION_FAILED", "duplicate "+field+" key", http.StatusUnprocessableEntity, errDuplicateKey)
	appErr.Details = map[string]any{field: key}
	return appErr
}
