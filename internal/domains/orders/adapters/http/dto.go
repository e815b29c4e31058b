package http

import (
	"time"

	"github.com/commercekit/settlement/internal/domains/orders/ports"
	"github.com/commercekit/settlement/internal/domains/payment/adapters/gateway"
	paymentdomain "github.com/commercekit/settlement/internal/domains/payment/domain"
)

type orderItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int64 `json:"quantity" binding:"required"`
}

type createOrderRequest struct {
	Items       []orderItemRequest `json:"items" binding:"required"`
	CouponCode  string             `json:"couponCode"`
	PointsToUse int64              `json:"pointsToUse"`
	CardType    string             `json:"cardType" binding:"required"`
	CardNo      string             `json:"cardNo" binding:"required"`
}

func (r createOrderRequest) toInput(ownerRef string) ports.CreateOrderInput {
	items := make([]ports.ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, ports.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return ports.CreateOrderInput{
		OwnerRef:    ownerRef,
		Items:       items,
		CouponCode:  r.CouponCode,
		PointsToUse: r.PointsToUse,
		CardType:    paymentdomain.CardType(r.CardType),
		CardNo:      r.CardNo,
	}
}

// paymentCallbackRequest mirrors the gateway's callback body. The order id
// arrives in the gateway's zero-padded string form.
type paymentCallbackRequest struct {
	TransactionKey string `json:"transactionKey" binding:"required"`
	OrderID        string `json:"orderId" binding:"required"`
	CardType       string `json:"cardType"`
	CardNo         string `json:"cardNo"`
	Amount         int64  `json:"amount"`
	Status         string `json:"status" binding:"required"`
	Reason         string `json:"reason"`
}

type orderItemResponse struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type orderResponse struct {
	ID             int64               `json:"id"`
	OrderRef       string              `json:"orderRef"`
	Items          []orderItemResponse `json:"items"`
	CouponCode     string              `json:"couponCode,omitempty"`
	DiscountAmount int64               `json:"discountAmount"`
	PointsUsed     int64               `json:"pointsUsed"`
	TotalAmount    int64               `json:"totalAmount"`
	ChargeAmount   int64               `json:"chargeAmount"`
	Status         string              `json:"status"`
	PaymentKey     string              `json:"paymentKey,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func toOrderResponse(view *ports.OrderView) orderResponse {
	items := make([]orderItemResponse, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return orderResponse{
		ID:             view.ID,
		OrderRef:       gateway.FormatOrderID(view.ID),
		Items:          items,
		CouponCode:     view.CouponCode,
		DiscountAmount: view.DiscountAmount,
		PointsUsed:     view.PointsUsed,
		TotalAmount:    view.TotalAmount,
		ChargeAmount:   view.ChargeAmount,
		Status:         string(view.Status),
		PaymentKey:     view.PaymentKey,
		CreatedAt:      view.CreatedAt,
		UpdatedAt:      view.UpdatedAt,
	}
}

type reconcileResponse struct {
	Examined     int `json:"examined"`
	Completed    int `json:"completed"`
	Canceled     int `json:"canceled"`
	StillPending int `json:"stillPending"`
	Failed       int `json:"failed"`
}
