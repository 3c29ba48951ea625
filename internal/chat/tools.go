package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sushi-chatbot/internal/models"
	"sushi-chatbot/internal/service"

	"go.uber.org/zap"
)

// Tool names the assistant is allowed to invoke
const (
	ToolGetCurrentTime   = "get_current_time"
	ToolGetMenu          = "get_menu"
	ToolCreateOrder      = "create_order"
	ToolCheckOrderStatus = "check_order_status"
	ToolCancelOrder      = "cancel_order"
)

// ExecuteTool dispatches one assistant tool call into the order pipeline or
// the catalog and returns the JSON-encoded output.
func (r *Router) ExecuteTool(ctx context.Context, name, arguments string) (string, error) {
	r.logger.Info("Executing tool call", zap.String("tool", name))

	var result interface{}
	var err error

	switch name {
	case ToolGetCurrentTime:
		result = r.currentTime()
	case ToolGetMenu:
		result, err = r.menu(ctx)
	case ToolCreateOrder:
		result, err = r.createOrder(ctx, arguments)
	case ToolCheckOrderStatus:
		result, err = r.checkOrderStatus(ctx, arguments)
	case ToolCancelOrder:
		result, err = r.cancelOrder(ctx, arguments)
	default:
		result = map[string]string{"error": fmt.Sprintf("unknown tool: %s", name)}
	}

	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool output: %w", err)
	}
	return string(encoded), nil
}

// createOrderArgs is the assistant-side field naming for order creation
type createOrderArgs struct {
	CustomerName    string `json:"customer_name"`
	DeliveryType    string `json:"delivery_type"`
	DeliveryAddress string `json:"delivery_address"`
	ScheduledTime   string `json:"scheduled_time"`
	Comments        string `json:"comments"`
	Items           []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

type orderLookupArgs struct {
	OrderNumber  int64  `json:"order_number"`
	CustomerName string `json:"customer_name"`
}

func (r *Router) currentTime() map[string]string {
	adjusted := r.now().UTC().Add(time.Duration(r.tzOffset) * time.Hour)
	return map[string]string{
		"current_time": fmt.Sprintf("%02d:%02d", adjusted.Hour(), adjusted.Minute()),
	}
}

func (r *Router) menu(ctx context.Context) (interface{}, error) {
	products, err := r.catalog.ListProducts(ctx, false)
	if err != nil {
		if svcErr, ok := service.AsError(err); ok {
			return map[string]string{"error": svcErr.Message}, nil
		}
		return nil, err
	}
	return products, nil
}

// createOrder maps the assistant's argument names onto the order input and,
// on success, adds the new sequence number as a subscription hint so the
// client can join that order's notification channel.
func (r *Router) createOrder(ctx context.Context, arguments string) (interface{}, error) {
	var args createOrderArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return map[string]string{"error": "invalid create_order arguments"}, nil
	}

	input := &service.CreateOrderInput{
		CustomerName:    args.CustomerName,
		DeliveryType:    args.DeliveryType,
		DeliveryAddress: args.DeliveryAddress,
		Comments:        args.Comments,
	}
	if args.DeliveryType == models.DeliveryTypePickup {
		input.ScheduledTime = args.ScheduledTime
	}
	for _, item := range args.Items {
		input.Items = append(input.Items, service.OrderItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := r.orders.CreateOrder(ctx, input)
	if err != nil {
		if svcErr, ok := service.AsError(err); ok {
			return map[string]interface{}{"success": false, "message": svcErr.Message}, nil
		}
		return nil, err
	}

	return map[string]interface{}{
		"success":          true,
		"message":          "order created successfully",
		"data":             order,
		"subscribeToOrder": order.SequenceNumber,
	}, nil
}

// checkOrderStatus projects the order into the flattened summary the
// assistant reads back to the customer.
func (r *Router) checkOrderStatus(ctx context.Context, arguments string) (interface{}, error) {
	var args orderLookupArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return map[string]string{"error": "invalid check_order_status arguments"}, nil
	}

	order, err := r.orders.GetOrder(ctx, args.OrderNumber, args.CustomerName)
	if err != nil {
		if svcErr, ok := service.AsError(err); ok {
			return map[string]interface{}{"success": false, "message": svcErr.Message}, nil
		}
		return nil, err
	}

	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"product":  item.ProductName,
			"quantity": item.Quantity,
			"price":    item.ProductPrice,
		})
	}

	return map[string]interface{}{
		"success":         true,
		"orderNumber":     order.SequenceNumber,
		"status":          order.Status,
		"customerName":    order.CustomerName,
		"items":           items,
		"totalPrice":      order.TotalPrice,
		"deliveryAddress": order.DeliveryAddress,
		"createdAt":       order.CreatedAt,
	}, nil
}

// cancelOrder delegates to the status update with target cancelled and
// normalizes the response shape regardless of outcome.
func (r *Router) cancelOrder(ctx context.Context, arguments string) (interface{}, error) {
	var args orderLookupArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return map[string]string{"error": "invalid cancel_order arguments"}, nil
	}

	order, err := r.orders.UpdateStatus(ctx, args.OrderNumber, models.StatusCancelled, args.CustomerName)
	if err != nil {
		message := "failed to cancel the order"
		if svcErr, ok := service.AsError(err); ok {
			message = svcErr.Message
		}
		return map[string]interface{}{
			"success":        false,
			"message":        message,
			"sequenceNumber": nil,
			"status":         nil,
		}, nil
	}

	return map[string]interface{}{
		"success":        true,
		"message":        "order cancelled successfully",
		"sequenceNumber": order.SequenceNumber,
		"status":         order.Status,
	}, nil
}
