package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warehouse-service/config"
	"warehouse-service/internal/broker"
	"warehouse-service/internal/models"
	"warehouse-service/internal/redisclient"
	"warehouse-service/internal/shipping"
	"warehouse-service/internal/store"
	"warehouse-service/internal/util"
)

// ShippingService buys and refunds labels through the shipping provider.
type ShippingService struct {
	store     *store.Store
	client    shipping.Client
	publisher *broker.EventPublisher
	redis     *redisclient.Client
	cfg       *config.Config
	logger    *zap.Logger
}

func NewShippingService(st *store.Store, client shipping.Client, publisher *broker.EventPublisher, redis *redisclient.Client, cfg *config.Config) *ShippingService {
	return &ShippingService{
		store:     st,
		client:    client,
		publisher: publisher,
		redis:     redis,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

type BuyLabelRequest struct {
	Carrier string `json:"carrier"`
	Service string `json:"service"`
}

// BuyLabel purchases a shipping label for an order. Carrier and service
// resolve request over order over config default. Buying twice is rejected;
// a Redis lock keeps two concurrent purchases for the same order from both
// reaching the provider.
func (s *ShippingService) BuyLabel(ctx context.Context, ref string, req *BuyLabelRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "ShippingService.BuyLabel")
	defer span.End()

	order, err := s.getOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	if order.ShipmentID != "" || order.LabelURL != "" {
		return nil, fmt.Errorf("order %s already has a purchased label: %w", order.OrderNumber, store.ErrInvalidState)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, fmt.Errorf("order %s is cancelled: %w", order.OrderNumber, store.ErrInvalidState)
	}

	if s.redis != nil {
		token := uuid.New().String()
		ok, lockErr := s.redis.AcquireLock(ctx, "label:"+order.ID, token, 30*time.Second)
		if lockErr != nil {
			s.logger.Warn("label lock unavailable", zap.Error(lockErr))
		} else if !ok {
			return nil, fmt.Errorf("label purchase already in progress for order %s: %w", order.OrderNumber, store.ErrInvalidState)
		} else {
			defer func() {
				if err := s.redis.ReleaseLock(context.Background(), "label:"+order.ID, token); err != nil {
					s.logger.Warn("failed to release label lock", zap.Error(err))
				}
			}()
		}
	}

	if order.ShipToStreet1 == "" {
		return nil, Validationf("order %s has no shipping address", order.OrderNumber)
	}

	carrier, service := s.resolveCarrierService(order, req)

	from, err := s.shipFromAddress(order)
	if err != nil {
		return nil, err
	}
	parcel, err := s.buildParcel(ctx, order)
	if err != nil {
		return nil, err
	}

	shipment, err := s.client.CreateShipment(ctx, from, orderAddress(order), *parcel)
	if err != nil {
		return nil, Externalf("shipping provider", err)
	}
	if len(shipment.Rates) == 0 {
		return nil, Externalf("shipping provider", fmt.Errorf("no rates returned for shipment %s", shipment.ID))
	}

	rate := findRate(shipment.Rates, carrier, service)
	purchase, err := s.client.Buy(ctx, shipment.ID, rate.ID)
	if err != nil {
		return nil, Externalf("shipping provider", err)
	}

	total := order.ItemSubtotal() + order.ProcessingFee + purchase.Rate
	updated, err := s.store.ApplyLabelPurchase(ctx, order.ID, store.LabelPurchase{
		Carrier:        purchase.Carrier,
		Service:        purchase.Service,
		ShipmentID:     purchase.ShipmentID,
		TrackingNumber: purchase.TrackingNumber,
		TrackingURL:    purchase.TrackingURL,
		LabelURL:       purchase.LabelURL,
		ShippingCost:   purchase.Rate,
		TotalPrice:     total,
		Note:           fmt.Sprintf("Label purchased via %s %s ($%.2f)", purchase.Carrier, purchase.Service, purchase.Rate),
	})
	if err != nil {
		return nil, err
	}

	util.LabelsPurchasedTotal.Inc()
	s.logger.Info("label purchased",
		zap.String("order_number", updated.OrderNumber),
		zap.String("carrier", purchase.Carrier),
		zap.String("service", purchase.Service),
		zap.Float64("rate", purchase.Rate))
	s.publisher.PublishOrderEvent(ctx, models.EventTypeOrderStatusChanged, updated)
	return updated, nil
}

// GetRates quotes the order's parcel without buying, cheapest first.
func (s *ShippingService) GetRates(ctx context.Context, ref string) ([]shipping.Rate, error) {
	order, err := s.getOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	if order.ShipToStreet1 == "" {
		return nil, Validationf("order %s has no shipping address", order.OrderNumber)
	}
	from, err := s.shipFromAddress(order)
	if err != nil {
		return nil, err
	}
	parcel, err := s.buildParcel(ctx, order)
	if err != nil {
		return nil, err
	}
	shipment, err := s.client.CreateShipment(ctx, from, orderAddress(order), *parcel)
	if err != nil {
		return nil, Externalf("shipping provider", err)
	}
	rates := shipment.Rates
	sort.Slice(rates, func(i, j int) bool { return rates[i].Amount < rates[j].Amount })
	return rates, nil
}

// RefundShipment requests a refund from the provider and clears the order's
// label and tracking fields. The total drops back to items plus fee.
func (s *ShippingService) RefundShipment(ctx context.Context, ref string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "ShippingService.RefundShipment")
	defer span.End()

	order, err := s.getOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	if order.ShipmentID == "" {
		return nil, fmt.Errorf("order %s has no purchased shipment: %w", order.OrderNumber, store.ErrInvalidState)
	}

	refund, err := s.client.Refund(ctx, order.ShipmentID)
	if err != nil {
		return nil, Externalf("shipping provider", err)
	}

	total := order.ItemSubtotal() + order.ProcessingFee
	updated, err := s.store.ClearLabel(ctx, order.ID, total,
		fmt.Sprintf("Shipping label refunded (%s)", refund.Status))
	if err != nil {
		return nil, err
	}

	util.LabelsRefundedTotal.Inc()
	s.logger.Info("label refunded",
		zap.String("order_number", updated.OrderNumber),
		zap.String("refund_status", refund.Status))
	s.publisher.PublishOrderEvent(ctx, models.EventTypeOrderStatusChanged, updated)
	return updated, nil
}

func (s *ShippingService) getOrder(ctx context.Context, ref string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, ref)
	if err == nil {
		return order, nil
	}
	return s.store.GetOrderByNumber(ctx, ref)
}

func (s *ShippingService) resolveCarrierService(order *models.Order, req *BuyLabelRequest) (string, string) {
	carrier := s.cfg.Shipping.DefaultCarrier
	service := s.cfg.Shipping.DefaultService
	if order.Carrier != "" {
		carrier = order.Carrier
	}
	if order.Service != "" {
		service = order.Service
	}
	if req != nil && req.Carrier != "" {
		carrier = req.Carrier
	}
	if req != nil && req.Service != "" {
		service = req.Service
	}
	return carrier, service
}

// shipFromAddress prefers a return address stored on the order, then the
// configured warehouse. Neither having a street address is a configuration
// problem, not something to hand the provider.
func (s *ShippingService) shipFromAddress(order *models.Order) (shipping.Address, error) {
	if order.ShipFromStreet1 != "" {
		return shipping.Address{
			Name:    order.ShipFromName,
			Street1: order.ShipFromStreet1,
			City:    order.ShipFromCity,
			State:   order.ShipFromState,
			Zip:     order.ShipFromZip,
			Country: order.ShipFromCountry,
		}, nil
	}
	w := s.cfg.Warehouse
	if w.Street1 == "" {
		return shipping.Address{}, Validationf("order %s has no ship-from address and no warehouse address is configured", order.OrderNumber)
	}
	return shipping.Address{
		Name:    w.Name,
		Street1: w.Street1,
		Street2: w.Street2,
		City:    w.City,
		State:   w.State,
		Zip:     w.Zip,
		Country: w.Country,
		Phone:   w.Phone,
	}, nil
}

func orderAddress(order *models.Order) shipping.Address {
	return shipping.Address{
		Name:    order.ShipToName,
		Street1: order.ShipToStreet1,
		Street2: order.ShipToStreet2,
		City:    order.ShipToCity,
		State:   order.ShipToState,
		Zip:     order.ShipToZip,
		Country: order.ShipToCountry,
		Email:   order.CustomerEmail,
		Phone:   order.CustomerPhone,
	}
}

// buildParcel estimates one box for the order: weights sum per unit with a
// configured fallback for unweighted products, length and width take the
// largest item footprint, heights stack.
func (s *ShippingService) buildParcel(ctx context.Context, order *models.Order) (*shipping.Parcel, error) {
	parcel := &shipping.Parcel{}
	for _, item := range order.Items {
		product, err := s.store.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}

		weight := product.WeightOz
		length, width, height := product.LengthIn, product.WidthIn, product.HeightIn
		if item.VariantID != "" {
			variant, err := s.store.GetVariant(ctx, item.VariantID)
			if err != nil {
				return nil, err
			}
			weight = variant.EffectiveWeightOz(product)
			length, width, height = variant.EffectiveDims(product)
		}
		if weight <= 0 {
			weight = s.cfg.Business.DefaultItemWeightOz
		}

		qty := float64(item.Quantity)
		parcel.WeightOz += weight * qty
		if length > parcel.Length {
			parcel.Length = length
		}
		if width > parcel.Width {
			parcel.Width = width
		}
		parcel.Height += height * qty
	}

	if parcel.WeightOz <= 0 {
		parcel.WeightOz = s.cfg.Business.DefaultItemWeightOz
	}
	if parcel.Length <= 0 {
		parcel.Length = 1
	}
	if parcel.Width <= 0 {
		parcel.Width = 1
	}
	if parcel.Height <= 0 {
		parcel.Height = 1
	}
	return parcel, nil
}

// findRate picks the best match for the requested carrier and service,
// degrading gracefully: exact match, case-insensitive match, service name
// containment either direction on the carrier, cheapest for the carrier,
// cheapest overall.
func findRate(rates []shipping.Rate, carrier, service string) shipping.Rate {
	if service != "" {
		for _, r := range rates {
			if r.Carrier == carrier && r.Service == service {
				return r
			}
		}
		for _, r := range rates {
			if strings.EqualFold(r.Carrier, carrier) && strings.EqualFold(r.Service, service) {
				return r
			}
		}
		for _, r := range rates {
			if !strings.EqualFold(r.Carrier, carrier) {
				continue
			}
			rs, want := strings.ToLower(r.Service), strings.ToLower(service)
			if strings.Contains(rs, want) || strings.Contains(want, rs) {
				return r
			}
		}
	}

	var carrierBest *shipping.Rate
	for i := range rates {
		if !strings.EqualFold(rates[i].Carrier, carrier) {
			continue
		}
		if carrierBest == nil || rates[i].Amount < carrierBest.Amount {
			carrierBest = &rates[i]
		}
	}
	if carrierBest != nil {
		return *carrierBest
	}

	best := rates[0]
	for _, r := range rates[1:] {
		if r.Amount < best.Amount {
			best = r
		}
	}
	return best
}
