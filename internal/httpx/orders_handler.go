package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sailsteel/order-desk/internal/auth"
	"github.com/sailsteel/order-desk/internal/intake"
	"github.com/sailsteel/order-desk/internal/orders"
)

type OrdersHandler struct {
	Service  *intake.Service
	Verifier auth.Verifier
}

// CreateOrderReq mirrors the order form. Numeric fields arrive as numbers or numeric strings.
type CreateOrderReq struct {
	Grade            string      `json:"grade"`
	Thickness        numberField `json:"thickness"`
	Width            numberField `json:"width"`
	Length           numberField `json:"length"`
	Finish           string      `json:"finish"`
	Quality          string      `json:"quality"`
	Edge             string      `json:"edge"`
	Customer         string      `json:"customer"`
	RequiredQuantity numberField `json:"requiredQuantity"`

	BQuantity   string `json:"bQuantity"`
	SSPROID     string `json:"sspRoId"`
	ReleaseDate string `json:"releaseDate"`
	MOU         string `json:"mou"`
	Remarks     string `json:"remarks"`
}

type CreateOrderResp struct {
	Message string `json:"message"`
	OrderID string `json:"orderId"`
}

type StockCheckResp struct {
	Available    bool            `json:"available"`
	Quantity     decimal.Decimal `json:"quantity"`
	DeliveryDays int             `json:"delivery_days"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{orderId}", h.getOrder)
	r.Get("/stock/check", h.checkStock)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.ListOrders(ctx)
	if err != nil {
		log.Printf("list orders: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	writeJSON(w, http.StatusOK, orders.Views(list))
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in, err := req.toRequest()
	if err != nil {
		var fe invalidFieldError
		if errors.As(err, &fe) {
			writeError(w, http.StatusBadRequest, "Invalid "+fe.field)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.CreateOrder(ctx, in, auth.FromRequest(r, h.Verifier))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, CreateOrderResp{Message: "Order created successfully", OrderID: o.ID})
	case errors.Is(err, orders.ErrValidation):
		writeError(w, http.StatusBadRequest, "Missing required fields")
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "Stock data not found for the specified parameters")
	default:
		log.Printf("create order: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create order")
	}
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.GetOrder(ctx, chi.URLParam(r, "orderId"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, o.View())
	case errors.Is(err, orders.ErrValidation):
		writeError(w, http.StatusBadRequest, "Order ID is required")
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "Order not found")
	default:
		log.Printf("get order: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch order")
	}
}

func (h *OrdersHandler) checkStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	spec := orders.Specification{
		Grade:   q.Get("grade"),
		Finish:  q.Get("finish"),
		Quality: q.Get("quality"),
		Edge:    q.Get("edge"),
	}
	dims := []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"thickness", &spec.Thickness},
		{"width", &spec.Width},
		{"length", &spec.Length},
	}
	for _, d := range dims {
		v, err := parseDecimal(q.Get(d.name))
		if err != nil || !v.IsPositive() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid or missing %s", d.name))
			return
		}
		*d.dst = v
	}
	if spec.Grade == "" || spec.Finish == "" || spec.Quality == "" || spec.Edge == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	quantity := decimal.NewFromInt(1)
	if raw := q.Get("quantity"); raw != "" {
		v, err := parseDecimal(raw)
		if err != nil || !v.IsPositive() {
			writeError(w, http.StatusBadRequest, "Invalid quantity")
			return
		}
		quantity = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, days, err := h.Service.CheckStock(ctx, spec, quantity)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, StockCheckResp{
			Available:    rec.Quantity.GreaterThanOrEqual(quantity),
			Quantity:     rec.Quantity,
			DeliveryDays: days,
		})
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "Stock data not found for the specified parameters")
	default:
		log.Printf("check stock: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to check stock")
	}
}

func (req CreateOrderReq) toRequest() (intake.Request, error) {
	out := intake.Request{
		Specification: orders.Specification{
			Grade:   strings.TrimSpace(req.Grade),
			Finish:  strings.TrimSpace(req.Finish),
			Quality: strings.TrimSpace(req.Quality),
			Edge:    strings.TrimSpace(req.Edge),
		},
		Customer:    req.Customer,
		BQuantity:   req.BQuantity,
		SSPROID:     req.SSPROID,
		ReleaseDate: req.ReleaseDate,
		MOU:         req.MOU,
		Remarks:     req.Remarks,
	}
	fields := []struct {
		name string
		src  numberField
		dst  *decimal.Decimal
	}{
		{"thickness", req.Thickness, &out.Thickness},
		{"width", req.Width, &out.Width},
		{"length", req.Length, &out.Length},
		{"requiredQuantity", req.RequiredQuantity, &out.RequiredQuantity},
	}
	for _, f := range fields {
		v, err := parseDecimal(string(f.src))
		if err != nil {
			return intake.Request{}, invalidFieldError{field: f.name}
		}
		*f.dst = v
	}
	return out, nil
}

// numberField holds the raw text of a JSON number or string. Empty means absent.
type numberField string

func (n *numberField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numberField(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = numberField(num)
	return nil
}

type invalidFieldError struct{ field string }

func (e invalidFieldError) Error() string { return "invalid " + e.field }

const (
	maxBodyBytes = 64 << 10
	// Comparing decimals rescales both sides, so exponents and coefficients stay small.
	maxExponent = 18
	maxDigits   = 30
)

var errOutOfRange = errors.New("number out of range")

// parseDecimal treats empty input as zero so presence checks happen in one place.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if e := d.Exponent(); e > maxExponent || e < -maxExponent || d.NumDigits() > maxDigits {
		return decimal.Zero, errOutOfRange
	}
	return d, nil
}
