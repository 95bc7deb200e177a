package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// TransferHandler exposes the occupant transfer workflow endpoints.
type TransferHandler struct {
	Transfers *booking.TransferService
}

func NewTransferHandler(t *booking.TransferService) *TransferHandler {
	return &TransferHandler{Transfers: t}
}

type createTransferReq struct {
	TargetUserID uint64 `json:"target_user_id" validate:"required,gt=0"`
}

type respondTransferReq struct {
	Action string `json:"action" validate:"required,oneof=accept decline"`
}

type transferResp struct {
	ID            uint64  `json:"id"`
	ReservationID uint64  `json:"reservation_id"`
	InitiatorID   uint64  `json:"initiator_id"`
	TargetUserID  uint64  `json:"target_user_id"`
	Status        string  `json:"status"`
	ExpiresAt     string  `json:"expires_at"`
	DecidedAt     *string `json:"decided_at,omitempty"`
}

func toTransferResp(t *model.TransferRequest) transferResp {
	resp := transferResp{
		ID:            t.ID,
		ReservationID: t.ReservationID,
		InitiatorID:   t.InitiatorID,
		TargetUserID:  t.TargetUserID,
		Status:        t.Status,
		ExpiresAt:     t.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if t.DecidedAt != nil {
		d := t.DecidedAt.UTC().Format(time.RFC3339)
		resp.DecidedAt = &d
	}
	return resp
}

// Create handles POST /v1/reservations/:id/transfers. The caller offers one
// of their occupant slots on the reservation to the target user; the offer
// stays open for the configured TTL.
func (h *TransferHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || reservationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req createTransferReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "target_user_id is required"})
	}

	t, err := h.Transfers.Create(c.Request().Context(), clientAddr(c), reservationID, userID, req.TargetUserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toTransferResp(t))
}

// Respond handles POST /v1/transfers/:id/respond with an accept or decline
// action. Expired transfers answer 410 regardless of their stored state.
func (h *TransferHandler) Respond(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	transferID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || transferID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transfer id"})
	}
	var req respondTransferReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "action must be accept or decline"})
	}

	t, err := h.Transfers.Respond(c.Request().Context(), clientAddr(c), transferID, userID, req.Action)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toTransferResp(t))
}

// ListPending handles GET /v1/transfers/pending and returns the live
// transfers awaiting the caller's response.
func (h *TransferHandler) ListPending(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Transfers.PendingFor(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]transferResp, 0, len(list))
	for i := range list {
		out = append(out, toTransferResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"transfers": out})
}
