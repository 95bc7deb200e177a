package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// ReservationHandler exposes the admission endpoints. All booking rules live
// in the AdmissionService; the handler only parses, delegates and renders.
type ReservationHandler struct {
	Admission *booking.AdmissionService
}

func NewReservationHandler(a *booking.AdmissionService) *ReservationHandler {
	return &ReservationHandler{Admission: a}
}

type createReservationReq struct {
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	AllowTransfer bool   `json:"allow_transfer"`
}

type reservationResp struct {
	ID            uint64 `json:"id"`
	Date          string `json:"date"`
	Status        string `json:"status"`
	AllowTransfer bool   `json:"allow_transfer"`
	CreatedAt     string `json:"created_at"`
}

func toReservationResp(res *model.Reservation) reservationResp {
	return reservationResp{
		ID:            res.ID,
		Date:          res.Date.UTC().Format("2006-01-02"),
		Status:        res.Status,
		AllowTransfer: res.AllowTransfer,
		CreatedAt:     res.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Create handles POST /v1/reservations. Admission can fail with a
// consecutive-day validation error, a capacity conflict or a rate-limit
// rejection; each maps to its own status via writeError.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}

	res, remaining, err := h.Admission.CreateReservation(c.Request().Context(), clientAddr(c), userID, date, req.AllowTransfer)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation":     toReservationResp(res),
		"remaining_spots": remaining,
	})
}

// List handles GET /v1/reservations and returns the caller's reservations,
// newest first.
func (h *ReservationHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Admission.ListReservations(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]reservationResp, 0, len(list))
	for i := range list {
		out = append(out, toReservationResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Cancel handles DELETE /v1/reservations/:id. Only the owning user may
// cancel; the released capacity slot becomes bookable again.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Admission.CancelReservation(c.Request().Context(), userID, id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": id})
}

// Capacity handles GET /v1/dates/:date/capacity and reports the remaining
// spots for a date. Dates never booked read as fully available at the
// configured default maximum.
func (h *ReservationHandler) Capacity(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	date, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	cap, err := h.Admission.CapacityFor(c.Request().Context(), date)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"date":            cap.Date.UTC().Format("2006-01-02"),
		"max_capacity":    cap.MaxCapacity,
		"total_bookings":  cap.TotalBookings,
		"remaining_spots": cap.RemainingSpots(),
	})
}
