package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// MailHandler exposes a synchronous delivery check for operators.
type MailHandler struct {
	sender ports.MailSender
	brand  string
}

func NewMailHandler(sender ports.MailSender, brand string) *MailHandler {
	return &MailHandler{sender: sender, brand: brand}
}

type mailTestRequest struct {
	To string `json:"to" validate:"required,email"`
}

type mailTestResponse struct {
	Status string `json:"status"`
	To     string `json:"to"`
}

// Test sends the test template to the given address and reports delivery
// failures to the caller.
//
// @Summary      Send a test email
// @Tags         mail
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      mailTestRequest  true  "Recipient"
// @Success      200   {object}  mailTestResponse
// @Failure      400   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /mail/test [post]
func (h *MailHandler) Test(c echo.Context) error {
	var req mailTestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	msg := domain.MailMessage{
		To:       req.To,
		Template: "test",
		Subject:  "Correo de prueba - " + h.brand,
		Data:     map[string]any{"brand": h.brand},
	}
	if err := h.sender.Send(c.Request().Context(), msg); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mailTestResponse{Status: "sent", To: req.To})
}
