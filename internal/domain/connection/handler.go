package connection

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/pkg/pagination"
)

const maxQRImageBytes = 5 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctors := api.Group("/connections", auth.RequireRole(auth.RoleDoctor))
	doctors.GET("/qr.png", h.QRCode)
	doctors.GET("/patients", h.ListPatients)

	patients := api.Group("/connections", auth.RequireRole(auth.RolePatient))
	patients.POST("/scan", h.Scan)
	patients.GET("/doctors", h.ListDoctors)
}

func (h *Handler) QRCode(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	png, err := h.svc.QRCode(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Blob(http.StatusOK, "image/png", png)
}

// Scan accepts either {"payload": "<qr text>"} decoded on the client or a
// multipart "image" decoded here.
func (h *Handler) Scan(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var result *ScanResult
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("image")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "image is required")
		}
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "image could not be read")
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxQRImageBytes+1))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "image could not be read")
		}
		if len(data) > maxQRImageBytes {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image is too large")
		}
		result, err = h.svc.ScanImage(ctx, id, data)
		if err != nil {
			return apperr.ToHTTP(err)
		}
	} else {
		var body struct {
			Payload json.RawMessage `json:"payload"`
		}
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		result, err = h.svc.Scan(ctx, id, payloadText(body.Payload))
		if err != nil {
			return apperr.ToHTTP(err)
		}
	}

	status := http.StatusCreated
	if result.AlreadyConnected {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

func (h *Handler) ListPatients(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListDoctors(c echo.Context) error {
	id, err := auth.CurrentIdentity(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// payloadText returns the scanned text from the request field. Clients send
// the decoded QR text as a JSON string; anything else is passed through as
// raw JSON and judged by DecodePayload.
func payloadText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}
