package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"modelproxy-http/internal/mock"
	"modelproxy-http/internal/model"
	"modelproxy-http/internal/service"
)

// interfaceView is what a client needs to know about an interface, including
// whether it may call the upstream directly.
type interfaceView struct {
	ID       string `json:"id"`
	Engine   string `json:"engine"`
	Status   string `json:"status"`
	Method   string `json:"method,omitempty"`
	DataType string `json:"dataType,omitempty"`
	Bypass   bool   `json:"bypassProxyOnClient"`
	URL      string `json:"url,omitempty"`
}

// InterfaceHandler serves calls and relays for loaded interfaces.
type InterfaceHandler struct {
	manager *service.Manager
	logger  *slog.Logger
}

// NewInterfaceHandler creates an InterfaceHandler.
func NewInterfaceHandler(m *service.Manager, logger *slog.Logger) *InterfaceHandler {
	return &InterfaceHandler{
		manager: m,
		logger:  logger.With("component", "interface_handler"),
	}
}

// List returns every loaded interface.
func (h *InterfaceHandler) List(c echo.Context) error {
	profiles := h.manager.Profiles()
	out := make([]interfaceView, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, interfaceView{
			ID:       p.ID,
			Engine:   p.Engine,
			Status:   p.Status,
			Method:   p.Method,
			DataType: p.DataType,
			Bypass:   p.Bypass,
			URL:      p.URL,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Call invokes an interface with the JSON request body as params and the
// inbound Cookie header as cookie. Raw results are returned as bytes, text
// results as plain text, anything else as {"result": ...}.
func (h *InterfaceHandler) Call(c echo.Context) error {
	id := c.Param("id")
	req := c.Request()

	params, err := decodeParams(req.Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	res, err := h.manager.Call(req.Context(), id, params, req.Header.Get("Cookie"))
	if err != nil {
		return h.mapError(c, err)
	}

	for _, v := range res.SetCookie {
		c.Response().Header().Add("Set-Cookie", v)
	}

	switch body := res.Body.(type) {
	case []byte:
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, body)
	case string:
		if p, ok := h.manager.Profile(id); ok && !p.IsMock() && p.DataType != model.DataTypeJSON && p.DataType != model.DataTypeJSONP {
			return c.String(http.StatusOK, body)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"result": res.Body})
}

// Relay passes the inbound request through to the interface's upstream.
func (h *InterfaceHandler) Relay(c echo.Context) error {
	if err := h.manager.Relay(c.Response(), c.Request(), c.Param("id")); err != nil {
		return h.mapError(c, err)
	}
	return nil
}

// decodeParams reads an optional JSON body: an object, an array, or a string.
func decodeParams(body io.Reader) (any, error) {
	if body == nil {
		return nil, nil
	}
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var params any
	if err := dec.Decode(&params); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid JSON params: %w", err)
	}
	switch params.(type) {
	case nil, string, []any, map[string]any:
		return params, nil
	default:
		return nil, errors.New("params must be a JSON object, array, or string")
	}
}

func (h *InterfaceHandler) mapError(c echo.Context, err error) error {
	id := c.Param("id")

	if errors.Is(err, service.ErrUnknownInterface) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("unknown interface %q", id),
		})
	}

	var me *mock.Error
	if errors.As(err, &me) {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":  me.Error(),
			"result": me.Body,
		})
	}

	h.logger.Error("interface error",
		"err", err,
		"interface_id", id,
		"kind", model.KindOf(err).String(),
	)

	if errors.Is(err, model.ErrCookieRequired) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	var pe *model.ProxyError
	if !errors.As(err, &pe) {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	switch pe.Kind {
	case model.KindConfig:
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": pe.Error(),
		})
	case model.KindTimeout:
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": pe.Error(),
		})
	case model.KindUpstreamStatus:
		return c.JSON(http.StatusBadGateway, map[string]any{
			"error":         pe.Error(),
			"status_code":   pe.StatusCode,
			"response_text": pe.ResponseText,
		})
	default:
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": pe.Error(),
		})
	}
}
