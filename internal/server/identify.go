package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/emrgen/identity/internal/model"
	"github.com/emrgen/identity/internal/service"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

const maxBodyBytes = 1 << 16

var errBadPhoneNumber = errors.New("phoneNumber must be a string or a number")

type identifyBody struct {
	Email       *string         `json:"email"`
	PhoneNumber json.RawMessage `json:"phoneNumber"`
}

type identifyResponse struct {
	Contact *model.ContactView `json:"contact"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewGatewayMux builds the REST surface. The healthz endpoint is only
// mounted when a grpc health client is supplied.
func NewGatewayMux(svc *service.IdentityService, health grpc_health_v1.HealthClient) (*runtime.ServeMux, error) {
	opts := []runtime.ServeMuxOption{
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.HTTPBodyMarshaler{
			Marshaler: &runtime.JSONPb{
				MarshalOptions: protojson.MarshalOptions{
					EmitUnpopulated: true,
				},
				UnmarshalOptions: protojson.UnmarshalOptions{
					DiscardUnknown: true,
				},
			},
		}),
	}
	if health != nil {
		opts = append(opts, runtime.WithHealthzEndpoint(health))
	}

	mux := runtime.NewServeMux(opts...)
	handler := &identifyHandler{svc: svc}
	metricsHandler := promhttp.Handler()

	if err := mux.HandlePath(http.MethodPost, "/identify", handler.identify); err != nil {
		return nil, err
	}
	if err := mux.HandlePath(http.MethodGet, "/health", healthHandler); err != nil {
		return nil, err
	}
	if err := mux.HandlePath(http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		metricsHandler.ServeHTTP(w, r)
	}); err != nil {
		return nil, err
	}

	return mux, nil
}

type identifyHandler struct {
	svc *service.IdentityService
}

func (h *identifyHandler) identify(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	start := time.Now()
	requestID := requestIDFromContext(r.Context())
	if requestID == "" {
		requestID = uuid.New().String()
	}
	log := logrus.WithField("request", requestID)

	var body identifyBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	phone, err := phoneNumber(body.PhoneNumber)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	view, err := h.svc.Identify(r.Context(), &service.IdentifyRequest{
		Email:       body.Email,
		PhoneNumber: phone,
	})
	if err != nil {
		code := http.StatusInternalServerError
		msg := err.Error()
		if st, ok := status.FromError(err); ok {
			code = runtime.HTTPStatusFromCode(st.Code())
			msg = st.Message()
		}
		if code >= http.StatusInternalServerError {
			log.Errorf("error in /identify: %v", err)
		}
		writeJSON(w, code, errorResponse{Error: msg})
		return
	}

	log.Infof("identify resolved to contact %d in %v", view.PrimaryContactID, time.Since(start))
	writeJSON(w, http.StatusOK, identifyResponse{Contact: view})
}

// phoneNumber accepts a JSON string or number. Numbers are rendered in plain
// decimal, so 1e3 becomes "1000", and zero counts as absent.
func phoneNumber(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errBadPhoneNumber
		}
		return &s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, errBadPhoneNumber
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return nil, errBadPhoneNumber
	}
	if f == 0 {
		return nil, nil
	}

	format := byte('f')
	if math.Abs(f) >= 1e21 {
		format = 'g'
	}
	s := strconv.FormatFloat(f, format, -1, 64)

	return &s, nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("failed to write response: %v", err)
	}
}
