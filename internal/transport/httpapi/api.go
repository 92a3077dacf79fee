// Package httpapi serves the city over REST for tools and dashboards.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"citysim/internal/control"
	"citysim/internal/persistence/indexdb"
	"citysim/internal/protocol"
	"citysim/internal/sim/city"
)

// DayReader is the read side of the index db.
type DayReader interface {
	RecentDays(ctx context.Context, cityName string, limit int) ([]indexdb.DayRow, error)
}

type API struct {
	ctl       *control.Controller
	days      DayReader
	validator *protocol.Validator
	log       logrus.FieldLogger
}

type buildingResponse struct {
	Building protocol.BuildingView `json:"building"`
	Display  city.DisplayStats     `json:"display"`
	CostText string                `json:"cost_text"`
}

type saveInfo struct {
	Name    string `json:"name"`
	Day     int    `json:"day"`
	SavedAt string `json:"saved_at"`
	City    string `json:"city"`
}

// New builds the API. days may be nil, in which case /v1/days answers 404.
func New(ctl *control.Controller, days DayReader, v *protocol.Validator, logger logrus.FieldLogger) *API {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &API{ctl: ctl, days: days, validator: v, log: logger.WithField("component", "httpapi")}
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", a.getState)
		r.Get("/buildings/{id}", a.getBuilding)
		r.Post("/commands", a.postCommand)
		r.Get("/saves", a.listSaves)
		r.Put("/saves/{name}", a.putSave)
		r.Post("/saves/{name}/load", a.loadSave)
		r.Delete("/saves/{name}", a.deleteSave)
		r.Get("/days", a.getDays)
	})
	return r
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	v, err := a.ctl.View(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.NewStateMsg(v))
}

func (a *API) getBuilding(w http.ResponseWriter, r *http.Request) {
	b, ds, err := a.ctl.Building(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildingResponse{
		Building: protocol.NewBuildingView(b),
		Display:  ds,
		CostText: protocol.FormatMoney(ds.Cost),
	})
}

// postCommand accepts any websocket command body and answers its RESULT.
func (a *API) postCommand(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	cmd, err := a.validator.DecodeCommand(raw)
	var res protocol.ResultMsg
	if err != nil {
		res = protocol.NewResult(cmd, err)
	} else {
		res, err = a.ctl.Dispatch(r.Context(), cmd)
	}
	writeJSON(w, statusForErr(res.Code, err), res)
}

func (a *API) listSaves(w http.ResponseWriter, r *http.Request) {
	store := a.ctl.Slots()
	names, err := store.List()
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]saveInfo, 0, len(names))
	for _, n := range names {
		h, err := store.Stat(n)
		if err != nil {
			a.log.WithError(err).WithField("slot", n).Warn("stat save")
			continue
		}
		out = append(out, saveInfo{Name: n, Day: h.Day, SavedAt: h.SavedAt, City: h.CityName})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) putSave(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	save, err := a.ctl.Save(r.Context(), name)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saveInfo{Name: name, Day: save.Day, SavedAt: save.Header.SavedAt, City: save.Header.CityName})
}

func (a *API) loadSave(w http.ResponseWriter, r *http.Request) {
	if err := a.ctl.Load(r.Context(), chi.URLParam(r, "name")); err != nil {
		a.fail(w, err)
		return
	}
	a.getState(w, r)
}

func (a *API) deleteSave(w http.ResponseWriter, r *http.Request) {
	if err := a.ctl.Slots().Delete(chi.URLParam(r, "name")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getDays(w http.ResponseWriter, r *http.Request) {
	if a.days == nil {
		http.Error(w, "index disabled", http.StatusNotFound)
		return
	}
	limit := 30
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 1000)
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	rows, err := a.days.RecentDays(ctx, a.ctl.City().Name(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	if rows == nil {
		rows = []indexdb.DayRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *API) fail(w http.ResponseWriter, err error) {
	code := protocol.CodeFor(err)
	status := statusForErr(code, err)
	if status >= 500 {
		a.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorBody{Code: code, Message: err.Error()})
}

// statusForErr is statusFor, except a stopped city loop is 503.
func statusForErr(code string, err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, city.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return statusFor(code)
}

func statusFor(code string) int {
	switch code {
	case protocol.ErrNotFound, protocol.ErrSaveNotFound:
		return http.StatusNotFound
	case protocol.ErrBadRequest:
		return http.StatusBadRequest
	case protocol.ErrInsufficientFunds:
		return http.StatusPaymentRequired
	case protocol.ErrMalformedSave:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS, POST, PUT, DELETE")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
