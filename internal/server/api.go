package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/woozymasta/parcelmap/internal/geo"
	"github.com/woozymasta/parcelmap/internal/interaction"
	"github.com/woozymasta/parcelmap/internal/view"

	"github.com/rs/zerolog/log"
)

// SessionCookie names the cookie carrying the interaction session id.
const SessionCookie = "parcelmap_sid"

const maxBodyBytes = 1 << 20

// ErrBadRequest marks an unreadable API request body.
var ErrBadRequest = errors.New("invalid request")

// Response is the answer to every API call: the redrawn page plus an
// optional user-visible notice or error.
type Response struct {
	view.Page
	Outcome string `json:"outcome,omitempty"`
	Notice  string `json:"notice,omitempty"`
	Error   string `json:"error,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type radiusRequest struct {
	Value *int              `json:"value"`
	Unit  *interaction.Unit `json:"unit"`
}

type selectRequest struct {
	Feature *geo.ParcelFeature `json:"feature"`
	Index   *int               `json:"index"`
}

// HandleState returns the current page of the session.
func (s *ServerContext) HandleState(w http.ResponseWriter, r *http.Request) {
	ctrl := s.session(w, r)
	s.respond(w, ctrl, Response{}, nil)
}

// HandleSearch moves the map to a geocoded place.
func (s *ServerContext) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctrl := s.session(w, r)

	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		s.respond(w, ctrl, Response{}, err)
		return
	}

	s.respond(w, ctrl, Response{}, ctrl.Search(r.Context(), req.Query))
}

// HandleClick places or replaces the search circle.
func (s *ServerContext) HandleClick(w http.ResponseWriter, r *http.Request) {
	ctrl := s.session(w, r)

	var pos geo.Position
	if err := decodeBody(r, &pos); err != nil {
		s.respond(w, ctrl, Response{}, err)
		return
	}

	outcome := ctrl.Click(pos)
	resp := Response{Outcome: outcome.String()}
	if outcome == interaction.CircleReplaced {
		resp.Notice = interaction.NoticeOutsideCircle
	}

	s.respond(w, ctrl, resp, nil)
}

// HandleRadius changes the unit and/or the radius of the circle.
func (s *ServerContext) HandleRadius(w http.ResponseWriter, r *http.Request) {
	ctrl := s.session(w, r)

	var req radiusRequest
	if err := decodeBody(r, &req); err != nil {
		s.respond(w, ctrl, Response{}, err)
		return
	}

	var err error
	if req.Unit != nil {
		err = ctrl.SelectUnit(*req.Unit)
	}
	if err == nil && req.Value != nil {
		err = ctrl.SelectRadius(*req.Value)
	}

	s.respond(w, ctrl, Response{}, err)
}

// HandleSearchRadius runs the parcel search for the current circle.
// The search is not tied to the request and completes even if the page goes away.
func (s *ServerContext) HandleSearchRadius(w http.ResponseWriter, r *http.Request) {
	ctrl := s.session(w, r)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.searchTimeout())
	defer cancel()

	s.respond(w, ctrl, Response{}, ctrl.SearchByRadius(ctx))
}

// HandleSelect selects a parcel by feature or by list index.
func (s *ServerContext) HandleSelect(w http.ResponseWriter, r *http.Request) {
	ctrl := s.session(w, r)

	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		s.respond(w, ctrl, Response{}, err)
		return
	}

	var err error
	switch {
	case req.Index != nil:
		err = ctrl.SelectIndex(*req.Index)
	case req.Feature != nil:
		ctrl.SelectParcel(*req.Feature)
	default:
		err = ErrBadRequest
	}

	s.respond(w, ctrl, Response{}, err)
}

// HandleClose closes the parcel detail panel.
func (s *ServerContext) HandleClose(w http.ResponseWriter, r *http.Request) {
	ctrl := s.session(w, r)
	ctrl.ClearSelection()
	s.respond(w, ctrl, Response{}, nil)
}

// session returns the controller of the caller, starting a session when
// the cookie is missing or expired.
func (s *ServerContext) session(w http.ResponseWriter, r *http.Request) *interaction.Controller {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if ctrl, ok := s.Sessions.Get(c.Value); ok {
			return ctrl
		}
	}

	id, ctrl := s.Sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return ctrl
}

func (s *ServerContext) searchTimeout() time.Duration {
	if t := s.Config.Catalog.Timeout; t > 0 {
		return t + s.Config.Catalog.Delay
	}
	return 30 * time.Second
}

func (s *ServerContext) respond(w http.ResponseWriter, ctrl *interaction.Controller, resp Response, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = errorMessage(err)
		if status >= http.StatusInternalServerError {
			log.Warn().Err(err).Int("status", status).Msg("Request failed")
		}
	}

	resp.Page = view.Compose(ctrl.Snapshot(), s.View)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(resp)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, interaction.ErrLocationNotFound),
		errors.Is(err, interaction.ErrNoSuchParcel):
		return http.StatusNotFound
	case errors.Is(err, interaction.ErrNoCenter),
		errors.Is(err, interaction.ErrRadiusRequired),
		errors.Is(err, interaction.ErrSearchInProgress),
		errors.Is(err, interaction.ErrSearchSuperseded):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, interaction.ErrEmptyQuery),
		errors.Is(err, interaction.ErrInvalidRadius),
		errors.Is(err, interaction.ErrInvalidUnit):
		return http.StatusBadRequest
	default:
		// catalog and geocoder failures
		return http.StatusBadGateway
	}
}

// errorMessage hides transport details behind the sentinel text.
func errorMessage(err error) string {
	for _, sentinel := range []error{
		interaction.ErrRequestFailed,
		ErrBadRequest,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
