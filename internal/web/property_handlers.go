package web

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/bid"
	"github.com/evcraddock/propchain/internal/bidding"
	"github.com/evcraddock/propchain/internal/events"
	"github.com/evcraddock/propchain/internal/gallery"
	"github.com/evcraddock/propchain/internal/identity"
	"github.com/evcraddock/propchain/internal/property"
	"github.com/evcraddock/propchain/internal/review"
)

// maxUploadMemory bounds the in-memory part of multipart parsing.
const maxUploadMemory = 32 << 20

// handleAPIProperties routes /api/properties requests.
func (s *Server) handleAPIProperties(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/properties")
	path = strings.Trim(path, "/")

	// /api/properties
	if path == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.apiListProperties(w, r)
		return
	}

	idStr, sub, _ := strings.Cut(path, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		apiError(w, apperr.Validation("invalid_id", "invalid property ID"))
		return
	}

	switch sub {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.apiGetProperty(w, r, id)
	case "reviews":
		switch r.Method {
		case http.MethodGet:
			s.apiListReviews(w, r, id)
		case http.MethodPost:
			s.apiAddReview(w, r, id)
		default:
			methodNotAllowed(w)
		}
	case "images":
		switch r.Method {
		case http.MethodGet:
			s.apiListImages(w, r, id)
		case http.MethodPost:
			s.apiUploadImages(w, r, id)
		default:
			methodNotAllowed(w)
		}
	case "bids":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.apiListBids(w, r, id)
	case "availability":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		s.apiSetAvailability(w, r, id)
	case "reconcile":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.apiReconcile(w, r, id)
	default:
		apiError(w, apperr.NotFound("route_not_found", "not found"))
	}
}

// apiListProperties returns properties as JSON, filtered by ?q= and ?available=.
func (s *Server) apiListProperties(w http.ResponseWriter, r *http.Request) {
	opts := property.ListOptions{Search: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			apiError(w, apperr.Validation("invalid_filter", "available must be true or false"))
			return
		}
		opts.AvailableOnly = b
	}

	props, err := s.props.List(r.Context(), opts)
	if err != nil {
		apiError(w, err)
		return
	}
	if props == nil {
		props = []*property.Property{}
	}

	apiJSON(w, props, http.StatusOK)
}

type propertyDetail struct {
	Property      *property.Property `json:"property"`
	Reviews       []*review.Review   `json:"reviews"`
	Images        []*gallery.Image   `json:"images"`
	AverageRating float64            `json:"average_rating"`
}

// apiGetProperty returns a property with its reviews, images and average rating.
func (s *Server) apiGetProperty(w http.ResponseWriter, r *http.Request, id int64) {
	p, err := s.props.GetByID(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}

	reviews, err := s.reviews.ListByPropertyID(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}
	if reviews == nil {
		reviews = []*review.Review{}
	}

	images, err := s.gallery.List(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}
	if images == nil {
		images = []*gallery.Image{}
	}

	apiJSON(w, propertyDetail{
		Property:      p,
		Reviews:       reviews,
		Images:        images,
		AverageRating: review.Average(reviews),
	}, http.StatusOK)
}

func (s *Server) apiListReviews(w http.ResponseWriter, r *http.Request, id int64) {
	reviews, err := s.reviews.ListByPropertyID(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}
	if reviews == nil {
		reviews = []*review.Review{}
	}
	apiJSON(w, reviews, http.StatusOK)
}

type reviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
	Author  string `json:"author" validate:"max=200"`
}

// apiAddReview appends a review. The author is the caller when known.
func (s *Server) apiAddReview(w http.ResponseWriter, r *http.Request, id int64) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err)
		return
	}

	if _, err := s.props.GetByID(r.Context(), id); err != nil {
		apiError(w, err)
		return
	}

	author := req.Author
	if caller, ok := identity.CallerFrom(r.Context()); ok {
		author = caller.ID
	}
	if strings.TrimSpace(author) == "" {
		author = "Anonymous"
	}

	rv, err := s.reviews.Add(r.Context(), id, author, req.Rating, req.Comment)
	if err != nil {
		apiError(w, err)
		return
	}

	apiJSON(w, rv, http.StatusCreated)
}

func (s *Server) apiListImages(w http.ResponseWriter, r *http.Request, id int64) {
	images, err := s.gallery.List(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}
	if images == nil {
		images = []*gallery.Image{}
	}
	apiJSON(w, images, http.StatusOK)
}

// apiUploadImages stores every "file" part of a multipart body.
func (s *Server) apiUploadImages(w http.ResponseWriter, r *http.Request, id int64) {
	if _, err := s.props.GetByID(r.Context(), id); err != nil {
		apiError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		apiError(w, apperr.Validation("invalid_form", "expected a multipart form"))
		return
	}

	var uploads []gallery.Upload
	for _, fh := range r.MultipartForm.File["file"] {
		f, err := fh.Open()
		if err != nil {
			apiError(w, fmt.Errorf("opening upload: %w", err))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			apiError(w, fmt.Errorf("reading upload: %w", err))
			return
		}
		uploads = append(uploads, gallery.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	images, err := s.gallery.Upload(r.Context(), id, uploads)
	if err != nil {
		apiError(w, err)
		return
	}

	apiJSON(w, images, http.StatusCreated)
}

// apiListBids returns the property's bid history, newest first.
func (s *Server) apiListBids(w http.ResponseWriter, r *http.Request, id int64) {
	entries, err := s.bids.ListByPropertyID(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}
	if entries == nil {
		entries = []*bid.Entry{}
	}
	apiJSON(w, entries, http.StatusOK)
}

type availabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// apiSetAvailability lets the property owner update the availability flag.
func (s *Server) apiSetAvailability(w http.ResponseWriter, r *http.Request, id int64) {
	caller, ok := identity.CallerFrom(r.Context())
	if !ok {
		apiError(w, errUnauthenticated)
		return
	}

	var req availabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err)
		return
	}

	p, err := s.props.GetByID(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}
	if !bidding.IsOwner(p, caller) {
		apiError(w, apperr.Forbidden("not_owner", "only the property owner may change availability"))
		return
	}

	if err := s.props.SetAvailable(r.Context(), id, *req.Available); err != nil {
		apiError(w, err)
		return
	}
	s.publishAvailability(r, id, *req.Available, "owner")

	p.Available = *req.Available
	apiJSON(w, p, http.StatusOK)
}

// apiReconcile re-derives availability from the chain.
func (s *Server) apiReconcile(w http.ResponseWriter, r *http.Request, id int64) {
	if s.reconciler == nil {
		apiJSON(w, map[string]string{"error": "no ledger configured", "code": "ledger_unavailable"}, http.StatusServiceUnavailable)
		return
	}

	res, err := s.reconciler.Reconcile(r.Context(), id)
	if err != nil {
		apiError(w, err)
		return
	}
	if res.Changed {
		s.publishAvailability(r, id, res.Available, "reconcile")
	}

	apiJSON(w, res, http.StatusOK)
}

func (s *Server) publishAvailability(r *http.Request, id int64, available bool, source string) {
	err := s.pub.Publish(r.Context(), events.PropertyEventsStream, events.AvailabilityChanged,
		events.AvailabilityChangedEvent{PropertyID: id, Available: available, Source: source})
	if err != nil {
		slog.Warn("publishing availability event", "property_id", id, "error", err)
	}
}
