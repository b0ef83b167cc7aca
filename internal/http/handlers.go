package http

import (
	"context"
	"errors"
	"net/http"

	"finflow/internal/core"
	"finflow/internal/identity"
	applog "finflow/internal/log"
	"finflow/internal/storage"
)

// Repository is the record store behind the handlers.
type Repository interface {
	Create(ctx context.Context, rec storage.Record) (storage.Record, error)
	Get(ctx context.Context, domain core.Domain, id int64) (storage.Record, error)
	Update(ctx context.Context, rec storage.Record) (storage.Record, error)
	Delete(ctx context.Context, domain core.Domain, id int64) error
	DeleteForUser(ctx context.Context, domain core.Domain, userID, id int64) error
	ListByUser(ctx context.Context, domain core.Domain, userID int64) ([]storage.Record, error)
	Between(ctx context.Context, domain core.Domain, userID int64, start, end string) ([]storage.Record, error)
	Page(ctx context.Context, domain core.Domain, userID int64, q storage.PageQuery) ([]storage.Record, int, error)
	Top(ctx context.Context, domain core.Domain, userID int64, limit int) ([]storage.Record, error)
	Ping(ctx context.Context) error
}

// pageBody is the paginated listing payload.
type pageBody struct {
	Content       []storage.Document `json:"content"`
	TotalElements int                `json:"totalElements"`
	TotalPages    int                `json:"totalPages"`
	Page          int                `json:"page"`
	Size          int                `json:"size"`
}

func docs(recs []storage.Record) []storage.Document {
	out := make([]storage.Document, len(recs))
	for i, r := range recs {
		out[i] = r.Doc
	}
	return out
}

// fail maps err onto a status and writes the error envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var b *EnvelopeBuilder
	switch {
	case isValidation(err):
		b = BadRequestError(err.Error())
	case errors.Is(err, errMissingOwner), errors.Is(err, errBadID), errors.Is(err, errBadDate),
		errors.Is(err, errBadRange), errors.Is(err, errBadYear), errors.Is(err, errInsufficientFunds):
		b = BadRequestError(err.Error())
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrNoUserClaim),
		errors.Is(err, identity.ErrEmptyToken):
		s.metrics.invalidTokenHits.Add(1)
		b = ErrorResponse(http.StatusUnauthorized, "Invalid session token")
	case errors.Is(err, errForbidden):
		s.metrics.forbiddenAttempts.Add(1)
		b = ForbiddenError("Access denied")
	case errors.Is(err, storage.ErrNotFound):
		b = NotFoundError("Record not found")
	default:
		applog.FromContext(r.Context()).Error("Request failed",
			applog.FieldPath, r.URL.Path, applog.FieldError, err)
		b = InternalServerError("Internal server error")
	}
	b.Write(w, r)
}

// userScope parses the {uid} path value and checks the caller may read it.
func (s *Server) userScope(r *http.Request) (int64, error) {
	uid, err := PathID(r, "uid")
	if err != nil {
		return 0, err
	}
	c, err := callerFrom(r)
	if err != nil {
		return 0, err
	}
	if !c.mayActFor(uid) {
		return 0, errForbidden
	}
	return uid, nil
}

// owned loads record id of res and checks the caller owns it.
func (s *Server) owned(r *http.Request, res resource) (storage.Record, caller, error) {
	id, err := PathID(r, "id")
	if err != nil {
		return storage.Record{}, caller{}, err
	}
	c, err := callerFrom(r)
	if err != nil {
		return storage.Record{}, caller{}, err
	}
	rec, err := s.repo.Get(r.Context(), res.domain, id)
	if err != nil {
		return storage.Record{}, caller{}, err
	}
	if !c.mayActFor(rec.UserID) {
		return storage.Record{}, caller{}, errForbidden
	}
	return rec, c, nil
}

func (s *Server) handleList(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.userScope(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		recs, err := s.repo.ListByUser(r.Context(), res.domain, uid)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		OK(w, r, docs(recs))
	}
}

func (s *Server) handlePage(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.userScope(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		params := ParsePageParams(r.URL.Query())
		recs, total, err := s.repo.Page(r.Context(), res.domain, uid, params.Query(res))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		OK(w, r, pageBody{
			Content:       docs(recs),
			TotalElements: total,
			TotalPages:    (total + params.Size - 1) / params.Size,
			Page:          params.Page,
			Size:          params.Size,
		})
	}
}

func (s *Server) handleGet(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, _, err := s.owned(r, res)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		OK(w, r, rec.Doc)
	}
}

func (s *Server) handleCreate(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := callerFrom(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		doc, err := ReadDocument(w, r)
		if err != nil {
			BadRequestError(err.Error()).Write(w, r)
			return
		}
		uid, err := c.ownerOf(doc)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		rec, err := res.record(doc, uid, true)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		rec, err = s.repo.Create(r.Context(), rec)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		applog.FromContext(r.Context()).Info("Record created",
			applog.FieldOperation, applog.OpCreate,
			applog.FieldDomain, res.domain,
			applog.FieldRecordID, rec.ID,
			applog.FieldUserID, uid)
		Created(w, r, res.label+" created successfully", rec.Doc)
	}
}

func (s *Server) handleUpdate(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, c, err := s.owned(r, res)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		doc, err := ReadDocument(w, r)
		if err != nil {
			BadRequestError(err.Error()).Write(w, r)
			return
		}
		uid, err := c.ownerOf(doc)
		if errors.Is(err, errMissingOwner) {
			uid, err = existing.UserID, nil
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if uid != existing.UserID {
			s.fail(w, r, errForbidden)
			return
		}

		for k, v := range existing.Doc {
			if _, ok := doc[k]; !ok {
				doc[k] = v
			}
		}
		for k, v := range existing.Doc {
			if _, isDefault := res.defaults[k]; isDefault && blankField(doc, k) {
				doc[k] = v
			}
		}

		rec, err := res.record(doc, uid, false)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		rec.ID = existing.ID
		if rec, err = s.repo.Update(r.Context(), rec); err != nil {
			s.fail(w, r, err)
			return
		}

		applog.FromContext(r.Context()).Info("Record updated",
			applog.FieldOperation, applog.OpUpdate,
			applog.FieldDomain, res.domain,
			applog.FieldRecordID, rec.ID)
		NewEnvelope().Message(res.label + " updated successfully").Data(rec.Doc).Write(w, r)
	}
}

func (s *Server) handleDelete(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, _, err := s.owned(r, res)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.repo.Delete(r.Context(), res.domain, rec.ID); err != nil {
			s.fail(w, r, err)
			return
		}
		applog.FromContext(r.Context()).Info("Record deleted",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldDomain, res.domain,
			applog.FieldRecordID, rec.ID)
		NewEnvelope().Message(res.label + " deleted successfully").Write(w, r)
	}
}

// handleDeleteForUser is the user-scoped delete the client falls back to.
func (s *Server) handleDeleteForUser(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.userScope(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		id, err := PathID(r, "id")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if err := s.repo.DeleteForUser(r.Context(), res.domain, uid, id); err != nil {
			s.fail(w, r, err)
			return
		}
		applog.FromContext(r.Context()).Info("Record deleted for user",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldDomain, res.domain,
			applog.FieldRecordID, id,
			applog.FieldUserID, uid)
		NewEnvelope().Message(res.label + " deleted successfully").Write(w, r)
	}
}
