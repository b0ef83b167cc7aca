package http

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"finflow/internal/core"
	applog "finflow/internal/log"
	"finflow/internal/storage"
)

var errInsufficientFunds = errors.New("insufficient funds")

// checkBodyOwner rejects a body whose userId names someone other than the
// record's owner.
func checkBodyOwner(doc storage.Document, rec storage.Record) error {
	uid := doc.Decimal("userId")
	if uid.IsPositive() && uid.IntPart() != rec.UserID {
		return errForbidden
	}
	return nil
}

// handleMove returns the contribute or withdraw handler of saving goals.
func (s *Server) handleMove(res resource, withdraw bool) http.HandlerFunc {
	op := applog.OpContribute
	if withdraw {
		op = applog.OpWithdraw
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rec, _, err := s.owned(r, res)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		body, err := ReadDocument(w, r)
		if err != nil {
			BadRequestError(err.Error()).Write(w, r)
			return
		}
		if err := checkBodyOwner(body, rec); err != nil {
			s.fail(w, r, err)
			return
		}
		amount, err := decimal.NewFromString(body.String("amount"))
		if err != nil || !amount.IsPositive() {
			s.fail(w, r, invalid("amount", "must be positive"))
			return
		}

		target := rec.Doc.Decimal("targetAmount")
		current := rec.Doc.Decimal("currentAmount")
		if withdraw {
			if amount.GreaterThan(current) {
				s.fail(w, r, errInsufficientFunds)
				return
			}
			current = current.Sub(amount)
		} else {
			current = current.Add(amount)
		}
		rec.Doc["currentAmount"] = current.String()

		switch status := core.SavingStatus(rec.Doc.String("status")); {
		case status == core.SavingActive && !current.LessThan(target):
			rec.Doc["status"] = string(core.SavingCompleted)
		case status == core.SavingCompleted && current.LessThan(target):
			rec.Doc["status"] = string(core.SavingActive)
		}

		if rec, err = s.repo.Update(r.Context(), rec); err != nil {
			s.fail(w, r, err)
			return
		}
		applog.FromContext(r.Context()).Info("Saving goal balance changed",
			applog.FieldOperation, op,
			applog.FieldRecordID, rec.ID,
			applog.FieldAmount, amount.String())
		OK(w, r, rec.Doc)
	}
}

// handleDebtStatus changes a debt's status. Marking a debt paid settles the
// full amount.
func (s *Server) handleDebtStatus(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, _, err := s.owned(r, res)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		body, err := ReadDocument(w, r)
		if err != nil {
			BadRequestError(err.Error()).Write(w, r)
			return
		}
		if err := checkBodyOwner(body, rec); err != nil {
			s.fail(w, r, err)
			return
		}
		status := core.DebtStatus(body.String("status"))
		if !status.Valid() {
			s.fail(w, r, invalid("status", "is not a debt status"))
			return
		}

		rec.Doc["status"] = string(status)
		if status == core.DebtPaid {
			rec.Doc["amountPaid"] = rec.Amount.String()
		}
		if rec, err = s.repo.Update(r.Context(), rec); err != nil {
			s.fail(w, r, err)
			return
		}
		applog.FromContext(r.Context()).Info("Debt status changed",
			applog.FieldOperation, applog.OpStatus,
			applog.FieldRecordID, rec.ID,
			"status", status)
		OK(w, r, rec.Doc)
	}
}
