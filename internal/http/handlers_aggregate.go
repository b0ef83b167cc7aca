package http

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	"finflow/internal/core"
	applog "finflow/internal/log"
	"finflow/internal/storage"
)

const unspecifiedKey = "UNSPECIFIED"

// totalOf sums the stored amounts.
func totalOf(recs []storage.Record) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(recs))
	for i, r := range recs {
		amounts[i] = r.Amount
	}
	return core.Sum(amounts...)
}

// groupTotals sums amounts per value of field, largest first.
func groupTotals(recs []storage.Record, field string) []core.CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, r := range recs {
		key := r.Doc.String(field)
		if key == "" {
			key = unspecifiedKey
		}
		sums[key] = sums[key].Add(r.Amount)
	}

	out := make([]core.CategoryTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, core.CategoryTotal{Key: k, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// monthlyTotals returns twelve entries, one per month of the records' year.
func monthlyTotals(recs []storage.Record) []core.MonthTotal {
	out := make([]core.MonthTotal, 12)
	for i := range out {
		out[i] = core.MonthTotal{Month: i + 1, Total: decimal.Zero}
	}
	for _, r := range recs {
		d, err := core.ParseDate(r.Date)
		if err != nil {
			continue
		}
		m := int(d.Month()) - 1
		out[m].Total = out[m].Total.Add(r.Amount)
	}
	return out
}

func (s *Server) handleTotal(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.userScope(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		start, end, err := ParsePeriod(r.URL.Query())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if res.dateField == "" {
			start, end = "", ""
		}
		recs, err := s.repo.Between(r.Context(), res.domain, uid, start, end)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		OK(w, r, totalOf(recs))
	}
}

func (s *Server) handleBreakdown(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.userScope(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		field := r.PathValue("field")
		if !res.canGroupBy(field) {
			BadRequestError(fmt.Sprintf("cannot group %s by %q", res.domain, field)).Write(w, r)
			return
		}
		recs, err := s.repo.ListByUser(r.Context(), res.domain, uid)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		applog.FromContext(r.Context()).Debug("Breakdown computed",
			applog.FieldOperation, applog.OpAggregate,
			applog.FieldDomain, res.domain,
			"field", field,
			"records", len(recs))
		OK(w, r, groupTotals(recs, field))
	}
}

func (s *Server) handleTop(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.userScope(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		recs, err := s.repo.Top(r.Context(), res.domain, uid, ParseLimit(r.URL.Query()))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		OK(w, r, docs(recs))
	}
}

func (s *Server) handleMonthly(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.userScope(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		year, err := ParseYear(r.URL.Query(), s.now())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		var recs []storage.Record
		if res.dateField != "" {
			recs, err = s.repo.Between(r.Context(), res.domain, uid,
				fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
			if err != nil {
				s.fail(w, r, err)
				return
			}
		}
		OK(w, r, monthlyTotals(recs))
	}
}
