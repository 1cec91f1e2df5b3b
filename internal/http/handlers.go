package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"paytrack/internal/core"
	"paytrack/internal/importer"
	"paytrack/internal/log"
	"paytrack/internal/services"
)

// openEnd caps unbounded list queries. Transactions this far out do
// not exist; recurrence generation stops at its horizon long before.
var openEnd = core.NewDate(9999, 12, 31)

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// isValidationError reports whether err is a domain rule violation, as
// opposed to an infrastructure failure.
func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount, core.ErrInvalidType, core.ErrInvalidPattern,
		core.ErrTemplateNoPattern, core.ErrTemplateWithParent,
		core.ErrInstanceHasPattern, core.ErrZeroDate,
		services.ErrNotTemplate, services.ErrMissingPattern,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("transaction not found").Write(w)
	case isValidationError(err):
		UnprocessableEntityError(err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		InternalServerError("internal error").Write(w)
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var payload transactionPayload
	if err := decodeJSON(r, &payload); err != nil {
		BadRequestError("invalid request body: " + err.Error()).Write(w)
		return
	}

	t, err := payload.toDomain()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	saved, err := s.transactions.Create(r.Context(), t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateReports()
	s.audit.LogTransactionCreated(r.Context(), saved.ID, saved.Date.String(), string(saved.Type), saved.Amount)
	NewJSONResponse().Status(http.StatusCreated).Body(toPayload(saved)).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var rows []core.Transaction
	if q := r.URL.Query(); q.Get("year") != "" || q.Get("month") != "" {
		params, err := ParseMonthParams(q)
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		rows, err = s.transactions.ListForMonth(r.Context(), params.Year, params.Month, filter.Type)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	} else {
		end := filter.EndDate
		if end.IsZero() {
			end = openEnd
		}
		rows, err = s.transactions.ListByDateRange(r.Context(), filter.StartDate, end, filter.Type, false)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
	}

	// Date and type were pushed into the store query; the in-memory
	// filter adds text search and amount bounds on top.
	rows = filter.Apply(rows)
	NewJSONResponse().Body(toPayloads(rows)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("invalid transaction id").Write(w)
		return
	}

	t, err := s.transactions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Body(toPayload(t)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("invalid transaction id").Write(w)
		return
	}

	var payload transactionPayload
	if err := decodeJSON(r, &payload); err != nil {
		BadRequestError("invalid request body: " + err.Error()).Write(w)
		return
	}

	t, err := payload.toDomain()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	t.ID = id

	updated, err := s.transactions.Update(r.Context(), t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateReports()
	NewJSONResponse().Body(toPayload(updated)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("invalid transaction id").Write(w)
		return
	}

	deleted, err := s.transactions.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !deleted {
		NotFoundError("transaction not found").Write(w)
		return
	}

	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

// batchItemError is the wire shape of one rejected batch item.
type batchItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type batchResponse struct {
	Created []transactionPayload `json:"created"`
	Failed  []batchItemError     `json:"failed"`
}

func batchResponseFrom(report services.BatchReport) batchResponse {
	resp := batchResponse{
		Created: toPayloads(report.Created()),
		Failed:  []batchItemError{},
	}
	for _, res := range report.Results {
		if res.Err != nil {
			resp.Failed = append(resp.Failed, batchItemError{Index: res.Index, Error: res.Err.Error()})
		}
	}
	return resp
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var payloads []transactionPayload
	if err := decodeJSON(r, &payloads); err != nil {
		BadRequestError("invalid request body: " + err.Error()).Write(w)
		return
	}

	// Items with an unparseable date become zero-date transactions so
	// the batch keeps per-index results; validation rejects them.
	items := make([]core.Transaction, len(payloads))
	for i, p := range payloads {
		if t, err := p.toDomain(); err == nil {
			items[i] = t
		}
	}

	report := s.transactions.CreateBatch(r.Context(), items)
	if len(report.Created()) > 0 {
		s.invalidateReports()
	}

	status := http.StatusCreated
	if len(report.Created()) == 0 && report.FailedCount() > 0 {
		status = http.StatusUnprocessableEntity
	}
	NewJSONResponse().Status(status).Body(batchResponseFrom(report)).Write(w)
}

// importResponse reports a CSV import: parse failures by line, then
// the batch outcome for the rows that parsed.
type importResponse struct {
	Parsed     int                  `json:"parsed"`
	ParseFails []importLineError    `json:"parse_failures"`
	Created    []transactionPayload `json:"created"`
	Failed     []batchItemError     `json:"failed"`
}

type importLineError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	report, err := importer.ParseCSV(r.Body)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	resp := importResponse{
		Parsed:     len(report.Transactions()),
		ParseFails: []importLineError{},
	}
	for _, row := range report.Rows {
		if row.Err != nil {
			resp.ParseFails = append(resp.ParseFails, importLineError{Line: row.Line, Error: row.Err.Error()})
		}
	}

	batch := s.transactions.CreateBatch(r.Context(), report.Transactions())
	if len(batch.Created()) > 0 {
		s.invalidateReports()
	}
	batchResp := batchResponseFrom(batch)
	resp.Created = batchResp.Created
	resp.Failed = batchResp.Failed

	status := http.StatusCreated
	if len(resp.Created) == 0 {
		status = http.StatusUnprocessableEntity
	}
	NewJSONResponse().Status(status).Body(resp).Write(w)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.transactions.Templates(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Body(toPayloads(templates)).Write(w)
}

func (s *Server) handleTemplateInstances(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("invalid template id").Write(w)
		return
	}

	instances, err := s.transactions.Instances(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Body(toPayloads(instances)).Write(w)
}

type generateRequest struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	Regenerate bool   `json:"regenerate"`
}

// handleGenerateTemplate materializes one template over a date range
// and persists the new instances.
func (s *Server) handleGenerateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("invalid template id").Write(w)
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body: " + err.Error()).Write(w)
		return
	}
	start, err := core.ParseDate(req.Start)
	if err != nil {
		UnprocessableEntityError("invalid start date: expected YYYY-MM-DD").Write(w)
		return
	}
	end, err := core.ParseDate(req.End)
	if err != nil {
		UnprocessableEntityError("invalid end date: expected YYYY-MM-DD").Write(w)
		return
	}

	template, err := s.transactions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	instances, err := s.recurrence.GenerateInstances(r.Context(), template, start, end, req.Regenerate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	report := s.transactions.CreateBatch(r.Context(), instances)
	if len(report.Created()) > 0 {
		s.invalidateReports()
	}
	NewJSONResponse().Status(http.StatusCreated).Body(batchResponseFrom(report)).Write(w)
}

type sweepRequest struct {
	UpTo       string `json:"up_to"`
	Regenerate bool   `json:"regenerate"`
}

type sweepResponse struct {
	Created []transactionPayload `json:"created"`
}

// handleGenerateAll materializes every template up to a target date.
func (s *Server) handleGenerateAll(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("invalid request body: " + err.Error()).Write(w)
		return
	}
	upTo, err := core.ParseDate(req.UpTo)
	if err != nil {
		UnprocessableEntityError("invalid up_to date: expected YYYY-MM-DD").Write(w)
		return
	}

	created, err := s.recurrence.GenerateAllInstancesUpTo(r.Context(), upTo, req.Regenerate)
	if len(created) > 0 {
		s.invalidateReports()
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(sweepResponse{Created: toPayloads(created)}).Write(w)
}

type balanceResponse struct {
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

// handleBalance returns the running balance as of ?date= (default
// today).
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	target, err := parseDateParam(r.URL.Query(), "date")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if target.IsZero() {
		target = core.DateOf(time.Now())
	}

	balance, err := s.transactions.BalanceUpTo(r.Context(), target)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Body(balanceResponse{Date: target.String(), Balance: balance}).Write(w)
}

type weeklyBalancePayload struct {
	WeekStart       string  `json:"week_start"`
	WeekEnd         string  `json:"week_end"`
	StartingBalance float64 `json:"starting_balance"`
	EndingBalance   float64 `json:"ending_balance"`
	NetChange       float64 `json:"net_change"`
}

type weeklyBalancesResponse struct {
	Year  int                    `json:"year"`
	Month int                    `json:"month"`
	Weeks []weeklyBalancePayload `json:"weeks"`
}

func (s *Server) handleWeeklyBalances(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	key := s.weeklyCacheKey(params.Year, params.Month)
	weeks, found := s.weeklyCache.Get(key)
	if found {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Weekly balance cache hit",
			log.FieldYear, params.Year, log.FieldMonth, params.Month)
	} else {
		weeks, err = s.transactions.WeeklyBalances(r.Context(), params.Year, params.Month)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.weeklyCache.Set(key, weeks)
	}

	resp := weeklyBalancesResponse{
		Year:  params.Year,
		Month: params.Month,
		Weeks: make([]weeklyBalancePayload, 0, len(weeks)),
	}
	for _, wb := range weeks {
		resp.Weeks = append(resp.Weeks, weeklyBalancePayload{
			WeekStart:       wb.WeekStart.String(),
			WeekEnd:         wb.WeekEnd.String(),
			StartingBalance: wb.StartingBalance,
			EndingBalance:   wb.EndingBalance,
			NetChange:       wb.NetChange,
		})
	}
	NewJSONResponse().Body(resp).Write(w)
}
